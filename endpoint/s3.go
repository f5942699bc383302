package endpoint

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

// ObjectStore is the subset of the S3 API the resolver uses. *s3.Client
// implements it.
type ObjectStore interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client from settings.
func NewS3Client(ctx context.Context, cfg config.S3Settings) (*awss3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = config.DefaultS3Region
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Resource("s3", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}
	return awss3.NewFromConfig(awsCfg, s3Opts...), nil
}

// parseS3 splits s3://bucket/key.
func parseS3(ref string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", apperrors.ConfigInvalid("S3 references must have the form s3://bucket/key: " + ref)
	}
	return bucket, key, nil
}

func (r *Resolver) openS3(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := parseS3(ref)
	if err != nil {
		return nil, err
	}
	store, err := r.s3.Get(ctx)
	if err != nil {
		return nil, apperrors.Resource(ref, err)
	}
	out, err := store.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.Resource(ref, err)
	}
	return out.Body, nil
}

func (r *Resolver) createS3(ctx context.Context, ref string) (io.WriteCloser, error) {
	bucket, key, err := parseS3(ref)
	if err != nil {
		return nil, err
	}
	store, err := r.s3.Get(ctx)
	if err != nil {
		return nil, apperrors.Resource(ref, err)
	}
	return &s3Writer{ctx: ctx, store: store, ref: ref, bucket: bucket, key: key}, nil
}

// s3Writer buffers the object and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	store  ObjectStore
	ref    string
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.store.PutObject(w.ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	})
	if err != nil {
		return apperrors.Resource(w.ref, err)
	}
	return nil
}
