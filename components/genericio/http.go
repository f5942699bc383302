package genericio

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Pret-a-LLOD/Fintan/component"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/resilience"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Parameter placements accepted by useDataAsParam and useStreamNameAsParam,
// written as "<placement>:::<name>".
const (
	ParamPath   = "path"
	ParamQuery  = "query"
	ParamHeader = "header"
	ParamForm   = "form"

	paramSeparator = ":::"
)

type httpServiceConfig struct {
	APIURI               string            `mapstructure:"apiURI" validate:"required,url"`
	APIMethodPath        string            `mapstructure:"apiMethodPath"`
	APIMethodOperation   string            `mapstructure:"apiMethodOperation"`
	DelimiterIn          string            `mapstructure:"delimiterIn"`
	DelimiterOut         string            `mapstructure:"delimiterOut"`
	AcceptTypes          []string          `mapstructure:"acceptTypes"`
	ContentTypes         []string          `mapstructure:"contentTypes"`
	UseDataAsParam       string            `mapstructure:"useDataAsParam"`
	UseStreamNameAsParam string            `mapstructure:"useStreamNameAsParam"`
	PathParams           map[string]string `mapstructure:"pathParams"`
	QueryParams          map[string]string `mapstructure:"queryParams"`
	HeaderParams         map[string]string `mapstructure:"headerParams"`
	FormParams           map[string]string `mapstructure:"formParams"`
	RateLimit            float64           `mapstructure:"rateLimit" validate:"gte=0"`
}

// param is a parsed "<placement>:::<name>" setting.
type param struct {
	placement string
	name      string
}

func parseParam(key, v string) (param, error) {
	if v == "" {
		return param{}, nil
	}
	placement, name, ok := strings.Cut(v, paramSeparator)
	if !ok || name == "" {
		return param{}, apperrors.ConfigInvalid(fmt.Sprintf("%s: expected <placement>:::<name>, got %q", key, v))
	}
	switch placement {
	case ParamPath, ParamQuery, ParamHeader, ParamForm:
		return param{placement: placement, name: name}, nil
	}
	return param{}, apperrors.ConfigInvalid(fmt.Sprintf("%s: unknown placement %q", key, placement))
}

// HTTPServiceStreamTransformer sends every segment of each named input to a
// web service and writes the responses to the output of the same name.
// Segments are split by delimiterIn; without it the whole stream is one
// request. Calls are paced by rateLimit and retried on 5xx responses.
type HTTPServiceStreamTransformer struct {
	*component.Base
	cfg        httpServiceConfig
	method     string
	data       param
	streamName param
	client     *http.Client
	retry      resilience.RetryConfig
	limiter    *resilience.RateLimiter
}

// NewHTTPServiceStreamTransformer is the HTTPServiceStreamTransformer factory.
func NewHTTPServiceStreamTransformer(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg httpServiceConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	data, err := parseParam("useDataAsParam", cfg.UseDataAsParam)
	if err != nil {
		return nil, err
	}
	if data.placement == ParamPath {
		return nil, apperrors.ConfigInvalid("useDataAsParam: data cannot be a path parameter")
	}
	streamName, err := parseParam("useStreamNameAsParam", cfg.UseStreamNameAsParam)
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(cfg.APIMethodOperation)
	if method == "" {
		method = http.MethodPost
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	t := &HTTPServiceStreamTransformer{
		Base:       component.NewBase(spec, component.CategoryTransformer, deps),
		cfg:        cfg,
		method:     method,
		data:       data,
		streamName: streamName,
		client:     client,
		retry:      deps.Retry,
	}
	t.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name: spec.Instance,
		Rate: cfg.RateLimit,
		OnLimit: func(name string) {
			t.Logger().Debug("request delayed by rate limit")
		},
	})
	return t, nil
}

func (t *HTTPServiceStreamTransformer) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, t.Base, t.serve)
}

func (t *HTTPServiceStreamTransformer) serve(ctx context.Context, name string, in stream.Input, out stream.Output) error {
	chunker := segment.Chunker{Split: t.cfg.DelimiterIn != "", Delimiter: t.cfg.DelimiterIn}
	w := t.Writer(ctx, out)
	return chunker.Each(in.Reader(), func(chunk string) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		body, err := t.call(ctx, name, chunk)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return err
			}
			t.Logger().Warn("service rejected the segment, it is skipped",
				logger.Fields(logger.FieldStream, name, logger.FieldError, err.Error()))
			t.Metrics().RecordDropped(ctx, t.InstanceName(), name, 1)
			return nil
		}
		if !bytes.HasSuffix(body, []byte("\n")) {
			body = append(body, '\n')
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		if t.cfg.DelimiterIn != "" && t.cfg.DelimiterOut != "" {
			_, err = io.WriteString(w, t.cfg.DelimiterOut+"\n")
		}
		return err
	})
}

// call sends one segment and returns the response body.
func (t *HTTPServiceStreamTransformer) call(ctx context.Context, name, data string) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanServiceCall)
	defer span.End()
	span.SetAttributes(
		attribute.String(observability.AttrInstance, t.InstanceName()),
		attribute.String(observability.AttrStream, name),
	)

	cfg := t.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		t.Logger().Warn("Service call failed, retrying", logger.Fields(
			logger.FieldStream, name,
			"attempt", attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}
	id := streamID(name, data)
	body, err := resilience.Retry(ctx, cfg, func() ([]byte, error) {
		req, err := t.request(ctx, id, data)
		if err != nil {
			return nil, err
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return nil, apperrors.ExternalServiceError(t.cfg.APIURI, err)
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperrors.ExternalServiceError(t.cfg.APIURI, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			statusErr := fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(b)))
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return nil, resilience.WithRetryAfter(apperrors.ExternalServiceError(t.cfg.APIURI, statusErr), resilience.ParseRetryAfter(resp.Header))
			}
			return nil, apperrors.Segment("service rejected the request", statusErr)
		}
		return b, nil
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return body, err
}

func (t *HTTPServiceStreamTransformer) request(ctx context.Context, id, data string) (*http.Request, error) {
	path := t.cfg.APIMethodPath
	for k, v := range t.cfg.PathParams {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	query := url.Values{}
	for k, v := range t.cfg.QueryParams {
		query.Set(k, v)
	}
	form := url.Values{}
	for k, v := range t.cfg.FormParams {
		form.Set(k, v)
	}
	header := http.Header{}
	for k, v := range t.cfg.HeaderParams {
		header.Set(k, v)
	}

	place := func(p param, value string) {
		switch p.placement {
		case ParamPath:
			path = strings.ReplaceAll(path, "{"+p.name+"}", url.PathEscape(value))
		case ParamQuery:
			query.Set(p.name, value)
		case ParamHeader:
			header.Set(p.name, value)
		case ParamForm:
			form.Set(p.name, value)
		}
	}
	place(t.streamName, id)
	place(t.data, data)

	var body io.Reader
	contentType := "text/plain; charset=utf-8"
	if len(t.cfg.ContentTypes) > 0 {
		contentType = t.cfg.ContentTypes[0]
	}
	switch {
	case len(form) > 0:
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case t.data.placement == "":
		body = strings.NewReader(data)
	}

	u := strings.TrimRight(t.cfg.APIURI, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, t.method, u, body)
	if err != nil {
		return nil, apperrors.ConfigInvalid("invalid service URL: " + u).WithCause(err)
	}
	req.Header = header
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if len(t.cfg.AcceptTypes) > 0 {
		req.Header.Set("Accept", strings.Join(t.cfg.AcceptTypes, ", "))
	}
	return req, nil
}

// streamID identifies one request: the stream name plus a hash of the data.
func streamID(name, data string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(data))
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("%s%08x", name, h.Sum32())
}
