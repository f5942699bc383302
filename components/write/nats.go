package write

import (
	"context"
	"time"

	"github.com/knakk/rdf"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Pret-a-LLOD/Fintan/component"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
)

type natsWriterConfig struct {
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject" validate:"required"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Token         string        `mapstructure:"token"`
	Name          string        `mapstructure:"name"`
	Lang          string        `mapstructure:"lang"`
	MaxReconnects int           `mapstructure:"maxReconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnectWait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (c *natsWriterConfig) applyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 5
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *natsWriterConfig) options(log *logger.Logger) []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.Timeout(c.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", logger.Fields(logger.FieldError, err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", logger.Fields("url", nc.ConnectedUrl()))
		}),
	}
	if c.Username != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	if c.Name != "" {
		opts = append(opts, nats.Name(c.Name))
	}
	return opts
}

// Publisher is the part of a NATS connection NATSStreamWriter uses.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// ConnectFunc opens a Publisher.
type ConnectFunc func(url string, opts ...nats.Option) (Publisher, error)

func connectNATS(url string, opts ...nats.Option) (Publisher, error) {
	return nats.Connect(url, opts...)
}

// NATSStreamWriter publishes one NATS message per segment of every input
// to a single subject, then flushes and drains the connection.
type NATSStreamWriter struct {
	*component.Base
	cfg     natsWriterConfig
	format  rdf.Format
	connect ConnectFunc
}

// NewNATSStreamWriter is the NATSStreamWriter factory.
func NewNATSStreamWriter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg natsWriterConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	format, err := writerFormat(cfg.Lang)
	if err != nil {
		return nil, err
	}
	return &NATSStreamWriter{
		Base:    component.NewBase(spec, component.CategoryWriter, deps, component.OnlyDefaultOutput()),
		cfg:     cfg,
		format:  format,
		connect: connectNATS,
	}, nil
}

// UseConnect replaces how the writer connects to NATS.
func (w *NATSStreamWriter) UseConnect(fn ConnectFunc) { w.connect = fn }

func (w *NATSStreamWriter) Start(ctx context.Context) error {
	log := w.Logger().WithFields(logger.Fields(logger.FieldOperation, "nats"))
	conn, err := w.connect(w.cfg.URL, w.cfg.options(log)...)
	if err != nil {
		return apperrors.ExternalServiceError("nats", err)
	}
	defer func() {
		if err := conn.Drain(); err != nil {
			log.Warn("NATS drain failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	err = newPublisher(w.Base, w.format).run(ctx, func(ctx context.Context, msg message) (string, error) {
		ctx, span := observability.StartSpan(ctx, observability.SpanPublish)
		defer span.End()
		span.SetAttributes(
			attribute.String(observability.AttrInstance, w.InstanceName()),
			attribute.String(observability.AttrStream, msg.Stream),
		)
		m := nats.NewMsg(w.cfg.Subject)
		m.Data = msg.Body
		m.Header.Set(HeaderContentType, contentType(w.format))
		m.Header.Set(HeaderStream, streamLabel(msg.Stream))
		m.Header.Set(HeaderInstance, w.InstanceName())
		m.Header.Set(nats.MsgIdHdr, msg.Key)
		if err := conn.PublishMsg(m); err != nil {
			observability.SetSpanError(ctx, err)
			return "", apperrors.ExternalServiceError("nats", err)
		}
		return w.cfg.Subject, nil
	})
	if err != nil {
		return err
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return apperrors.ExternalServiceError("nats", err)
	}
	return nil
}
