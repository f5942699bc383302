package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/resilience"
)

// MessageWriter is the part of kafka-go's Writer a Producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer wraps a kafka-go Writer with TLS/SASL, retries and logging. The
// writer is created on first use.
type Producer struct {
	writer MessageWriter
	cfg    Config
	log    *logger.Logger
	mu     sync.Mutex
	closed bool
}

// NewProducer validates cfg and returns a producer that connects lazily.
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid("kafka: " + err.Error())
	}
	return &Producer{cfg: cfg, log: log}, nil
}

// NewProducerWithWriter returns a producer publishing through w.
func NewProducerWithWriter(cfg Config, w MessageWriter, log *logger.Logger) *Producer {
	cfg.ApplyDefaults()
	return &Producer{cfg: cfg, writer: w, log: log}
}

// Topic returns the configured topic.
func (p *Producer) Topic() string { return p.cfg.Topic }

func (p *Producer) ensureWriter() (MessageWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("producer is closed")
	}
	if p.writer != nil {
		return p.writer, nil
	}
	transport, err := CreateTransport(&p.cfg)
	if err != nil {
		return nil, apperrors.ConfigInvalid("kafka producer transport: " + err.Error())
	}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Topic:        p.cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.LeastBytes{},
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: ParseDuration(p.cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  ResolveCompression(p.cfg.Compression),
		WriteTimeout: ParseDuration(p.cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}
	p.log.Debug("Kafka producer initialized", map[string]interface{}{
		"brokers":     p.cfg.Brokers,
		"topic":       p.cfg.Topic,
		"compression": p.cfg.Compression,
	})
	return p.writer, nil
}

// WriteMessages sends messages, retrying connection-level failures.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w, err := p.ensureWriter()
	if err != nil {
		return err
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = p.cfg.Retries
	retry.RetryIf = IsRetryableError
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		p.log.Warn("Kafka write failed, retrying", map[string]interface{}{
			"attempt":          attempt,
			"backoff":          backoff.String(),
			logger.FieldError: err.Error(),
		})
	}
	if err := resilience.RetryFunc(ctx, retry, func() error { return w.WriteMessages(ctx, msgs...) }); err != nil {
		return apperrors.ExternalServiceError("kafka", err)
	}
	return nil
}

// Close flushes pending messages and shuts down the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
