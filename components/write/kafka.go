package write

import (
	"context"

	"github.com/knakk/rdf"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Pret-a-LLOD/Fintan/component"
	"github.com/Pret-a-LLOD/Fintan/kafka"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
)

type kafkaWriterConfig struct {
	kafka.Config `mapstructure:",squash"`
	Lang         string `mapstructure:"lang"`
}

// KafkaStreamWriter publishes one Kafka message per segment of every input.
// The message key is the segment label; a receipt line per message goes to
// the default output.
type KafkaStreamWriter struct {
	*component.Base
	format   rdf.Format
	producer *kafka.Producer
}

// NewKafkaStreamWriter is the KafkaStreamWriter factory. The producer
// connects on the first published message.
func NewKafkaStreamWriter(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg kafkaWriterConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	format, err := writerFormat(cfg.Lang)
	if err != nil {
		return nil, err
	}
	w := &KafkaStreamWriter{
		Base:   component.NewBase(spec, component.CategoryWriter, deps, component.OnlyDefaultOutput()),
		format: format,
	}
	if w.producer, err = kafka.NewProducer(cfg.Config, w.Logger().WithFields(logger.Fields(logger.FieldOperation, "kafka"))); err != nil {
		return nil, err
	}
	return w, nil
}

// UseProducer replaces the configured producer.
func (w *KafkaStreamWriter) UseProducer(p *kafka.Producer) { w.producer = p }

func (w *KafkaStreamWriter) Start(ctx context.Context) error {
	defer func() { _ = w.producer.Close() }()
	producer := w.producer
	return newPublisher(w.Base, w.format).run(ctx, func(ctx context.Context, msg message) (string, error) {
		ctx, span := observability.StartSpan(ctx, observability.SpanPublish)
		defer span.End()
		span.SetAttributes(
			attribute.String(observability.AttrInstance, w.InstanceName()),
			attribute.String(observability.AttrStream, msg.Stream),
		)
		err := producer.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(msg.Key),
			Value: msg.Body,
			Headers: []kafkago.Header{
				{Key: HeaderContentType, Value: []byte(contentType(w.format))},
				{Key: HeaderStream, Value: []byte(streamLabel(msg.Stream))},
				{Key: HeaderInstance, Value: []byte(w.InstanceName())},
			},
		})
		if err != nil {
			observability.SetSpanError(ctx, err)
			return "", err
		}
		return producer.Topic(), nil
	})
}
