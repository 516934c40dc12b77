package kafka

import (
	"context"
	"log/slog"
	"sort"

	"github.com/couchcryptid/cset-bake/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces serialized events to one Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: topic, logger: logger}
}

// LoadBatch publishes the events in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = toMessage(events[i])
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("events published", "topic", w.topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts an OutputEvent into a Kafka message with headers in key order.
func toMessage(ev domain.OutputEvent) kafkago.Message {
	keys := make([]string, 0, len(ev.Headers))
	for k := range ev.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, len(keys))
	for i, k := range keys {
		headers[i] = kafkago.Header{Key: k, Value: []byte(ev.Headers[k])}
	}
	return kafkago.Message{Key: ev.Key, Value: ev.Value, Headers: headers}
}
