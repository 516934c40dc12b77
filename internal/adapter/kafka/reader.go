package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/cset-bake/internal/config"
	"github.com/couchcryptid/cset-bake/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageFetcher is the subset of *kafkago.Reader used by Reader.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes bake requests from the request topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        messageFetcher
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured request topic.
// Offsets are committed explicitly once a request's result is published.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaRequestTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch blocks until at least one request is available, then collects
// up to batchSize requests, waiting at most the flush interval for the rest.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRequest, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	batch := []domain.RawRequest{r.toRawRequest(first)}

	flushCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(flushCtx)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				r.logger.Warn("fetch request failed, flushing partial batch", "error", err, "batch_size", len(batch))
			}
			break
		}
		batch = append(batch, r.toRawRequest(msg))
	}
	return batch, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) toRawRequest(msg kafkago.Message) domain.RawRequest {
	raw := mapMessageToRawRequest(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

func mapMessageToRawRequest(msg kafkago.Message) domain.RawRequest {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawRequest{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
