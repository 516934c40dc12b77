// Package pipeline runs the bake worker loop: pull a batch of bake requests,
// bake each one, publish the results and commit the request offsets.
//
// An offset is committed only once the request's result has been published
// or the request has been rejected as unreadable. A bake interrupted by
// shutdown commits nothing, so the request goes to the next worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/cset-bake/internal/domain"
	"github.com/couchcryptid/cset-bake/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRequest, error)
}

// Transformer bakes one raw request into the result event to publish.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawRequest) (domain.OutputEvent, error)
}

// BatchLoader publishes result events.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline is the bake worker loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline that reads from e, bakes with t and publishes to l.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the worker has published a result.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no bake results published yet")
	}
	return nil
}

// Run bakes batches until ctx is done. Extract and publish failures are
// retried with exponential backoff; Run itself only returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("bake worker started", "batch_size", p.batchSize)
	p.metrics.WorkerRunning.Set(1)
	defer p.metrics.WorkerRunning.Set(0)

	backoff := initialBackoff
	for ctx.Err() == nil {
		err := p.runBatch(ctx)
		if err == nil {
			backoff = initialBackoff
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("batch failed", "error", err, "retry_in", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}

	p.logger.Info("bake worker stopped", "reason", context.Cause(ctx))
	return nil
}

// runBatch bakes one batch end to end. On error nothing but rejected
// requests has been committed.
func (p *Pipeline) runBatch(ctx context.Context) error {
	start := time.Now()

	reqs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}
	p.metrics.RequestsConsumed.Add(float64(len(reqs)))
	p.metrics.BatchSize.Observe(float64(len(reqs)))

	results, baked, err := p.bakeAll(ctx, reqs)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, results); err != nil {
		return fmt.Errorf("publish %d results: %w", len(results), err)
	}
	p.metrics.ResultsProduced.Add(float64(len(results)))
	for _, raw := range baked {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

// bakeAll bakes every request and returns the results alongside the
// requests that produced them. Unreadable requests are committed and
// dropped. It stops at the first request interrupted by ctx.
func (p *Pipeline) bakeAll(ctx context.Context, reqs []domain.RawRequest) ([]domain.OutputEvent, []domain.RawRequest, error) {
	results := make([]domain.OutputEvent, 0, len(reqs))
	baked := make([]domain.RawRequest, 0, len(reqs))

	for _, raw := range reqs {
		out, err := p.transformer.Transform(ctx, raw)
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("bake interrupted: %w", ctx.Err())
		}
		if err != nil {
			requestLogger(p.logger, raw).Warn("request rejected", "error", err)
			p.metrics.BakeErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		results = append(results, out)
		baked = append(baked, raw)
	}
	return results, baked, nil
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawRequest) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		requestLogger(p.logger, raw).Warn("commit failed", "error", err)
	}
}

func requestLogger(l *slog.Logger, raw domain.RawRequest) *slog.Logger {
	return l.With("topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
}
