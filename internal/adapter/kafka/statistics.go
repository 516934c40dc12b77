package kafka

import (
	"context"

	"github.com/couchcryptid/cset-bake/internal/domain"
	"github.com/couchcryptid/cset-bake/internal/observability"
)

// StatisticsPublisher sends cube statistics to the statistics topic.
// It implements operators.StatisticsPublisher.
type StatisticsPublisher struct {
	writer  *Writer
	metrics *observability.Metrics
}

// NewStatisticsPublisher creates a publisher writing through w.
func NewStatisticsPublisher(w *Writer, metrics *observability.Metrics) *StatisticsPublisher {
	return &StatisticsPublisher{writer: w, metrics: metrics}
}

// PublishStatistics writes one statistics event and counts the outcome.
func (p *StatisticsPublisher) PublishStatistics(ctx context.Context, ev domain.StatisticsEvent) error {
	out, err := domain.SerializeStatisticsEvent(ev)
	if err != nil {
		p.metrics.StatisticsPublished.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.LoadBatch(ctx, []domain.OutputEvent{out}); err != nil {
		p.metrics.StatisticsPublished.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.StatisticsPublished.WithLabelValues("success").Inc()
	return nil
}
