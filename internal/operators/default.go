package operators

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/cset-bake/internal/domain"
)

// StatisticsPublisher delivers cube statistics to an external sink.
type StatisticsPublisher interface {
	PublishStatistics(ctx context.Context, ev domain.StatisticsEvent) error
}

// Deps are the collaborators of the built-in operators. A nil Publisher
// turns write.publish_statistics into a logging no-op.
type Deps struct {
	Publisher StatisticsPublisher
	Logger    *slog.Logger
}

// NewDefault returns a registry holding the built-in operator catalogue.
func NewDefault(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := NewRegistry()
	registerMisc(r)
	registerConstraints(r)
	registerRead(r)
	registerFilters(r)
	registerCollapse(r)
	registerWrite(r, deps)
	return r
}
