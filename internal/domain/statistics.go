package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

// NewStatisticsEvent stamps cube statistics with the current time.
func NewStatisticsEvent(label string, st cube.Statistics) StatisticsEvent {
	return StatisticsEvent{Label: label, Statistics: st, ComputedAt: clock.Now()}
}

// SerializeStatisticsEvent encodes an event for the statistics topic. The key
// is the label, falling back to the cube name.
func SerializeStatisticsEvent(ev StatisticsEvent) (OutputEvent, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize statistics event: %w", err)
	}
	key := ev.Label
	if key == "" {
		key = ev.Statistics.Name
	}
	return OutputEvent{
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"cube":        ev.Statistics.Name,
			"computed_at": ev.ComputedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
