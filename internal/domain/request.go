package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/couchcryptid/cset-bake/internal/cube"
)

// RawRequest represents an unprocessed message from the request topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// requestPayload is the wire shape of a bake request.
type requestPayload struct {
	ID         string          `json:"id"`
	Recipe     json.RawMessage `json:"recipe"`
	InputPath  string          `json:"input_path"`
	OutputPath string          `json:"output_path"`
}

// BakeRequest is a validated request to run one recipe.
type BakeRequest struct {
	ID          string
	Recipe      []byte
	InputPath   string
	OutputPath  string
	RequestedAt time.Time
}

// Status is the terminal state of a bake.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// BakeResult reports the outcome of one bake request.
type BakeResult struct {
	RequestID  string    `json:"request_id"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"` // "format", "validation", "unknown_operator", "argument", "operator", "canceled"
	Result     string    `json:"result,omitempty"`     // short description of the final value
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StatisticsEvent carries the summary statistics of one cube.
type StatisticsEvent struct {
	Label      string          `json:"label,omitempty"`
	Statistics cube.Statistics `json:"statistics"`
	ComputedAt time.Time       `json:"computed_at"`
}

// OutputEvent is the serialized form destined for a sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
