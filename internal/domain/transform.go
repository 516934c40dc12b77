package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ParseRawRequest deserializes a RawRequest's value into a BakeRequest.
func ParseRawRequest(raw RawRequest) (BakeRequest, error) {
	var p requestPayload
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return BakeRequest{}, fmt.Errorf("parse raw request: %w", err)
	}

	recipe, err := recipeBytes(p.Recipe)
	if err != nil {
		return BakeRequest{}, fmt.Errorf("parse raw request: %w", err)
	}

	var missing []string
	if len(recipe) == 0 {
		missing = append(missing, "recipe")
	}
	if strings.TrimSpace(p.InputPath) == "" {
		missing = append(missing, "input_path")
	}
	if strings.TrimSpace(p.OutputPath) == "" {
		missing = append(missing, "output_path")
	}
	if len(missing) > 0 {
		return BakeRequest{}, fmt.Errorf("parse raw request: missing %s", strings.Join(missing, ", "))
	}

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = generateID(recipe, p.InputPath, p.OutputPath)
	}

	return BakeRequest{
		ID:          id,
		Recipe:      recipe,
		InputPath:   p.InputPath,
		OutputPath:  p.OutputPath,
		RequestedAt: raw.Timestamp,
	}, nil
}

// recipeBytes accepts the recipe either as a JSON string holding a document
// or as an inline JSON value.
func recipeBytes(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return []byte(s), nil
}

// generateID produces a deterministic ID from the request's content so that
// replaying the same message produces the same result key.
func generateID(recipe []byte, inputPath, outputPath string) string {
	h := sha256.New()
	h.Write(recipe)
	fmt.Fprintf(h, "|%s|%s", inputPath, outputPath)
	return "bake-" + hex.EncodeToString(h.Sum(nil)[:8])
}

// StartResult opens a result for the request, stamped with the current time.
func StartResult(req BakeRequest) BakeResult {
	return BakeResult{
		RequestID:  req.ID,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		StartedAt:  clock.Now(),
	}
}

// Succeed marks the result succeeded with a description of the final value.
func (r BakeResult) Succeed(result string) BakeResult {
	r.Status = StatusSucceeded
	r.Result = result
	r.FinishedAt = clock.Now()
	return r
}

// Fail marks the result failed.
func (r BakeResult) Fail(err error, kind string) BakeResult {
	r.Status = StatusFailed
	if err == nil {
		err = errors.New("unknown error")
	}
	r.Error = err.Error()
	r.ErrorKind = kind
	r.FinishedAt = clock.Now()
	return r
}

// Duration is the wall time between start and finish.
func (r BakeResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SerializeBakeResult encodes a result for the result topic.
func SerializeBakeResult(r BakeResult) (OutputEvent, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize bake result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(r.RequestID),
		Value: value,
		Headers: map[string]string{
			"status":      string(r.Status),
			"finished_at": r.FinishedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
