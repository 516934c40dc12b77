package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/domain"
	"github.com/couchcryptid/cset-bake/internal/operators"
	"github.com/couchcryptid/cset-bake/internal/recipe"
)

// Runner executes a parsed recipe.
type Runner interface {
	Run(ctx context.Context, r *recipe.Recipe, input any, outputPath string) (any, error)
}

// Baker implements Transformer by running each request's recipe. Recipe
// failures become failed results; only unreadable requests are errors.
type Baker struct {
	runner Runner
	logger *slog.Logger
}

// NewBaker creates a Baker that runs recipes with runner.
func NewBaker(runner Runner, logger *slog.Logger) *Baker {
	return &Baker{runner: runner, logger: logger}
}

// Transform parses a raw request and bakes it. The error is non-nil only when
// the request itself cannot be read.
func (b *Baker) Transform(ctx context.Context, raw domain.RawRequest) (domain.OutputEvent, error) {
	req, err := domain.ParseRawRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeBakeResult(b.Bake(ctx, req))
}

// Bake runs one request and reports its outcome.
func (b *Baker) Bake(ctx context.Context, req domain.BakeRequest) domain.BakeResult {
	res := domain.StartResult(req)

	rec, err := recipe.Load(req.Recipe)
	if err != nil {
		return b.failed(res, err)
	}

	out, err := b.runner.Run(ctx, rec, req.InputPath, req.OutputPath)
	if err != nil {
		return b.failed(res, err)
	}

	res = res.Succeed(cube.Describe(out))
	b.logger.Info("bake succeeded", "request_id", req.ID, "duration", res.Duration(), "result", res.Result)
	return res
}

func (b *Baker) failed(res domain.BakeResult, err error) domain.BakeResult {
	res = res.Fail(err, errorKind(err))
	b.logger.Warn("bake failed", "request_id", res.RequestID, "kind", res.ErrorKind, "error", err)
	return res
}

// errorKind classifies a bake failure for the result record.
func errorKind(err error) string {
	switch {
	case errors.Is(err, recipe.ErrFormat):
		return "format"
	case errors.Is(err, recipe.ErrValidation), errors.Is(err, recipe.ErrInputType):
		return "validation"
	case errors.Is(err, operators.ErrUnknownOperator):
		return "unknown_operator"
	case errors.Is(err, operators.ErrArgument):
		return "argument"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "operator"
	}
}
