// Package executor runs parsed recipes against the operator registry.
//
// Each top-level step receives the previous step's result as its pipeline
// input. Arguments are resolved in document order before the step's operator
// is invoked: nested steps run first with the same pipeline input as their
// parent, the output-path marker becomes the designated output path, and
// literals pass through. If the step does not name the operator's input
// parameter, the pipeline input is bound under that name; if it does, the
// pipeline input is not used by that step.
//
// Operator errors are returned unchanged. The executor itself only originates
// unknown-operator errors (from the registry) and context cancellation.
package executor

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/observability"
	"github.com/couchcryptid/cset-bake/internal/operators"
	"github.com/couchcryptid/cset-bake/internal/recipe"
	"github.com/jonboulle/clockwork"
)

// Resolver looks operators up by dotted name.
type Resolver interface {
	Lookup(name string) (operators.Operator, error)
}

// Executor evaluates recipes. It holds no per-run state and is safe for
// concurrent use when its Resolver is.
type Executor struct {
	resolver Resolver
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock used to time steps.
func WithClock(c clockwork.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an Executor.
func New(resolver Resolver, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Executor {
	e := &Executor{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the recipe's steps in order, threading each result into the
// next step, and returns the last result.
func (e *Executor) Run(ctx context.Context, r *recipe.Recipe, input any, outputPath string) (any, error) {
	start := e.clock.Now()
	e.logger.Info("recipe started", "title", r.Title, "steps", len(r.Steps), "output_path", outputPath)

	current := input
	for i, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("recipe canceled", "title", r.Title, "step", i, "error", err)
			e.metrics.Recipes.WithLabelValues("failed").Inc()
			return nil, err
		}
		out, err := e.runStep(ctx, step, current, outputPath)
		if err != nil {
			e.logger.Error("recipe failed", "title", r.Title, "step", i, "operator", step.Operator, "error", err)
			e.metrics.Recipes.WithLabelValues("failed").Inc()
			return nil, err
		}
		current = out
	}

	e.metrics.Recipes.WithLabelValues("succeeded").Inc()
	e.logger.Info("recipe finished",
		"title", r.Title,
		"duration", e.clock.Since(start),
		"result", cube.Describe(current),
	)
	return current, nil
}

func (e *Executor) runStep(ctx context.Context, step *recipe.Step, input any, outputPath string) (any, error) {
	args := make(operators.Args, len(step.Args))
	for _, a := range step.Args {
		v, err := e.resolveArg(ctx, a.Value, input, outputPath)
		if err != nil {
			return nil, err
		}
		args[a.Name] = v
	}

	op, err := e.resolver.Lookup(step.Operator)
	if err != nil {
		return nil, err
	}

	if _, pinned := args[op.Input]; !pinned {
		args[op.Input] = input
	}

	start := e.clock.Now()
	out, err := op.Call(ctx, args)
	elapsed := e.clock.Since(start)
	e.metrics.StepDuration.WithLabelValues(op.Name).Observe(elapsed.Seconds())
	if err != nil {
		e.metrics.StepErrors.WithLabelValues(op.Name).Inc()
		return nil, err
	}
	e.metrics.StepsExecuted.WithLabelValues(op.Name).Inc()
	e.logger.Debug("step finished", "operator", op.Name, "duration", elapsed, "result", cube.Describe(out))
	return out, nil
}

func (e *Executor) resolveArg(ctx context.Context, v any, input any, outputPath string) (any, error) {
	switch val := v.(type) {
	case *recipe.Step:
		return e.runStep(ctx, val, input, outputPath)
	default:
		if recipe.IsOutputPathMarker(v) {
			return outputPath, nil
		}
		return v, nil
	}
}
