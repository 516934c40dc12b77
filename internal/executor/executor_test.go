package executor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/cset-bake/internal/executor"
	"github.com/couchcryptid/cset-bake/internal/observability"
	"github.com/couchcryptid/cset-bake/internal/operators"
	"github.com/couchcryptid/cset-bake/internal/recipe"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callLog records operator invocations in order.
type callLog struct {
	calls []string
	args  []operators.Args
}

func testRegistry(log *callLog) *operators.Registry {
	r := operators.NewDefault(operators.Deps{Logger: discardLogger()})

	r.Register(operators.Operator{Name: "test.increment", Input: "n", Fn: func(_ context.Context, args operators.Args) (any, error) {
		n, ok := args["n"].(int)
		if !ok {
			return nil, &operators.ArgumentError{Arg: "n", Msg: "want an integer"}
		}
		return n + 1, nil
	}})
	r.Register(operators.Operator{Name: "test.record", Input: "value", Fn: func(_ context.Context, args operators.Args) (any, error) {
		label, _ := args["label"].(string)
		log.calls = append(log.calls, label)
		log.args = append(log.args, args)
		return args["value"], nil
	}})
	r.Register(operators.Operator{Name: "test.tag", Input: "value", Fn: func(_ context.Context, args operators.Args) (any, error) {
		return args["tag"].(string) + "(" + args["value"].(string) + ")", nil
	}})
	r.Register(operators.Operator{Name: "test.fail", Input: "value", Fn: func(context.Context, operators.Args) (any, error) {
		return nil, errOperator
	}})
	return r
}

var errOperator = errors.New("operator exploded")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, doc string) *recipe.Recipe {
	t.Helper()
	r, err := recipe.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return r
}

func newExecutor(log *callLog) (*executor.Executor, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return executor.New(testRegistry(log), discardLogger(), m), m
}

func TestRun_NoopReturnsInput(t *testing.T) {
	exec, m := newExecutor(&callLog{})
	input := &struct{ name string }{"X"}

	out, err := exec.Run(context.Background(), parse(t, `{"steps": [{"operator": "misc.noop"}]}`), input, "/out.nc")
	require.NoError(t, err)
	assert.Same(t, input, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsExecuted.WithLabelValues("misc.noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recipes.WithLabelValues("succeeded")))
}

func TestRun_PinnedInputIgnoresPipelineInput(t *testing.T) {
	exec, _ := newExecutor(&callLog{})
	rec := parse(t, `{"steps": [{"operator": "test.increment", "n": 5}]}`)

	for _, input := range []any{nil, 100, "ambient", []int{1, 2}} {
		out, err := exec.Run(context.Background(), rec, input, "")
		require.NoError(t, err)
		assert.Equal(t, 6, out, "input %v", input)
	}
}

func TestRun_ThreadsResultsBetweenSteps(t *testing.T) {
	exec, _ := newExecutor(&callLog{})
	rec := parse(t, `
steps:
  - operator: test.increment
  - operator: test.increment
  - operator: test.increment
`)

	out, err := exec.Run(context.Background(), rec, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 4, out)
}

func TestRun_NestedStepsSeePipelineInputAndRunFirst(t *testing.T) {
	log := &callLog{}
	exec, _ := newExecutor(log)
	rec := parse(t, `
steps:
  - operator: test.record
    label: outer
    first:
      operator: test.record
      label: nested-1
    second:
      operator: test.tag
      tag: wrapped
      value:
        operator: test.record
        label: nested-2
`)

	out, err := exec.Run(context.Background(), rec, "input", "")
	require.NoError(t, err)
	assert.Equal(t, "input", out)

	assert.Equal(t, []string{"nested-1", "nested-2", "outer"}, log.calls)
	// Nested steps get the pipeline input, not their siblings' results.
	assert.Equal(t, "input", log.args[0]["value"])
	assert.Equal(t, "input", log.args[1]["value"])
	// The containing step sees concrete values.
	assert.Equal(t, "input", log.args[2]["first"])
	assert.Equal(t, "wrapped(input)", log.args[2]["second"])
}

func TestRun_OutputPathMarker(t *testing.T) {
	log := &callLog{}
	exec, _ := newExecutor(log)
	rec := parse(t, `
steps:
  - operator: test.record
    destination: CSET_OUTPUT_PATH
    nested:
      operator: test.record
      value: CSET_OUTPUT_PATH
`)

	_, err := exec.Run(context.Background(), rec, "input", "/data/out/result.nc")
	require.NoError(t, err)
	require.Len(t, log.args, 2)
	assert.Equal(t, "/data/out/result.nc", log.args[0]["value"])
	assert.Equal(t, "/data/out/result.nc", log.args[1]["destination"])
	assert.Equal(t, "/data/out/result.nc", log.args[1]["nested"])
}

func TestRun_UnknownOperator(t *testing.T) {
	exec, m := newExecutor(&callLog{})

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"top level", "steps:\n  - operator: misc.missing\n", "misc.missing"},
		{"nested", "steps:\n  - operator: misc.noop\n    x:\n      operator: read.nowhere\n", "read.nowhere"},
		{"namespace only", "steps:\n  - operator: misc\n", "misc"},
		{"non-string name", "steps:\n  - operator: 42\n", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Run(context.Background(), parse(t, tt.doc), nil, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, operators.ErrUnknownOperator))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Recipes.WithLabelValues("failed")))
}

func TestRun_UnknownOperatorResolvedAfterArguments(t *testing.T) {
	log := &callLog{}
	exec, _ := newExecutor(log)
	rec := parse(t, `
steps:
  - operator: misc.missing
    arg:
      operator: test.record
      label: evaluated
`)

	_, err := exec.Run(context.Background(), rec, nil, "")
	require.Error(t, err)
	assert.Equal(t, []string{"evaluated"}, log.calls)
}

func TestRun_OperatorErrorsPropagateUnchanged(t *testing.T) {
	log := &callLog{}
	exec, m := newExecutor(log)
	rec := parse(t, `
steps:
  - operator: test.record
    label: before
  - operator: test.fail
  - operator: test.record
    label: after
`)

	out, err := exec.Run(context.Background(), rec, "input", "")
	assert.Nil(t, out)
	assert.Same(t, errOperator, err)
	assert.Equal(t, []string{"before"}, log.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepErrors.WithLabelValues("test.fail")))
}

func TestRun_ArgumentErrorsNameTheOperator(t *testing.T) {
	exec, _ := newExecutor(&callLog{})

	_, err := exec.Run(context.Background(), parse(t, "steps:\n  - operator: test.increment\n"), "five", "")
	require.Error(t, err)

	var argErr *operators.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "test.increment", argErr.Operator)
}

func TestRun_StopsBetweenStepsWhenCanceled(t *testing.T) {
	log := &callLog{}
	exec, _ := newExecutor(log)
	rec := parse(t, "steps:\n  - operator: test.record\n    label: first\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, rec, "input", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log.calls)
}

func TestRun_RecordsStepDuration(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC))
	m := observability.NewMetricsForTesting()
	exec := executor.New(testRegistry(&callLog{}), discardLogger(), m, executor.WithClock(clock))

	_, err := exec.Run(context.Background(), parse(t, "steps:\n  - operator: misc.noop\n"), 1, "")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}
