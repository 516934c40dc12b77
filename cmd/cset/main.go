// Command cset runs, checks and inspects recipes from the command line.
//
// Usage:
//
//	cset bake -input-dir data/forecast -output-dir out -recipe recipes/mean.yaml
//	cset validate -recipe recipes/mean.yaml
//	cset graph -recipe recipes/mean.yaml -format dot | dot -Tsvg > mean.svg
//	cset operators
//
// Exit status is 0 on success, 1 when a recipe fails and 2 on usage errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	kafkaadapter "github.com/couchcryptid/cset-bake/internal/adapter/kafka"
	"github.com/couchcryptid/cset-bake/internal/config"
	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/executor"
	"github.com/couchcryptid/cset-bake/internal/observability"
	"github.com/couchcryptid/cset-bake/internal/operators"
	"github.com/couchcryptid/cset-bake/internal/recipe"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJob = "cset_bake"

// usageError marks a problem with the command line rather than the recipe.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "bake":
		err = runBake(ctx, args[1:], stdout, stderr)
	case "validate":
		err = runValidate(args[1:], stdout, stderr)
	case "graph":
		err = runGraph(args[1:], stdout, stderr)
	case "operators":
		err = runOperators(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return 0
	default:
		err = &usageError{msg: fmt.Sprintf("unknown command %q", args[0])}
	}

	var usage *usageError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "cset: %v\n", err)
		printUsage(stderr)
		return 2
	default:
		fmt.Fprintf(stderr, "cset: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: cset <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  bake       run a recipe against an input directory")
	fmt.Fprintln(w, "  validate   check that every operator in a recipe exists")
	fmt.Fprintln(w, "  graph      print the step tree of a recipe")
	fmt.Fprintln(w, "  operators  list the available operators")
}

// parseFlags parses args and converts flag errors other than -h into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return &usageError{msg: fmt.Sprintf("%s: unexpected arguments %v", fs.Name(), fs.Args())}
	}
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func loadRecipe(path string) (*recipe.Recipe, error) {
	if path == "" {
		return nil, &usageError{msg: "missing required flag: -recipe"}
	}
	return recipe.Load(recipe.Path(path))
}

func runBake(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("bake", stderr)
	inputDir := fs.String("input-dir", "", "directory holding the input data")
	outputDir := fs.String("output-dir", "", "directory for the baked output")
	recipePath := fs.String("recipe", "", "path to the recipe file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *inputDir == "" || *outputDir == "" || *recipePath == "" {
		return &usageError{msg: "missing required flags: -input-dir, -output-dir, -recipe"}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	rec, err := loadRecipe(*recipePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outputPath := filepath.Join(*outputDir, recipeName(*recipePath)+".nc")

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg)

	deps := operators.Deps{Logger: logger}
	if cfg.StatisticsEnabled {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaStatisticsTopic, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		deps.Publisher = kafkaadapter.NewStatisticsPublisher(w, metrics)
	}

	exec := executor.New(operators.NewDefault(deps), logger, metrics)
	out, runErr := exec.Run(ctx, rec, *inputDir, outputPath)

	pushMetrics(cfg.PushgatewayURL, reg, recipeName(*recipePath), logger)

	if runErr != nil {
		return runErr
	}
	logger.Info("bake complete", "recipe", *recipePath, "output", outputPath)
	fmt.Fprintln(stdout, cube.Describe(out))
	return nil
}

// recipeName is the recipe file name without its extension.
func recipeName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pushMetrics sends the bake metrics to a Pushgateway when one is configured.
// Push failures are logged and do not fail the bake.
func pushMetrics(url string, gatherer prometheus.Gatherer, name string, logger *slog.Logger) {
	if url == "" {
		return
	}
	err := push.New(url, pushJob).
		Gatherer(gatherer).
		Grouping("recipe", name).
		Push()
	if err != nil {
		logger.Warn("push metrics failed", "url", url, "error", err)
		return
	}
	logger.Debug("metrics pushed", "url", url)
}

func runValidate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("validate", stderr)
	recipePath := fs.String("recipe", "", "path to the recipe file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rec, err := loadRecipe(*recipePath)
	if err != nil {
		return err
	}

	ops := operators.NewDefault(operators.Deps{Logger: slog.Default()})
	if err := checkOperators(rec, ops); err != nil {
		return err
	}

	steps := 0
	rec.Walk(func(*recipe.Step, int) { steps++ })
	fmt.Fprintf(stdout, "%s: ok (%d steps)\n", *recipePath, steps)
	return nil
}

// checkOperators resolves every operator in the recipe, nested steps
// included, and reports all that fail.
func checkOperators(rec *recipe.Recipe, ops *operators.Registry) error {
	var errs []error
	rec.Walk(func(s *recipe.Step, _ int) {
		if _, err := ops.Lookup(s.Operator); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func runGraph(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("graph", stderr)
	recipePath := fs.String("recipe", "", "path to the recipe file")
	format := fs.String("format", "text", "output format: text or dot")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *format != "text" && *format != "dot" {
		return &usageError{msg: fmt.Sprintf("graph: unknown format %q", *format)}
	}
	rec, err := loadRecipe(*recipePath)
	if err != nil {
		return err
	}
	if *format == "dot" {
		return writeDOT(stdout, rec)
	}
	writeGraph(stdout, rec)
	return nil
}

// writeGraph prints one numbered line per top-level step with its arguments
// beneath it. Nested steps are printed under the argument that holds them.
func writeGraph(w io.Writer, rec *recipe.Recipe) {
	if rec.Title != "" {
		fmt.Fprintln(w, rec.Title)
	}
	for i, s := range rec.Steps {
		fmt.Fprintf(w, "%d %s\n", i+1, s.Operator)
		writeArgs(w, s.Args, 1)
	}
}

func writeArgs(w io.Writer, args []recipe.Arg, depth int) {
	pad := strings.Repeat("  ", depth+1)
	for _, a := range args {
		if nested, ok := a.Value.(*recipe.Step); ok {
			fmt.Fprintf(w, "%s%s: %s\n", pad, a.Name, nested.Operator)
			writeArgs(w, nested.Args, depth+1)
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", pad, a.Name, formatValue(a.Value))
	}
}

func formatValue(v any) string {
	if recipe.IsOutputPathMarker(v) {
		return "<output>"
	}
	return fmt.Sprint(v)
}

func runOperators(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("operators", stderr)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ops := operators.NewDefault(operators.Deps{Logger: slog.Default()})

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATOR\tINPUT")
	for _, op := range ops.Operators() {
		fmt.Fprintf(tw, "%s\t%s\n", op.Name, op.Input)
	}
	return tw.Flush()
}
