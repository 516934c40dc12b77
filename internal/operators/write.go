package operators

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/domain"
)

func registerWrite(r *Registry, deps Deps) {
	w := &writer{publisher: deps.Publisher, logger: deps.Logger}
	r.Register(Operator{Name: "write.write_cube_to_nc", Input: "cube", Fn: w.writeNetCDF})
	r.Register(Operator{Name: "write.publish_statistics", Input: "cube", Fn: w.publishStatistics})
}

type writer struct {
	publisher StatisticsPublisher
	logger    *slog.Logger
}

// writeNetCDF saves a cube or cube list and passes it through unchanged.
func (w *writer) writeNetCDF(_ context.Context, args Args) (any, error) {
	in, err := args.Value("cube")
	if err != nil {
		return nil, err
	}
	cubes, err := args.Cubes("cube")
	if err != nil {
		return nil, err
	}
	filename, err := args.String("filename")
	if err != nil {
		return nil, err
	}
	overwrite, err := args.Bool("overwrite", false)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("write cube: %w", err)
		}
	}
	if err := cube.SaveNetCDF(filename, cubes, overwrite); err != nil {
		return nil, err
	}
	w.logger.Info("cubes written", "path", filename, "cubes", cubes.Names())
	return in, nil
}

// publishStatistics sends the summary of each cube to the statistics sink and
// passes the input through unchanged.
func (w *writer) publishStatistics(ctx context.Context, args Args) (any, error) {
	in, err := args.Value("cube")
	if err != nil {
		return nil, err
	}
	cubes, err := args.Cubes("cube")
	if err != nil {
		return nil, err
	}
	label, err := args.OptString("label", "")
	if err != nil {
		return nil, err
	}

	for _, c := range cubes {
		ev := domain.NewStatisticsEvent(label, cube.Summarise(c))
		if w.publisher == nil {
			w.logger.Debug("statistics publishing disabled", "cube", c.Name, "statistics", ev.Statistics.String())
			continue
		}
		if err := w.publisher.PublishStatistics(ctx, ev); err != nil {
			return nil, fmt.Errorf("publish statistics for %s: %w", c.Name, err)
		}
		w.logger.Info("statistics published", "cube", c.Name, "label", label)
	}
	return in, nil
}
