package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/cset-bake/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cset-bake/internal/adapter/kafka"
	"github.com/couchcryptid/cset-bake/internal/config"
	"github.com/couchcryptid/cset-bake/internal/executor"
	"github.com/couchcryptid/cset-bake/internal/observability"
	"github.com/couchcryptid/cset-bake/internal/operators"
	"github.com/couchcryptid/cset-bake/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	deps := operators.Deps{Logger: logger}
	var statsWriter *kafkaadapter.Writer
	if cfg.StatisticsEnabled {
		statsWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaStatisticsTopic, logger)
		deps.Publisher = kafkaadapter.NewStatisticsPublisher(statsWriter, metrics)
		logger.Info("statistics publishing enabled", "topic", cfg.KafkaStatisticsTopic)
	} else {
		logger.Info("statistics publishing disabled")
	}

	ops := operators.NewDefault(deps)
	exec := executor.New(ops, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaResultTopic, logger)
	baker := pipeline.NewBaker(exec, logger)

	p := pipeline.New(reader, baker, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, ops, prometheus.DefaultGatherer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// HTTP server. A listen failure stops the pipeline too.
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Bake pipeline. It stops between recipe steps once gctx is done.
	g.Go(func() error {
		return p.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker error", "error", err)
	}

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if statsWriter != nil {
		if err := statsWriter.Close(); err != nil {
			logger.Error("kafka statistics writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
