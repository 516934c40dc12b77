//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/couchcryptid/cset-bake/internal/cube"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test and
// returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("cset-bake-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer func() { _ = ctrlConn.Close() }()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeForecast stores a small air temperature forecast under a fresh
// directory and returns the directory.
func writeForecast(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	temp, err := cube.New("air_temperature", "K", []string{"time", "latitude"}, []int{2, 2}, []float64{280, 284, 290, 294})
	require.NoError(t, err)
	temp.Coords = []cube.Coord{
		{Name: "time", Units: "hours", Points: []float64{0, 1}},
		{Name: "latitude", Units: "degrees_north", Points: []float64{-5, 5}},
	}
	require.NoError(t, cube.SaveNetCDF(filepath.Join(dir, "forecast.nc"), cube.CubeList{temp}, false))
	return dir
}
