package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/couchcryptid/cset-bake/internal/domain"
	"github.com/couchcryptid/cset-bake/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeFetcher struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestMapMessageToRawRequest(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"id":"req-1"}`),
		Topic:     "cset-bake-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("scheduler")},
		},
	}

	raw := mapMessageToRawRequest(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"id":"req-1"}`, string(raw.Value))
	assert.Equal(t, "cset-bake-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "scheduler", raw.Headers["source"])
}

func TestReader_ExtractBatch(t *testing.T) {
	fetcher := &fakeFetcher{msgs: []kafkago.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	r := &Reader{reader: fetcher, flushInterval: 20 * time.Millisecond, logger: discardLogger()}

	t.Run("stops at batch size", func(t *testing.T) {
		batch, err := r.ExtractBatch(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, int64(1), batch[0].Offset)
		assert.Equal(t, int64(2), batch[1].Offset)
	})

	t.Run("flushes partial batch after interval", func(t *testing.T) {
		batch, err := r.ExtractBatch(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, batch, 1)

		require.NoError(t, batch[0].Commit(context.Background()))
		assert.Equal(t, []int64{3}, fetcher.committed)
	})

	t.Run("returns error when canceled before first message", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.ExtractBatch(ctx, 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, topic: "cset-bake-results", logger: discardLogger()}

	require.NoError(t, w.LoadBatch(context.Background(), nil))
	assert.Empty(t, fw.msgs)

	err := w.LoadBatch(context.Background(), []domain.OutputEvent{
		{Key: []byte("req-1"), Value: []byte(`{}`), Headers: map[string]string{"status": "succeeded", "finished_at": "2024-04-26T12:00:00Z"}},
		{Key: []byte("req-2"), Value: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("req-1"), fw.msgs[0].Key)
	require.Len(t, fw.msgs[0].Headers, 2)
	assert.Equal(t, "finished_at", fw.msgs[0].Headers[0].Key)
	assert.Equal(t, "status", fw.msgs[0].Headers[1].Key)
	assert.Equal(t, []byte("succeeded"), fw.msgs[0].Headers[1].Value)
	assert.Empty(t, fw.msgs[1].Headers)
}

func TestStatisticsPublisher(t *testing.T) {
	ev := domain.StatisticsEvent{
		Label:      "t2m",
		Statistics: cube.Statistics{Name: "air_temperature", Units: "K", Count: 2, Min: 1, Max: 2, Mean: 1.5},
		ComputedAt: time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC),
	}

	t.Run("success", func(t *testing.T) {
		fw := &fakeWriter{}
		m := observability.NewMetricsForTesting()
		p := NewStatisticsPublisher(&Writer{writer: fw, logger: discardLogger()}, m)

		require.NoError(t, p.PublishStatistics(context.Background(), ev))
		require.Len(t, fw.msgs, 1)
		assert.Equal(t, []byte("t2m"), fw.msgs[0].Key)
		assert.Contains(t, string(fw.msgs[0].Value), `"mean":1.5`)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StatisticsPublished.WithLabelValues("success")))
	})

	t.Run("write failure", func(t *testing.T) {
		fw := &fakeWriter{err: errors.New("leader not available")}
		m := observability.NewMetricsForTesting()
		p := NewStatisticsPublisher(&Writer{writer: fw, logger: discardLogger()}, m)

		err := p.PublishStatistics(context.Background(), ev)
		require.Error(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StatisticsPublished.WithLabelValues("error")))
	})
}
