package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/cset-bake/internal/cube"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInputPath  = "/data/forecast"
	testOutputPath = "/data/out/mean.nc"
	testRecipe     = "steps:\n  - operator: misc.noop\n"
)

func TestParseRawRequest(t *testing.T) {
	receivedAt := time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC)

	t.Run("recipe as string", func(t *testing.T) {
		data := []byte(`{"id":"nightly","recipe":"steps:\n  - operator: misc.noop\n","input_path":"/data/forecast","output_path":"/data/out/mean.nc"}`)
		req, err := ParseRawRequest(RawRequest{Value: data, Timestamp: receivedAt})

		require.NoError(t, err)
		assert.Equal(t, "nightly", req.ID)
		assert.Equal(t, testRecipe, string(req.Recipe))
		assert.Equal(t, testInputPath, req.InputPath)
		assert.Equal(t, testOutputPath, req.OutputPath)
		assert.Equal(t, receivedAt, req.RequestedAt)
	})

	t.Run("recipe as inline object", func(t *testing.T) {
		data := []byte(`{"recipe":{"steps":[{"operator":"misc.noop"}]},"input_path":"/in","output_path":"/out.nc"}`)
		req, err := ParseRawRequest(RawRequest{Value: data})

		require.NoError(t, err)
		assert.JSONEq(t, `{"steps":[{"operator":"misc.noop"}]}`, string(req.Recipe))
		assert.True(t, strings.HasPrefix(req.ID, "bake-"))
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawRequest(RawRequest{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw request")
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := ParseRawRequest(RawRequest{Value: []byte(`{"recipe":""}`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing recipe, input_path, output_path")
	})

	t.Run("null recipe", func(t *testing.T) {
		_, err := ParseRawRequest(RawRequest{Value: []byte(`{"recipe":null,"input_path":"/in","output_path":"/out.nc"}`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing recipe")
	})

	t.Run("deterministic ID", func(t *testing.T) {
		data := []byte(`{"recipe":"steps: []","input_path":"/in","output_path":"/out.nc"}`)
		req1, err := ParseRawRequest(RawRequest{Value: data})
		require.NoError(t, err)
		req2, err := ParseRawRequest(RawRequest{Value: data})
		require.NoError(t, err)
		assert.Equal(t, req1.ID, req2.ID)
	})
}

func TestGenerateID(t *testing.T) {
	t.Run("prefix", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(generateID([]byte(testRecipe), testInputPath, testOutputPath), "bake-"))
	})

	t.Run("different inputs produce different IDs", func(t *testing.T) {
		id1 := generateID([]byte(testRecipe), testInputPath, testOutputPath)
		id2 := generateID([]byte(testRecipe), testInputPath, "/data/out/other.nc")
		assert.NotEqual(t, id1, id2)
	})
}

func TestBakeResult_Lifecycle(t *testing.T) {
	start := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(start)
	SetClock(fake)
	defer SetClock(nil)

	req := BakeRequest{ID: "req-1", InputPath: testInputPath, OutputPath: testOutputPath}

	t.Run("succeeded", func(t *testing.T) {
		res := StartResult(req)
		fake.Advance(3 * time.Second)
		res = res.Succeed("air_temperature / (K) (latitude: 3)")

		assert.Equal(t, "req-1", res.RequestID)
		assert.Equal(t, StatusSucceeded, res.Status)
		assert.Equal(t, 3*time.Second, res.Duration())
		assert.Empty(t, res.Error)
	})

	t.Run("failed", func(t *testing.T) {
		res := StartResult(req).Fail(errors.New("boom"), "operator")
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, "boom", res.Error)
		assert.Equal(t, "operator", res.ErrorKind)
	})

	t.Run("unfinished has no duration", func(t *testing.T) {
		assert.Zero(t, StartResult(req).Duration())
	})
}

func TestSerializeBakeResult(t *testing.T) {
	finished := time.Date(2024, 4, 26, 12, 0, 5, 0, time.UTC)
	res := BakeResult{
		RequestID:  "req-1",
		Status:     StatusFailed,
		Error:      `unknown operator "misc.nope"`,
		ErrorKind:  "unknown_operator",
		FinishedAt: finished,
	}

	out, err := SerializeBakeResult(res)
	require.NoError(t, err)
	assert.Equal(t, []byte("req-1"), out.Key)
	assert.Equal(t, "failed", out.Headers["status"])
	assert.Equal(t, "2024-04-26T12:00:05Z", out.Headers["finished_at"])

	var decoded BakeResult
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, res, decoded)
}

func TestSerializeStatisticsEvent(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	st := cube.Statistics{Name: "air_temperature", Units: "K", Count: 4, Min: 280, Max: 290, Mean: 285}

	t.Run("keyed by label", func(t *testing.T) {
		out, err := SerializeStatisticsEvent(NewStatisticsEvent("domain mean", st))
		require.NoError(t, err)
		assert.Equal(t, []byte("domain mean"), out.Key)
		assert.Equal(t, "air_temperature", out.Headers["cube"])
		assert.Equal(t, "2024-04-26T12:00:00Z", out.Headers["computed_at"])

		var decoded StatisticsEvent
		require.NoError(t, json.Unmarshal(out.Value, &decoded))
		assert.Equal(t, st, decoded.Statistics)
	})

	t.Run("falls back to cube name", func(t *testing.T) {
		out, err := SerializeStatisticsEvent(NewStatisticsEvent("", st))
		require.NoError(t, err)
		assert.Equal(t, []byte("air_temperature"), out.Key)
	})
}

func TestSetClock(t *testing.T) {
	fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	assert.Equal(t, fixedTime, clock.Now())

	SetClock(nil)
	assert.True(t, time.Since(clock.Now()) < time.Second)
}
