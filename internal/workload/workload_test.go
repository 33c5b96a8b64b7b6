package workload

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRunDeliversEveryProduct(t *testing.T) {
	for _, mode := range []Mode{Exclusive, Shared} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			cfg.Unit = 10 * time.Microsecond
			cfg.Jitter = 5 * time.Microsecond
			cfg.Logger = quietLogger()

			st, err := Run(context.Background(), cfg)
			require.NoError(t, err)

			assert.NotEmpty(t, st.RunID)
			assert.Equal(t, mode, st.Mode)
			assert.Equal(t, int64(cfg.Lots*cfg.ItemsPerLot), st.Pushed+st.PushFailed)
			assert.Zero(t, st.PushFailed, "lots fit in the job buffer")
			assert.Equal(t, st.Pushed, st.TotalPopped())
			assert.Len(t, st.Popped, cfg.Consumers)
		})
	}
}

func TestRunSheddingWhenLotExceedsBuffer(t *testing.T) {
	cfg := Config{
		Mode:        Exclusive,
		Consumers:   1,
		Lots:        1,
		ItemsPerLot: MaxProducts + 10,
		Wait:        ringqueue.SpinYield{Spins: 16},
		Logger:      quietLogger(),
	}

	st, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	// The exclusive producer holds the mutex for the whole lot, so the
	// consumer cannot drain and everything past the usable slots is shed.
	assert.Equal(t, int64(MaxProducts-1), st.Pushed)
	assert.Equal(t, int64(11), st.PushFailed)
	assert.Equal(t, st.Pushed, st.TotalPopped())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	st, err := Run(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, st.Pushed)
}

func TestNewSystemValidates(t *testing.T) {
	_, err := NewSystem(Config{})
	assert.Error(t, err)

	s, err := NewSystem(Config{Consumers: 1})
	require.NoError(t, err)
	assert.Zero(t, s.Count())
	require.NoError(t, s.Close())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Exclusive, Shared} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("sometimes")
	assert.Error(t, err)
}

func TestJitterBeyondUint32Range(t *testing.T) {
	assert.Zero(t, jitter(0))
	assert.Zero(t, jitter(-time.Second))

	// A limit just above 2^32 ns must not wrap around to a tiny range.
	limit := time.Duration(1<<32 + 1)
	var nonZero bool
	for i := 0; i < 100; i++ {
		d := jitter(limit)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.Less(t, d, limit)
		if d > 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero, "jitter collapsed to zero for a limit above the uint32 range")
}
