package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFabricGuard_TripsAfterThreshold(t *testing.T) {
	g := NewFabricGuard("fabric", 2, time.Millisecond)
	failing := errors.New("fabric unreachable")

	// each Run retries once, so one Run can account for up to 2 failures.
	err := g.Run(context.Background(), func() error { return failing })
	require.Error(t, err)
	assert.True(t, g.Tripped())

	err = g.Run(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrFabricUnavailable)
}

func TestFabricGuard_NeverRecoversOnceTripped(t *testing.T) {
	g := NewFabricGuard("fabric", 1, time.Millisecond)

	require.Error(t, g.Run(context.Background(), func() error { return errors.New("down") }))
	require.True(t, g.Tripped())

	calls := 0
	err := g.Run(context.Background(), func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrFabricUnavailable)
	assert.Equal(t, 0, calls, "a tripped guard must not invoke fn at all")
}

func TestFabricGuard_RetriesOnceBeforeFailing(t *testing.T) {
	g := NewFabricGuard("fabric", 5, time.Millisecond)

	calls := 0
	err := g.Run(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, g.Tripped())
}

func TestFabricGuard_SuccessResetsFailureCount(t *testing.T) {
	g := NewFabricGuard("fabric", 5, time.Millisecond)

	require.NoError(t, g.Run(context.Background(), func() error { return nil }))
	assert.Equal(t, int32(0), g.FailureCount())
}

func TestFabricGuard_ContextCancelledDuringRetryDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewFabricGuard("fabric", 5, 50*time.Millisecond)
	err := g.Run(ctx, func() error { return errors.New("down") })
	assert.Error(t, err)
	assert.False(t, g.Tripped(), "a cancelled retry wait should not count as a second failure")
}
