package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterval_FirstPauseWaits(t *testing.T) {
	every := 50 * time.Millisecond
	pauses := 0
	th := NewInterval(every, func() { pauses++ })

	start := time.Now()
	require.NoError(t, th.Pause(context.Background()))
	require.NoError(t, th.Pause(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Equal(t, 2, pauses)
	assert.Equal(t, every, th.Every())
}

func TestInterval_PauseAfterIdleWaitsFullInterval(t *testing.T) {
	every := 50 * time.Millisecond
	th := NewInterval(every, nil)

	require.NoError(t, th.Pause(context.Background()))
	time.Sleep(3 * every)

	start := time.Now()
	require.NoError(t, th.Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), every, "an idle gap must not shorten the next pause")
}

func TestInterval_FreshThrottleWaitsFullInterval(t *testing.T) {
	every := 50 * time.Millisecond
	th := NewInterval(every, nil)
	time.Sleep(2 * every)

	start := time.Now()
	require.NoError(t, th.Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), every)
}

func TestInterval_CancelledWhileWaiting(t *testing.T) {
	th := NewInterval(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	assert.ErrorIs(t, th.Pause(ctx), context.Canceled)
}

func TestInterval_CancelledContext(t *testing.T) {
	th := NewInterval(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, th.Pause(ctx))
}

func TestInterval_DeadlineShorterThanInterval(t *testing.T) {
	th := NewInterval(time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, th.Pause(ctx), "waiting past the deadline must fail fast")
}

func TestNoOp(t *testing.T) {
	assert.NoError(t, NoOp{}.Pause(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NoOp{}.Pause(ctx), context.Canceled)
}

func TestCounter(t *testing.T) {
	c := &Counter{}
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Pause(context.Background()))
	}
	assert.Equal(t, 3, c.Count())
}
