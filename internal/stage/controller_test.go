package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_AdvanceIsStrictlyMonotonic(t *testing.T) {
	c := NewController()
	require.Equal(t, Before, c.Current())

	c.Advance(EarlyStatic)
	require.Equal(t, EarlyStatic, c.Current())

	assert.Panics(t, func() { c.Advance(EarlyStatic) }, "same stage twice must panic")
	assert.Panics(t, func() { c.Advance(Before) }, "backward advance must panic")

	c.Advance(Static)
	c.Advance(EarlyRuntime)
	c.Advance(Runtime)
	c.Advance(Dynamic)
	require.Equal(t, Dynamic, c.Current())
}

func TestController_AdvanceToSentinelPanics(t *testing.T) {
	c := NewController()
	assert.Panics(t, func() { c.Advance(Abandoned) })
	assert.Panics(t, func() { c.Advance(Before) })
}

func TestController_WaitResolvesInOrder(t *testing.T) {
	c := NewController()
	ctx := context.Background()

	got := make(chan Stage, 8)
	for _, s := range []Stage{EarlyStatic, Static, Runtime} {
		s := s
		go func() {
			if err := c.Wait(ctx, s); err == nil {
				got <- s
			}
		}()
	}

	// Waiters are pending until the stage is reached.
	select {
	case s := <-got:
		t.Fatalf("stage %s resolved before any advance", s)
	case <-time.After(20 * time.Millisecond):
	}

	c.Advance(EarlyStatic)
	require.Equal(t, EarlyStatic, <-got)

	// Jumping to Runtime resolves the passed-over Static gate too.
	c.Advance(Runtime)
	first, second := <-got, <-got
	require.ElementsMatch(t, []Stage{Static, Runtime}, []Stage{first, second})
}

func TestController_WaitOnReachedStageReturnsImmediately(t *testing.T) {
	c := NewController()
	c.Advance(Static)
	require.NoError(t, c.Wait(context.Background(), EarlyStatic))
	require.NoError(t, c.Wait(context.Background(), Static))
}

func TestController_AbandonmentIsIdempotentAndTerminal(t *testing.T) {
	c := NewController()
	c.Advance(EarlyStatic)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Wait(context.Background(), Runtime) }()

	c.Abandon("cache miss on segment root")
	c.Abandon("second abandon must not override")

	err := <-errCh
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInterrupted)

	var ie *InterruptError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "cache miss on segment root", ie.Reason)
	assert.False(t, ie.SyncIO)

	// Abandonment wins over any further advance.
	c.Advance(Static)
	assert.Equal(t, Abandoned, c.Current())
	assert.True(t, c.Abandoned())
}

func TestController_SyncInterruptReason(t *testing.T) {
	c := NewController()
	c.AbandonSyncIO("time.Now")
	require.True(t, c.SyncInterrupt())

	ie := c.InterruptReason()
	require.NotNil(t, ie)
	assert.Contains(t, ie.Reason, "time.Now")
}

func TestController_AbortContextAbandons(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := NewController(WithAbortContext(ctx))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Wait(context.Background(), Dynamic) }()

	cancel(errors.New("request torn down"))

	err := <-errCh
	require.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, c.Abandoned())
}

func TestController_AbortContextAbandonsAlongsideOtherListeners(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := NewController(WithAbortContext(ctx))
	fired := make(chan struct{})
	context.AfterFunc(ctx, func() { close(fired) })

	cancel(errors.New("request torn down"))

	// Each listener runs in its own goroutine; both must fire, in either
	// order.
	<-fired
	assert.Eventually(t, c.Abandoned, time.Second, time.Millisecond)
}

func TestDelayUntil_GatesValueOnStage(t *testing.T) {
	c := NewController()
	ctx := context.Background()

	f := DelayUntil(ctx, c, Runtime, "cookies", "session=abc")
	require.False(t, f.Settled())

	c.Advance(EarlyStatic)
	require.False(t, f.Settled())

	c.Advance(Runtime)
	v, err := f.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session=abc", v)
}

func TestDelayUntil_RejectsOnAbandonment(t *testing.T) {
	c := NewController()
	f := DelayUntil(context.Background(), c, Dynamic, "headers", "x")

	c.Abandon("cold cache")

	_, err := f.Get(context.Background())
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Contains(t, err.Error(), "headers")
}

func TestStage_EnvironmentLabels(t *testing.T) {
	assert.Equal(t, "Prerender", Before.EnvironmentLabel())
	assert.Equal(t, "Prerender", EarlyStatic.EnvironmentLabel())
	assert.Equal(t, "Prefetch", Static.EnvironmentLabel())
	assert.Equal(t, "Prefetchable", EarlyRuntime.EnvironmentLabel())
	assert.Equal(t, "Server", Runtime.EnvironmentLabel())
	assert.Equal(t, "Server", Dynamic.EnvironmentLabel())
}
