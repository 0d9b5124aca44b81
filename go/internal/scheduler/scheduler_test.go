package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTickers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func receive(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func TestScheduler_TicksUntilFuncReturnsFalse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock))

	ticks := make(chan int, 10)
	var count int32
	s.Start("m1", func(ctx context.Context) bool {
		n := int(atomic.AddInt32(&count, 1))
		ticks <- n
		return n < 3
	})
	assert.True(t, s.Running("m1"))

	for want := 1; want <= 3; want++ {
		waitForTickers(t, clock, 1)
		clock.Advance(time.Second)
		assert.Equal(t, want, receive(t, ticks))
	}

	assert.Eventually(t, func() bool { return !s.Running("m1") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_StopBeforeFirstTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock))

	var calls int32
	s.Start("m1", func(ctx context.Context) bool {
		atomic.AddInt32(&calls, 1)
		return true
	})
	waitForTickers(t, clock, 1)

	assert.True(t, s.Stop("m1"))
	assert.False(t, s.Stop("m1"))
	clock.Advance(5 * time.Second)

	s.Shutdown()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestScheduler_StopCancelsContextSynchronously(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock))

	ctxCh := make(chan context.Context, 1)
	release := make(chan struct{})
	s.Start("m1", func(ctx context.Context) bool {
		ctxCh <- ctx
		<-release
		return true
	})
	waitForTickers(t, clock, 1)
	clock.Advance(time.Second)

	var tickCtx context.Context
	select {
	case tickCtx = <-ctxCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never ran")
	}
	require.NoError(t, tickCtx.Err())

	s.Stop("m1")
	assert.ErrorIs(t, tickCtx.Err(), context.Canceled)

	close(release)
	s.Shutdown()
}

func TestScheduler_StartReplacesExistingTask(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock))

	var first, second int32
	s.Start("m1", func(ctx context.Context) bool {
		atomic.AddInt32(&first, 1)
		return true
	})
	waitForTickers(t, clock, 1)

	ticks := make(chan int, 100)
	s.Start("m1", func(ctx context.Context) bool {
		select {
		case ticks <- int(atomic.AddInt32(&second, 1)):
		default:
		}
		return true
	})
	assert.Equal(t, 1, s.Active())

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		select {
		case <-ticks:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	s.Shutdown()
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestScheduler_IndependentMatches(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock))

	a := make(chan int, 4)
	b := make(chan int, 4)
	s.Start("a", func(ctx context.Context) bool { a <- 1; return true })
	s.Start("b", func(ctx context.Context) bool { b <- 1; return true })
	waitForTickers(t, clock, 2)

	s.Stop("a")
	clock.Advance(time.Second)
	receive(t, b)

	s.Shutdown()
	assert.Empty(t, a)
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_ShutdownStopsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(WithClock(clock), WithInterval(500*time.Millisecond))

	for _, id := range []string{"a", "b", "c"} {
		s.Start(id, func(ctx context.Context) bool { return true })
	}
	assert.Equal(t, 3, s.Active())

	s.Shutdown()
	assert.Equal(t, 0, s.Active())
	assert.False(t, s.Running("a"))
}
