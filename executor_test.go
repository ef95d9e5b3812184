package asyncinject

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepUnit(name string, d time.Duration, value any, opts ...UnitOption) *Unit {
	return MustUnit(name, func(ctx context.Context, args Args) (any, error) {
		time.Sleep(d)
		return value, nil
	}, opts...)
}

func diamondRegistry(t *testing.T, executions *atomic.Int64, opts ...Option) *Registry {
	t.Helper()
	sum := func(names ...string) RunFunc {
		return func(ctx context.Context, args Args) (any, error) {
			total := 1
			for _, name := range names {
				v, err := Arg[int](args, name)
				if err != nil {
					return nil, err
				}
				total += v
			}
			return total, nil
		}
	}
	return NewRegistry([]*Unit{
		MustUnit("d", func(ctx context.Context, args Args) (any, error) {
			executions.Add(1)
			return 1, nil
		}),
		MustUnit("b", sum("d"), Needs("d")),
		MustUnit("c", sum("d"), Needs("d")),
		MustUnit("a", sum("b", "c"), Needs("b", "c")),
	}, opts...)
}

func TestDiamondExecutesSharedDependencyOnce(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		var executions atomic.Int64
		reg := diamondRegistry(t, &executions, WithParallel(parallel))

		result, err := reg.Resolve(context.Background(), "a", nil)
		require.NoError(t, err)
		assert.Equal(t, 5, result, "parallel=%v", parallel)
		assert.Equal(t, int64(1), executions.Load(), "parallel=%v", parallel)
	}
}

func TestParallelCompletesOnCriticalPath(t *testing.T) {
	// Two chains: a(100ms)→c(100ms) and b(200ms), joined by d. The call
	// should finish in about max(200ms, 200ms), not the 400ms sum.
	reg := NewRegistry([]*Unit{
		sleepUnit("a", 100*time.Millisecond, 1),
		sleepUnit("b", 200*time.Millisecond, 2),
		sleepUnit("c", 100*time.Millisecond, 3, Needs("a")),
		sleepUnit("d", 0, 4, Needs("b", "c")),
	})

	start := time.Now()
	result, err := reg.Resolve(context.Background(), "d", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 4, result)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 360*time.Millisecond, "chains must overlap, not serialize")
}

func TestSequentialSerializesAllUnits(t *testing.T) {
	reg := NewRegistry([]*Unit{
		sleepUnit("a", 50*time.Millisecond, 1),
		sleepUnit("b", 50*time.Millisecond, 2),
		sleepUnit("c", 0, 3, Needs("a", "b")),
	}, WithParallel(false))

	var mu sync.Mutex
	starts := make(map[string]time.Time)
	reg.timer = func(name string, start, end time.Time) {
		mu.Lock()
		starts[name] = start
		mu.Unlock()
	}

	begin := time.Now()
	_, err := reg.Resolve(context.Background(), "c", nil)
	elapsed := time.Since(begin)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond, "sequential time is the sum of unit latencies")

	mu.Lock()
	defer mu.Unlock()
	gap := starts["b"].Sub(starts["a"])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, 50*time.Millisecond, "independent units must not overlap in sequential mode")
}

func TestSequentialFailureStopsRemainingPlan(t *testing.T) {
	boom := errors.New("boom")
	var laterRan atomic.Bool
	reg := NewRegistry([]*Unit{
		MustUnit("fail", func(ctx context.Context, args Args) (any, error) {
			return nil, boom
		}),
		MustUnit("later", func(ctx context.Context, args Args) (any, error) {
			laterRan.Store(true)
			return nil, nil
		}, Needs("fail")),
	}, WithParallel(false))

	_, err := reg.Resolve(context.Background(), "later", nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, laterRan.Load())
}

func TestParallelFailureSurfacesWithoutCancellingSiblings(t *testing.T) {
	boom := errors.New("boom")
	var siblingFinished atomic.Bool
	var dependentRan atomic.Bool
	reg := NewRegistry([]*Unit{
		MustUnit("fail", func(ctx context.Context, args Args) (any, error) {
			return nil, boom
		}),
		MustUnit("sibling", func(ctx context.Context, args Args) (any, error) {
			time.Sleep(50 * time.Millisecond)
			siblingFinished.Store(true)
			return 1, nil
		}),
		MustUnit("dependent", func(ctx context.Context, args Args) (any, error) {
			dependentRan.Store(true)
			return 2, nil
		}, Needs("fail")),
	})

	_, err := reg.ResolveMulti(context.Background(), []string{"sibling", "dependent"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.True(t, siblingFinished.Load(), "in-flight siblings run to completion")
	assert.False(t, dependentRan.Load(), "dependents of a failed unit must not start")
}

func TestUnitPanicIsCaptured(t *testing.T) {
	reg := NewRegistry([]*Unit{
		MustUnit("panics", func(ctx context.Context, args Args) (any, error) {
			panic("kaboom")
		}),
	})

	_, err := reg.Resolve(context.Background(), "panics", nil)
	require.Error(t, err)

	var panicErr UnitPanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "panics", panicErr.Name)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestTimerFiresOncePerExecutedUnit(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		var mu sync.Mutex
		fired := make(map[string]int)
		timings := make(map[string]time.Duration)
		timer := func(name string, start, end time.Time) {
			mu.Lock()
			fired[name]++
			timings[name] = end.Sub(start)
			mu.Unlock()
		}

		reg := NewRegistry([]*Unit{
			sleepUnit("slow", 30*time.Millisecond, 1),
			valueUnit("x", 9),
			valueUnit("top", 2, Needs("slow", "x")),
		}, WithParallel(parallel), WithTimer(timer))

		// "x" is seeded, so its unit never runs and its timer never fires.
		_, err := reg.ResolveMulti(context.Background(), []string{"top"}, Values{"x": 5})
		require.NoError(t, err)

		mu.Lock()
		assert.Equal(t, map[string]int{"slow": 1, "top": 1}, fired, "parallel=%v", parallel)
		assert.GreaterOrEqual(t, timings["slow"], 30*time.Millisecond, "parallel=%v", parallel)
		mu.Unlock()
	}
}

func TestTimerFiresForFailedUnits(t *testing.T) {
	var fired atomic.Int64
	reg := NewRegistry([]*Unit{
		MustUnit("fail", func(ctx context.Context, args Args) (any, error) {
			return nil, errors.New("nope")
		}),
	}, WithTimer(func(name string, start, end time.Time) {
		fired.Add(1)
	}))

	_, err := reg.Resolve(context.Background(), "fail", nil)
	assert.Error(t, err)
	assert.Equal(t, int64(1), fired.Load())
}

func TestWorkerPoolDispatcherBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	current, maxObserved := 0, 0
	body := func(ctx context.Context, args Args) (any, error) {
		mu.Lock()
		current++
		if current > maxObserved {
			maxObserved = current
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
		return nil, nil
	}

	pool := NewWorkerPoolDispatcher(2)
	defer pool.Stop()

	units := make([]*Unit, 0, 5)
	names := []string{"u0", "u1", "u2", "u3", "u4"}
	for _, name := range names {
		units = append(units, MustUnit(name, body))
	}
	reg := NewRegistry(units, WithDispatcher(pool))

	_, err := reg.ResolveMulti(context.Background(), names, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxObserved, 2)
}

func TestResolveWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, parallel := range []bool{true, false} {
		var ran atomic.Bool
		reg := NewRegistry([]*Unit{
			MustUnit("a", func(ctx context.Context, args Args) (any, error) {
				ran.Store(true)
				return 1, nil
			}),
		}, WithParallel(parallel))

		_, err := reg.Resolve(ctx, "a", nil)
		assert.ErrorIs(t, err, context.Canceled, "parallel=%v", parallel)
		assert.False(t, ran.Load(), "parallel=%v", parallel)
	}
}

func TestTimingsRecordedInResults(t *testing.T) {
	reg := NewRegistry([]*Unit{
		sleepUnit("slow", 20*time.Millisecond, 1),
		MustUnit("probe", func(ctx context.Context, args Args) (any, error) {
			live := args.Results("_results")
			if live == nil {
				return nil, errors.New("no live results view")
			}
			timing, ok := live.Timing("slow")
			if !ok {
				return nil, errors.New("no timing for dependency")
			}
			return timing.Duration, nil
		}, Needs("slow", "_results")),
	})

	result, err := reg.Resolve(context.Background(), "probe", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.(time.Duration), 20*time.Millisecond)
}
