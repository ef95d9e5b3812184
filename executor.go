package asyncinject

import (
	"context"
	"fmt"
	"time"
)

// now is overridden in tests to provide deterministic timings.
var now = time.Now

// runSequential consumes the plan's total order one unit at a time. Names
// with no unit to run are skipped: their value is already seeded or covered
// by consumer defaults. A failure stops the remaining plan.
func (r *Registry) runSequential(ctx context.Context, p *plan, results *Results, lookup func(string) (*Unit, bool), runID string) error {
	for _, name := range p.order {
		unit, ok := lookup(name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := r.invoke(ctx, name, unit, results, runID)
		if err != nil {
			return err
		}
		results.set(name, value)
	}
	return nil
}

type unitDone struct {
	name string
	err  error
}

// runParallel is readiness-driven: every ready unit is dispatched, and each
// completion event unlocks dependents immediately, so independent chains
// finish on their own critical paths rather than in lockstep generations.
// After the first failure no new units are dispatched; in-flight units run to
// completion and are never cancelled, but the call reports the failure.
func (r *Registry) runParallel(ctx context.Context, p *plan, results *Results, lookup func(string) (*Unit, bool), runID string) error {
	ready := append([]string(nil), p.ready...)
	doneCh := make(chan unitDone, len(p.order))
	inFlight := 0
	var firstErr error

	for {
		for len(ready) > 0 {
			name := ready[0]
			ready = ready[1:]
			if firstErr != nil {
				continue
			}
			unit, ok := lookup(name)
			if !ok {
				// Seed- or default-covered name: done without executing.
				ready = append(ready, p.complete(name)...)
				continue
			}
			if err := ctx.Err(); err != nil {
				firstErr = err
				continue
			}
			inFlight++
			n, u := name, unit
			r.dispatcher.Submit(func() {
				value, err := r.invoke(ctx, n, u, results, runID)
				if err == nil {
					results.set(n, value)
				}
				doneCh <- unitDone{name: n, err: err}
			})
		}

		if inFlight == 0 {
			break
		}
		done := <-doneCh
		inFlight--
		if done.err != nil {
			if firstErr == nil {
				firstErr = done.err
			}
			continue
		}
		ready = append(ready, p.complete(done.name)...)
	}

	return firstErr
}

// invoke runs a single unit with the subset of results matching its declared
// parameters. Private parameters receive the live results view; absent
// parameters fall back to their defaults. The timer callback fires exactly
// once per invocation, including failed ones, and panics surface as
// UnitPanicError.
func (r *Registry) invoke(ctx context.Context, name string, u *Unit, results *Results, runID string) (value any, err error) {
	args := Args{values: make(map[string]any, len(u.params))}
	for _, p := range u.params {
		if p.private() {
			args.values[p.name] = results
			continue
		}
		if v, ok := results.Get(p.name); ok {
			args.values[p.name] = v
			continue
		}
		if p.hasDefault {
			args.values[p.name] = p.def
			continue
		}
		return nil, fmt.Errorf("%w: %s needs %s", ErrMissingArg, name, p.name)
	}

	r.logger.Debug("run unit", "run_id", runID, "unit", name)

	start := now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = UnitPanicError{Name: name, Value: recovered}
		}
		end := now()
		results.recordTiming(name, start, end)
		if r.timer != nil {
			r.timer(name, start, end)
		}
	}()
	return u.run(ctx, args)
}
