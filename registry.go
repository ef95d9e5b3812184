package asyncinject

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var adhocCounter atomic.Uint64

// TimerFunc receives the start and end time of every executed unit.
type TimerFunc func(name string, start, end time.Time)

// Registry owns a table of named work units and resolves targets against it.
// Registration may interleave with resolution; each resolve call plans and
// executes over a consistent snapshot of the table.
type Registry struct {
	mu    sync.Mutex
	units map[string]*Unit
	graph map[string]map[string]struct{}

	parallel   bool
	timer      TimerFunc
	logger     *slog.Logger
	dispatcher Dispatcher
}

// Option configures a registry.
type Option func(*Registry)

// WithParallel selects between the concurrent executor (true, the default)
// and the strictly sequential one.
func WithParallel(parallel bool) Option {
	return func(r *Registry) {
		r.parallel = parallel
	}
}

// WithTimer installs a per-unit timing callback. It fires exactly once for
// every executed unit, in both modes; skipped names never fire it.
func WithTimer(timer TimerFunc) Option {
	return func(r *Registry) {
		r.timer = timer
	}
}

// WithLogger installs a structured logger. Plan and unit activity is logged
// at Debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDispatcher supplies a custom dispatcher for the concurrent executor.
// The registry never stops the dispatcher; a pool created with
// NewWorkerPoolDispatcher remains usable across resolve calls and is stopped
// by its owner.
func WithDispatcher(dispatcher Dispatcher) Option {
	return func(r *Registry) {
		if dispatcher != nil {
			r.dispatcher = dispatcher
		}
	}
}

// NewRegistry constructs an empty registry and registers any supplied units.
// Units passed here must carry an intrinsic name; NewRegistry panics
// otherwise, since there is no way to name them after the fact.
func NewRegistry(units []*Unit, opts ...Option) *Registry {
	r := &Registry{
		units:      make(map[string]*Unit),
		parallel:   true,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		dispatcher: goroutineDispatcher{},
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, u := range units {
		if err := r.Register(u); err != nil {
			panic(err)
		}
	}
	return r
}

type registerConfig struct {
	name string
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerConfig)

// As registers the unit under an explicit name instead of its intrinsic one.
func As(name string) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.name = name
	}
}

// Register stores the unit under the As name or, failing that, the unit's
// intrinsic name. A name collision silently overwrites the previous unit.
// Registration invalidates the cached dependency graph: a later registration
// can change the dependency closure of earlier ones, because names are
// resolved by lookup at plan time.
func (r *Registry) Register(u *Unit, opts ...RegisterOption) error {
	if u == nil {
		return ErrNilUnit
	}
	cfg := registerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	name := cfg.name
	if name == "" {
		name = u.name
	}
	if name == "" {
		return ErrUnnamedUnit
	}
	r.mu.Lock()
	r.units[name] = u
	r.graph = nil
	r.mu.Unlock()
	return nil
}

// Resolve computes the value for a registered (or seeded) name. Seed values
// take precedence over registered units of the same name and are never
// recomputed.
func (r *Registry) Resolve(ctx context.Context, name string, seed Values) (any, error) {
	results, err := r.resolve(ctx, []string{name}, nil, seed)
	if err != nil {
		return nil, err
	}
	value, _ := results.Get(name)
	return value, nil
}

// ResolveUnit resolves a unit value directly. If the unit is registered, it
// resolves by its registered name; otherwise it is planned as a one-off
// against the registry, its declared parameters queried exactly as if it had
// been registered first.
func (r *Registry) ResolveUnit(ctx context.Context, u *Unit, seed Values) (any, error) {
	if u == nil {
		return nil, ErrNilUnit
	}
	name, registered := r.nameOf(u)
	var overlay map[string]*Unit
	if !registered {
		name = u.name
		if name == "" {
			name = fmt.Sprintf("unit-%d", adhocCounter.Add(1))
		}
		overlay = map[string]*Unit{name: u}
	}
	results, err := r.resolve(ctx, []string{name}, overlay, seed)
	if err != nil {
		return nil, err
	}
	value, _ := results.Get(name)
	return value, nil
}

// ResolveMulti resolves a batch of named targets sharing one plan and one
// results map. It returns the full accumulated map: seed values, every
// intermediate dependency, and the targets themselves.
func (r *Registry) ResolveMulti(ctx context.Context, names []string, seed Values) (Values, error) {
	results, err := r.resolve(ctx, names, nil, seed)
	if err != nil {
		return nil, err
	}
	return results.Snapshot(), nil
}

// Validate checks that the full unit table forms an executable graph: acyclic,
// with every referenced name registered or default-covered.
func (r *Registry) Validate() error {
	units, graph := r.snapshot()
	targets := make([]string, 0, len(units))
	for name := range units {
		targets = append(targets, name)
	}
	_, err := buildPlan(targets, func(string) bool { return false }, tableLookup(units, nil), graphLookup(graph, nil))
	return err
}

// nameOf finds the name a unit is registered under, by identity.
func (r *Registry) nameOf(u *Unit) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, registered := range r.units {
		if registered == u {
			return name, true
		}
	}
	return "", false
}

func tableLookup(units map[string]*Unit, overlay map[string]*Unit) func(string) (*Unit, bool) {
	return func(name string) (*Unit, bool) {
		if u, ok := overlay[name]; ok {
			return u, true
		}
		u, ok := units[name]
		return u, ok
	}
}

func graphLookup(graph map[string]map[string]struct{}, overlay map[string]*Unit) func(string) (map[string]struct{}, bool) {
	return func(name string) (map[string]struct{}, bool) {
		if u, ok := overlay[name]; ok {
			return u.dependencies(), true
		}
		deps, ok := graph[name]
		return deps, ok
	}
}

func (r *Registry) resolve(ctx context.Context, targets []string, overlay map[string]*Unit, seed Values) (*Results, error) {
	units, graph := r.snapshot()
	lookup := tableLookup(units, overlay)
	results := newResults(seed)

	seeded := func(name string) bool {
		_, ok := results.Get(name)
		return ok
	}
	p, err := buildPlan(targets, seeded, lookup, graphLookup(graph, overlay))
	if err != nil {
		return nil, err
	}

	runID := uuid.Must(uuid.NewV7()).String()
	r.logger.Debug("resolving",
		"run_id", runID,
		"targets", targets,
		"units", len(p.order),
		"parallel", r.parallel,
	)

	if r.parallel {
		err = r.runParallel(ctx, p, results, lookup, runID)
	} else {
		err = r.runSequential(ctx, p, results, lookup, runID)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}
