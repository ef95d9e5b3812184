package asyncinject

import (
	"context"
	"fmt"
	"strings"
)

// RunFunc is the body of a work unit. It receives the values resolved for the
// unit's declared parameters and produces the unit's result.
type RunFunc func(ctx context.Context, args Args) (any, error)

type param struct {
	name       string
	hasDefault bool
	def        any
}

// private reports whether the parameter is injected out-of-band rather than
// resolved as a dependency. By convention these are underscore-prefixed.
func (p param) private() bool {
	return strings.HasPrefix(p.name, "_")
}

// Unit is a named work unit. Its parameters name the dependencies it needs;
// each is resolved from the caller's seed values, from another unit's result,
// or from the parameter's own default.
type Unit struct {
	name   string
	params []param
	run    RunFunc
}

// UnitOption configures a unit's parameter declarations.
type UnitOption func(*Unit)

// Needs declares required dependency parameters. A name with a leading
// underscore is treated as private: it is never resolved as a dependency and
// instead receives the live results view at invocation time.
func Needs(names ...string) UnitOption {
	return func(u *Unit) {
		for _, name := range names {
			u.params = append(u.params, param{name: name})
		}
	}
}

// Default declares a parameter with a default value. The name is omitted from
// dependency resolution unless a seed value or registered unit provides it.
func Default(name string, value any) UnitOption {
	return func(u *Unit) {
		u.params = append(u.params, param{name: name, hasDefault: true, def: value})
	}
}

// NewUnit builds a work unit. The declared parameters are validated here so
// a malformed declaration surfaces at construction rather than at plan time.
// An empty name is allowed; such a unit must be registered with As or resolved
// ad hoc via ResolveUnit.
func NewUnit(name string, run RunFunc, opts ...UnitOption) (*Unit, error) {
	if run == nil {
		return nil, ErrNilRun
	}
	u := &Unit{name: name, run: run}
	for _, opt := range opts {
		opt(u)
	}
	seen := make(map[string]struct{}, len(u.params))
	for _, p := range u.params {
		if p.name == "" {
			return nil, ErrEmptyParam
		}
		if _, dup := seen[p.name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParam, p.name)
		}
		seen[p.name] = struct{}{}
	}
	return u, nil
}

// MustUnit is NewUnit that panics on a declaration error.
func MustUnit(name string, run RunFunc, opts ...UnitOption) *Unit {
	u, err := NewUnit(name, run, opts...)
	if err != nil {
		panic(err)
	}
	return u
}

// Name returns the unit's intrinsic name, which may be empty for anonymous
// units.
func (u *Unit) Name() string {
	return u.name
}

// dependencies returns the parameter names that participate in dependency
// resolution, i.e. everything except private parameters.
func (u *Unit) dependencies() map[string]struct{} {
	deps := make(map[string]struct{}, len(u.params))
	for _, p := range u.params {
		if p.private() {
			continue
		}
		deps[p.name] = struct{}{}
	}
	return deps
}

// defaultFor reports whether the unit declares a default for the named
// parameter, and its value.
func (u *Unit) defaultFor(name string) (any, bool) {
	for _, p := range u.params {
		if p.name == name {
			return p.def, p.hasDefault
		}
	}
	return nil, false
}

// Args carries the resolved parameter values passed to a running unit.
type Args struct {
	values map[string]any
}

// Get returns the value resolved for the named parameter.
func (a Args) Get(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Results returns the live results view injected for a private parameter,
// or nil if the unit did not declare one.
func (a Args) Results(name string) *Results {
	if v, ok := a.values[name]; ok {
		if r, ok := v.(*Results); ok {
			return r
		}
	}
	return nil
}

// Arg retrieves a typed parameter value from args.
func Arg[T any](a Args, name string) (T, error) {
	var zero T
	v, ok := a.values[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingArg, name)
	}
	casted, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("asyncinject: argument %s has type %T, not %T", name, v, zero)
	}
	return casted, nil
}
