package asyncinject

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCycleDetected indicates the requested dependency closure contains a cycle.
	ErrCycleDetected = errors.New("asyncinject: cycle detected")
	// ErrMissingDependency indicates a required name has no seed value, no
	// registered unit and no usable default.
	ErrMissingDependency = errors.New("asyncinject: missing dependency")
	// ErrUnnamedUnit indicates a unit without an intrinsic name was registered
	// without an explicit one.
	ErrUnnamedUnit = errors.New("asyncinject: unit has no name")
	// ErrNilUnit indicates a nil unit was supplied.
	ErrNilUnit = errors.New("asyncinject: nil unit")
	// ErrNilRun indicates a unit was built without a run function.
	ErrNilRun = errors.New("asyncinject: unit run function must not be nil")
	// ErrEmptyParam indicates a unit declared a parameter with an empty name.
	ErrEmptyParam = errors.New("asyncinject: parameter name must not be empty")
	// ErrDuplicateParam indicates a unit declared the same parameter twice.
	ErrDuplicateParam = errors.New("asyncinject: duplicate parameter")
	// ErrMissingArg indicates a unit was invoked without a value for one of its
	// required parameters. The planner prevents this for registry-driven runs,
	// so hitting it means a unit was invoked outside a plan.
	ErrMissingArg = errors.New("asyncinject: missing argument")
	// ErrNilWriter indicates a nil writer was provided to an exporter.
	ErrNilWriter = errors.New("asyncinject: nil writer")
)

// PlanError reports why an execution plan could not be built. It is returned
// before any unit executes.
type PlanError struct {
	// Missing lists names that are neither seeded, nor registered, nor covered
	// by a default on every unit that consumes them.
	Missing []string
	// Cycle lists names participating in a dependency cycle.
	Cycle []string
}

func (e *PlanError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		missing := append([]string(nil), e.Missing...)
		sort.Strings(missing)
		parts = append(parts, fmt.Sprintf("unresolvable names: %s", strings.Join(missing, ", ")))
	}
	if len(e.Cycle) > 0 {
		cycle := append([]string(nil), e.Cycle...)
		sort.Strings(cycle)
		parts = append(parts, fmt.Sprintf("cycle involving: %s", strings.Join(cycle, ", ")))
	}
	if len(parts) == 0 {
		return "asyncinject: invalid plan"
	}
	return "asyncinject: " + strings.Join(parts, "; ")
}

// Unwrap exposes the matching sentinel errors for errors.Is checks.
func (e *PlanError) Unwrap() []error {
	var errs []error
	if len(e.Missing) > 0 {
		errs = append(errs, ErrMissingDependency)
	}
	if len(e.Cycle) > 0 {
		errs = append(errs, ErrCycleDetected)
	}
	return errs
}

// UnitPanicError wraps a panic recovered from a work unit.
type UnitPanicError struct {
	Name  string
	Value any
}

func (e UnitPanicError) Error() string {
	return fmt.Sprintf("asyncinject: panic in unit %s: %v", e.Name, e.Value)
}
