package asyncinject

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopRun(ctx context.Context, args Args) (any, error) {
	return nil, nil
}

func TestNewUnitValidation(t *testing.T) {
	_, err := NewUnit("a", nil)
	assert.ErrorIs(t, err, ErrNilRun)

	_, err = NewUnit("a", noopRun, Needs(""))
	assert.ErrorIs(t, err, ErrEmptyParam)

	_, err = NewUnit("a", noopRun, Needs("x"), Default("x", 1))
	assert.ErrorIs(t, err, ErrDuplicateParam)

	u, err := NewUnit("", noopRun, Needs("x"))
	require.NoError(t, err)
	assert.Empty(t, u.Name())
}

func TestUnitDependenciesExcludePrivateParams(t *testing.T) {
	u := MustUnit("a", noopRun, Needs("x", "_results"), Default("y", 2))

	deps := u.dependencies()
	assert.Contains(t, deps, "x")
	assert.Contains(t, deps, "y")
	assert.NotContains(t, deps, "_results")
}

func TestUnitDefaultFor(t *testing.T) {
	u := MustUnit("a", noopRun, Needs("x"), Default("y", 2))

	_, ok := u.defaultFor("x")
	assert.False(t, ok)

	v, ok := u.defaultFor("y")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = u.defaultFor("z")
	assert.False(t, ok)
}

func TestArgTypedAccessor(t *testing.T) {
	args := Args{values: map[string]any{"x": 5, "s": "hi"}}

	x, err := Arg[int](args, "x")
	require.NoError(t, err)
	assert.Equal(t, 5, x)

	_, err = Arg[int](args, "s")
	assert.Error(t, err)

	_, err = Arg[int](args, "missing")
	assert.ErrorIs(t, err, ErrMissingArg)
}

func TestMustUnitPanicsOnInvalidDeclaration(t *testing.T) {
	assert.Panics(t, func() {
		MustUnit("a", nil)
	})
}
