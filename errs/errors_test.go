package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstraintErrorCarriesNameAndExpression(t *testing.T) {
	err := Constraint("chk_age", "age >= 0", "value %d fails check", -1)
	assert.Equal(t, KindConstraint, err.Kind)
	assert.Contains(t, err.Error(), "chk_age")
	assert.Contains(t, err.Error(), "age >= 0")
}

func TestIsMatchesWrappedKind(t *testing.T) {
	inner := errors.New("driver says no")
	err := Wrap(KindVirtualTable, inner, "query failed")
	assert.True(t, Is(err, KindVirtualTable))
	assert.False(t, Is(err, KindInternal))
	assert.ErrorIs(t, err, inner)
}

func TestKindStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Kind(99).String())
}
