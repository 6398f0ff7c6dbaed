package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNullIsIncomparable(t *testing.T) {
	assert.Equal(t, Incomparable, Compare(Null, Int(1), nil))
	assert.Equal(t, Incomparable, Compare(Null, Null, nil))
}

func TestCompareIntegerRealPromotion(t *testing.T) {
	assert.Equal(t, Equal, Compare(Int(2), Real(2.0), nil))
	assert.Equal(t, Less, Compare(Int(1), Real(1.5), nil))
}

func TestCompareTextNumericFallback(t *testing.T) {
	assert.Equal(t, Equal, Compare(Text("10"), Int(10), nil))
	// non-numeric text falls back to lexical compare against the number's string form
	assert.Equal(t, Greater, Compare(Text("z"), Int(10), nil))
}

func TestCompareCollation(t *testing.T) {
	assert.Equal(t, Equal, Compare(Text("ABC"), Text("abc"), &CollationNoCase))
	assert.NotEqual(t, Equal, Compare(Text("ABC"), Text("abc"), &CollationBinary))
}

func TestCompareJSONStructural(t *testing.T) {
	a := JSONValue(map[string]any{"x": 1.0, "y": 2.0})
	b := JSONValue(map[string]any{"y": 2.0, "x": 1.0})
	assert.Equal(t, Equal, Compare(a, b, nil))

	c := JSONValue([]any{1.0, 2.0})
	d := JSONValue([]any{2.0, 1.0})
	assert.Equal(t, Incomparable, Compare(c, d, nil))
}

func TestOrderWithNullsFirstLast(t *testing.T) {
	assert.Equal(t, Less, OrderWithNulls(Null, Int(1), nil, NullsFirst))
	assert.Equal(t, Greater, OrderWithNulls(Null, Int(1), nil, NullsLast))
}

func TestCoerceForArithmeticBigInt(t *testing.T) {
	a, b, ok := CoerceForArithmetic(BigInt(big.NewInt(10)), Int(5))
	assert.True(t, ok)
	assert.Equal(t, PhysicalBigInt, a.Physical)
	assert.Equal(t, PhysicalBigInt, b.Physical)
}

func TestValueCloneIndependentBlob(t *testing.T) {
	orig := Blob([]byte{1, 2, 3})
	clone := orig.Clone()
	clone.Blob[0] = 99
	assert.Equal(t, byte(1), orig.Blob[0])
}

func TestValidateAgainstNotNull(t *testing.T) {
	ok, kind := ValidateAgainst(Null, LogicalType{Physical: PhysicalInteger, Nullable: false})
	assert.False(t, ok)
	assert.Equal(t, "NOT NULL", kind)
}
