package cox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueFalsey(t *testing.T) {
	assert.True(t, NilValue().IsFalsey())
	assert.True(t, BoolValue(false).IsFalsey())
	assert.False(t, BoolValue(true).IsFalsey())
	assert.False(t, NumberValue(0).IsFalsey())
	assert.False(t, NumberValue(1).IsFalsey())
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NumberValue(1).Equal(NumberValue(1)))
	assert.False(t, NumberValue(1).Equal(NumberValue(2)))
	assert.True(t, NilValue().Equal(NilValue()))
	assert.False(t, NilValue().Equal(BoolValue(false)))
	assert.True(t, BoolValue(true).Equal(BoolValue(true)))
}

func TestValueEqualInternedStrings(t *testing.T) {
	gc := NewGC(NewConfig())
	a := gc.copyString("hello")
	b := gc.copyString("hello")
	require.Same(t, a, b)
	assert.True(t, ObjValue(a.obj).Equal(ObjValue(b.obj)))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "7", NumberValue(7).String())
	assert.Equal(t, "1.5", NumberValue(1.5).String())
}
