package cox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOK(t *testing.T, source string) *Obj {
	t.Helper()
	gc := NewGC(NewConfig())
	fn, errs := Compile(source, gc)
	require.Empty(t, errs)
	require.NotNil(t, fn)
	return fn
}

func TestCompileSimpleExpression(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	assert.Greater(t, fn.asFunction.chunk.Len(), 0)
}

func TestCompileReturnFromScriptIsError(t *testing.T) {
	gc := NewGC(NewConfig())
	_, errs := Compile("return 1;", gc)
	require.Len(t, errs, 1)
	assert.Equal(t, ReturnFromScript, errs[0].Kind)
}

func TestCompileUseInOwnInitializerIsError(t *testing.T) {
	gc := NewGC(NewConfig())
	_, errs := Compile("{ var x = x; }", gc)
	require.Len(t, errs, 1)
	assert.Equal(t, UseInOwnInitializer, errs[0].Kind)
}

func TestCompileDuplicateInScopeIsError(t *testing.T) {
	gc := NewGC(NewConfig())
	_, errs := Compile("{ var x = 1; var x = 2; }", gc)
	require.Len(t, errs, 1)
	assert.Equal(t, DuplicateInScope, errs[0].Kind)
}

func TestCompileInvalidAssignmentTargetIsError(t *testing.T) {
	gc := NewGC(NewConfig())
	_, errs := Compile("1 + 2 = 3;", gc)
	require.Len(t, errs, 1)
	assert.Equal(t, InvalidAssignmentTarget, errs[0].Kind)
}

func TestCompileFunctionDeclaration(t *testing.T) {
	fn := compileOK(t, "fun add(a, b) { return a + b; } print add(1, 2);")
	assert.Greater(t, fn.asFunction.chunk.Len(), 0)
}

func TestJumpPatchIsWithinRange(t *testing.T) {
	fn := compileOK(t, "if (true) { print 1; } else { print 2; }")
	chunk := fn.asFunction.chunk
	for i := 0; i < chunk.Len(); i++ {
		if OpCode(chunk.ByteAt(i)) == OpJumpIfFalse || OpCode(chunk.ByteAt(i)) == OpJump {
			offset := int(chunk.ByteAt(i+1))<<8 | int(chunk.ByteAt(i+2))
			assert.LessOrEqual(t, i+3+offset, chunk.Len())
		}
	}
}
