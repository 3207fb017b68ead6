package cox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	vm := NewInterpreter(NewConfig())
	vm.SetOutput(&buf)
	err := vm.Interpret(source)
	return buf.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, "print 1 + 2 * 3;")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `var a = "foo"; var b = "bar"; print a + b;`)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", out)
}

func TestForLoopAccumulation(t *testing.T) {
	out, err := run(t, "var x = 0; for (var i = 0; i < 5; i = i + 1) x = x + i; print x;")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestClosuresAndUpvalues(t *testing.T) {
	out, err := run(t, `
fun makeCounter() { var n = 0; fun inc() { n = n + 1; return n; } return inc; }
var c = makeCounter();
print c();
print c();
print c();
`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestSharedUpvalueBetweenTwoClosures(t *testing.T) {
	out, err := run(t, `
fun make() {
  var n = 0;
  fun add() { n = n + 1; return n; }
  fun get() { return n; }
  var pair = get;
  add();
  add();
  return pair;
}
var getter = make();
print getter();
`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestRuntimeTypeErrorExitsWithTrace(t *testing.T) {
	out, err := run(t, `print "a" - 1;`)
	require.Error(t, err)
	var rtErr RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, TypeError, rtErr.Kind)
	assert.True(t, strings.Contains(out, "Operands must be numbers."))
	assert.True(t, strings.Contains(out, "[line 1] in script"))
}

func TestUndefinedVariableAssignmentDeletesGlobal(t *testing.T) {
	var buf bytes.Buffer
	vm := NewInterpreter(NewConfig())
	vm.SetOutput(&buf)

	err := vm.Interpret("x = 1;")
	require.Error(t, err)
	var rtErr RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, UndefinedVariable, rtErr.Kind)

	name := vm.gc.copyString("x")
	_, ok := vm.globals.Get(name)
	assert.False(t, ok, "globals must not retain a set-then-delete binding")
}

func TestIdempotentOutputAcrossRuns(t *testing.T) {
	source := "var x = 0; for (var i = 0; i < 3; i = i + 1) x = x + i; print x;"
	first, err := run(t, source)
	require.NoError(t, err)
	second, err := run(t, source)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNativeClock(t *testing.T) {
	out, err := run(t, "print clock() > 0;")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}
