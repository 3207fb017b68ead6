package closures

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwenhao/cox"
)

func runProgram(t *testing.T, source string) string {
	t.Helper()
	var buf bytes.Buffer
	vm := cox.NewInterpreter(cox.NewConfig())
	vm.SetOutput(&buf)
	require.NoError(t, vm.Interpret(source))
	return buf.String()
}

func TestCounterClosureAccumulatesAcrossCalls(t *testing.T) {
	out := runProgram(t, `
fun makeCounter() {
  var n = 0;
  fun inc() { n = n + 1; return n; }
  return inc;
}
var c = makeCounter();
print c();
print c();
print c();
`)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestIndependentCountersDoNotShareState(t *testing.T) {
	out := runProgram(t, `
fun makeCounter() {
  var n = 0;
  fun inc() { n = n + 1; return n; }
  return inc;
}
var a = makeCounter();
var b = makeCounter();
print a();
print a();
print b();
`)
	assert.Equal(t, "1\n2\n1\n", out)
}
