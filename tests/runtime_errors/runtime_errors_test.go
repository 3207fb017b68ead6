package runtime_errors

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwenhao/cox"
)

func TestSubtractingNumberFromStringFails(t *testing.T) {
	var buf bytes.Buffer
	vm := cox.NewInterpreter(cox.NewConfig())
	vm.SetOutput(&buf)

	err := vm.Interpret(`print "a" - 1;`)
	require.Error(t, err)

	var rtErr cox.RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, cox.TypeError, rtErr.Kind)
	assert.True(t, strings.HasPrefix(buf.String(), "Operands must be numbers."))
}

func TestCallingANonFunctionFails(t *testing.T) {
	var buf bytes.Buffer
	vm := cox.NewInterpreter(cox.NewConfig())
	vm.SetOutput(&buf)

	err := vm.Interpret(`var x = 1; x();`)
	require.Error(t, err)

	var rtErr cox.RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, cox.NotCallable, rtErr.Kind)
}

func TestCallingWithWrongArityFails(t *testing.T) {
	var buf bytes.Buffer
	vm := cox.NewInterpreter(cox.NewConfig())
	vm.SetOutput(&buf)

	err := vm.Interpret(`fun f(a, b) { return a + b; } f(1);`)
	require.Error(t, err)

	var rtErr cox.RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, cox.ArityMismatch, rtErr.Kind)
}
