package arithmetic

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

func TestOperatorPrecedenceAndGrouping(t *testing.T) {
	assert.Equal(t, "7\n", runProgram(t, "print 1 + 2 * 3;"))
	assert.Equal(t, "9\n", runProgram(t, "print (1 + 2) * 3;"))
}

func TestNegationAndComparison(t *testing.T) {
	assert.Equal(t, "true\n", runProgram(t, "print -1 < 0;"))
	assert.Equal(t, "false\n", runProgram(t, "print 1 >= 2;"))
}
