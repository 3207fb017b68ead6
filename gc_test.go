package cox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCCollectsUnreachableStrings(t *testing.T) {
	config := NewConfig()
	config.SetBool("gc.stress", true)
	var buf bytes.Buffer

	vm := NewInterpreter(config)
	vm.SetOutput(&buf)

	err := vm.Interpret(`
var i = 0;
while (i < 50) {
  var s = "garbage" + "string";
  i = i + 1;
}
print i;
`)
	require.NoError(t, err)
	assert.Equal(t, "50\n", buf.String())
	assert.Greater(t, vm.gc.collections, 0)
}

func TestInternedStringsSurviveCollection(t *testing.T) {
	config := NewConfig()
	config.SetBool("gc.stress", true)
	var buf bytes.Buffer

	vm := NewInterpreter(config)
	vm.SetOutput(&buf)

	err := vm.Interpret(`
var a = "kept";
var i = 0;
while (i < 20) {
  var s = "temp" + "orary";
  i = i + 1;
}
print a;
`)
	require.NoError(t, err)
	assert.Equal(t, "kept\n", buf.String())
}
