package cox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSetGetDelete(t *testing.T) {
	gc := NewGC(NewConfig())
	table := NewTable()

	key := gc.copyString("answer")
	isNew := table.Set(key, NumberValue(42))
	assert.True(t, isNew)

	v, ok := table.Get(key)
	require.True(t, ok)
	assert.Equal(t, float64(42), v.AsNumber())

	isNew = table.Set(key, NumberValue(43))
	assert.False(t, isNew)

	deleted := table.Delete(key)
	assert.True(t, deleted)

	_, ok = table.Get(key)
	assert.False(t, ok)
}

func TestTableGrowsAndPreservesEntries(t *testing.T) {
	gc := NewGC(NewConfig())
	table := NewTable()

	keys := make([]*ObjStringData, 0, 64)
	for i := 0; i < 64; i++ {
		k := gc.copyString(fmt.Sprintf("key%d", i))
		keys = append(keys, k)
		table.Set(k, NumberValue(float64(i)))
	}

	for i, k := range keys {
		v, ok := table.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestTableTombstoneReusedOnReinsert(t *testing.T) {
	gc := NewGC(NewConfig())
	table := NewTable()

	a := gc.copyString("a")
	b := gc.copyString("b")
	table.Set(a, NumberValue(1))
	table.Set(b, NumberValue(2))

	table.Delete(a)
	countAfterDelete := table.Count()

	table.Set(a, NumberValue(3))
	assert.Equal(t, countAfterDelete, table.Count())

	v, ok := table.Get(b)
	require.True(t, ok)
	assert.Equal(t, float64(2), v.AsNumber())
}

func TestFindStringProbesByContent(t *testing.T) {
	table := NewTable()
	data := &ObjStringData{chars: "foo", hash: fnv1a32("foo")}
	data.obj = &Obj{typ: ObjString, asString: data}
	table.Set(data, NilValue())

	found := table.findString("foo", fnv1a32("foo"))
	require.NotNil(t, found)
	assert.Same(t, data, found)

	assert.Nil(t, table.findString("bar", fnv1a32("bar")))
}
