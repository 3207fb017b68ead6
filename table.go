package cox

// tableMaxLoad is the load factor ceiling; the table grows before an
// insertion would push count+1 past capacity*tableMaxLoad (§4.3).
const tableMaxLoad = 0.75

const tableInitialCapacity = 8

// entry is one bucket slot. A deleted key leaves a tombstone:
// key == nil, value == BoolValue(true), which probing still traverses
// but insertion may reuse (§3).
type entry struct {
	key   *ObjStringData
	value Value
}

// Table is the open-addressed, linearly-probed hash table backing
// both the globals store and the string interner (§4.3).
type Table struct {
	count    int // occupied slots, including tombstones
	entries  []entry
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Count() int { return t.count }

// findEntry returns the first matching entry or, failing that, the
// first tombstone seen before a truly empty bucket — so reinsertion
// prefers reusing a tombstone (§4.3). It always terminates because
// count+tombstones <= capacity*0.75 < capacity (§8 property 6).
func findEntry(entries []entry, key *ObjStringData) *entry {
	capacity := uint32(len(entries))
	index := key.hash % capacity
	var tombstone *entry

	for {
		e := &entries[index]
		switch {
		case e.key == nil:
			if e.value.IsNil() {
				// truly empty: return the tombstone we
				// passed, if any, else this slot.
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			// tombstone
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i] = entry{key: nil, value: NilValue()}
	}

	t.count = 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.key == nil {
			continue
		}
		dst := findEntry(entries, old.key)
		dst.key = old.key
		dst.value = old.value
		t.count++
	}

	t.entries = entries
}

// Set inserts or updates key/value, growing the table first if the
// new count would exceed the load factor. Returns true if key is new.
func (t *Table) Set(key *ObjStringData, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := tableInitialCapacity
		if len(t.entries) > 0 {
			capacity = len(t.entries) * 2
		}
		t.adjustCapacity(capacity)
	}

	e := findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && e.value.IsNil() {
		t.count++
	}

	e.key = key
	e.value = value
	return isNewKey
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key *ObjStringData) (Value, bool) {
	if len(t.entries) == 0 {
		return NilValue(), false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return NilValue(), false
	}
	return e.value, true
}

// Delete writes a tombstone in key's slot, returning whether a
// deletion actually occurred.
func (t *Table) Delete(key *ObjStringData) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = BoolValue(true)
	return true
}

// findString probes the table by raw content rather than by object
// identity: it walks buckets comparing length, the cached hash, then
// the bytes themselves. This is the sole way the interner answers "do
// we already have this string" without allocating (§4.2).
func (t *Table) findString(chars string, hash uint32) *ObjStringData {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash % capacity

	for {
		e := &t.entries[index]
		switch {
		case e.key == nil:
			if e.value.IsNil() {
				return nil
			}
		case e.key.hash == hash && len(e.key.chars) == len(chars) && e.key.chars == chars:
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// removeWhite deletes every key whose object is unmarked. Called by
// the GC after marking and before sweep, to break the interner's
// otherwise-dangling weak references (§4.3, §4.5).
func (t *Table) removeWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.obj.marked {
			t.Delete(e.key)
		}
	}
}

// forEach visits every live (non-tombstone) entry; used by the GC to
// mark the globals table's keys and values.
func (t *Table) forEach(fn func(key *ObjStringData, value Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}
