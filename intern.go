package cox

// copyString interns bytes, allocating a fresh backing string only on
// a miss. It is the sole public route to produce a *copy* of
// caller-owned bytes as a cox string (§4.2).
func (gc *GC) copyString(chars string) *ObjStringData {
	hash := fnv1a32(chars)
	if interned := gc.strings.findString(chars, hash); interned != nil {
		return interned
	}
	return gc.allocateString(chars, hash)
}

// takeString interns a string that was already assembled (e.g. by
// concatenation); unlike copyString there is no separate "ownership"
// to release in Go, but the interning behavior — return the existing
// twin on a hit instead of allocating — is identical (§4.2).
func (gc *GC) takeString(chars string) *ObjStringData {
	hash := fnv1a32(chars)
	if interned := gc.strings.findString(chars, hash); interned != nil {
		return interned
	}
	return gc.allocateString(chars, hash)
}

func (gc *GC) allocateString(chars string, hash uint32) *ObjStringData {
	data := &ObjStringData{chars: chars, hash: hash}
	obj := gc.allocate(ObjString)
	obj.asString = data
	data.obj = obj

	// The string is kept on the VM stack as a root while it is
	// inserted into the interner. Table.Set grows with plain Go slices
	// and never calls allocate, so no collection starts during the
	// insertion itself; with no VM attached gc.push/gc.pop do nothing.
	gc.push(ObjValue(obj))
	gc.strings.Set(data, NilValue())
	gc.pop()

	return obj.asString
}
