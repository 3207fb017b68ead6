package cox

import (
	"fmt"
	"strings"
)

// ObjType tags the variant of a heap-allocated object.
type ObjType int

const (
	ObjString ObjType = iota
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjNative
)

// Obj is the common header every heap object carries: a type tag, the
// GC mark bit, and the intrusive next-pointer threading every live
// object into the single list rooted at the VM (§3). Exactly one of
// the `as*` fields is populated, matching the type tag.
type Obj struct {
	typ    ObjType
	marked bool
	next   *Obj

	asString   *ObjStringData
	asFunction *ObjFunctionData
	asClosure  *ObjClosureData
	asUpvalue  *ObjUpvalueData
	asNative   *ObjNativeData
}

func (o *Obj) TypeName() string {
	switch o.typ {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjNative:
		return "native"
	}
	return "obj"
}

func (o *Obj) String() string {
	switch o.typ {
	case ObjString:
		return o.asString.chars
	case ObjFunction:
		return o.asFunction.displayName()
	case ObjClosure:
		return o.asClosure.function.displayName()
	case ObjUpvalue:
		return "upvalue"
	case ObjNative:
		return "<native fn>"
	}
	return "<obj>"
}

// ObjStringData is an immutable, interned byte buffer. Two strings
// with identical content are always the same *Obj (§4.2).
type ObjStringData struct {
	obj   *Obj
	chars string
	hash  uint32
}

// ObjFunctionData is a compiled function: its arity, up-value count,
// optional name, and owned Chunk.
type ObjFunctionData struct {
	obj          *Obj // back-pointer, so a closure can mark its function via GC
	arity        int
	upvalueCount int
	name         *ObjStringData // nil for the top-level script
	chunk        *Chunk
}

func (f *ObjFunctionData) displayName() string {
	if f.name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.name.chars)
}

// ObjClosureData pairs a function with its captured up-values. The
// length of upvalues always equals function.upvalueCount (§3 invariant).
type ObjClosureData struct {
	function *ObjFunctionData
	upvalues []*Obj // each entry's Obj.typ == ObjUpvalue
}

// ObjUpvalueData is an indirection to a captured variable. While open,
// location points into the VM value stack; once closed, location
// points at the embedded `closed` slot instead (§3, §4.6). openIndex
// mirrors location's stack index while open — kept as a plain int
// rather than derived via pointer arithmetic — and is meaningless
// once the upvalue is closed.
type ObjUpvalueData struct {
	location  *Value
	closed    Value
	openIndex int
	next      *Obj // next open upvalue in the VM's sorted list; nil once closed
}

// NativeFn is the signature every native (host) function implements.
// A non-nil error is surfaced to the caller as a RuntimeError.
type NativeFn func(args []Value) (Value, error)

type ObjNativeData struct {
	name string
	fn   NativeFn
}

// fnv1a32 is the string hash cox uses everywhere a string needs a
// stable, cheap content hash (interning, the hash table).
func fnv1a32(s string) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

func concatStrings(a, b *ObjStringData) string {
	var sb strings.Builder
	sb.Grow(len(a.chars) + len(b.chars))
	sb.WriteString(a.chars)
	sb.WriteString(b.chars)
	return sb.String()
}
