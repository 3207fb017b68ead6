package cox

// maxFrames bounds the call-frame stack (§4.6).
const maxFrames = 64

// stackSize is frames*locals-per-frame, matching §4.6's "max frames ×
// 256" value stack sizing (256 because a local slot index is one byte).
const stackSize = maxFrames * 256

// CallFrame is one activation record: the executing closure, an
// instruction pointer into that closure's function's chunk, and the
// base index into the VM's value stack — slots[0] is always the
// callee, slots[1:] are arguments then locals (§4.6).
type CallFrame struct {
	closure *Obj // Obj.typ == ObjClosure
	ip      int
	slots   int // base index into vm.stack
}

func (f *CallFrame) function() *ObjFunctionData {
	return f.closure.asClosure.function
}

func (f *CallFrame) chunk() *Chunk {
	return f.function().chunk
}
