package cox

import (
	"fmt"
	"io"
	"os"
)

// GC is the precise, non-moving, non-incremental tri-color
// mark-sweep collector (§4.5). It is the single allocation entry
// point (`allocate`) for every heap object in cox, and it is the only
// thing that ever frees one. It holds a reference back to the VM (for
// stack/frame/global/open-upvalue roots) and to the compiler chain
// currently being built, so a collection triggered mid-compilation
// still sees every live object.
type GC struct {
	config *Config

	objects *Obj // head of the intrusive list of every live object (§3)
	strings *Table // the interner; weak references, swept via removeWhite

	grayStack []*Obj // auxiliary worklist, host-allocated, not tracked

	bytesAllocated int
	nextGC         int

	vm       *VM        // supplies stack/frame/global/open-upvalue roots
	compiler *Compiler  // head of the enclosing-compiler chain, if compiling

	collections int
}

func NewGC(config *Config) *GC {
	return &GC{
		config: config,
		strings: NewTable(),
		nextGC:  config.GetInt("gc.initial_threshold"),
	}
}

// allocate links a freshly-made object into the tracked object list
// and returns its header, ready for the caller to populate the
// matching `as*` field. Every heap object in cox — strings,
// functions, closures, up-values, natives — is created exclusively
// through this one function (§3 Lifecycles, §4.5 "Cooperation").
func (gc *GC) allocate(typ ObjType) *Obj {
	gc.bytesAllocated++ // a coarse per-object accounting; real VMs count bytes, cox counts objects

	if gc.config.GetBool("gc.stress") || gc.bytesAllocated >= gc.nextGC {
		gc.collectGarbage()
	}

	obj := &Obj{typ: typ, next: gc.objects}
	gc.objects = obj
	return obj
}

// push/pop let an in-progress allocation (e.g. interning a freshly
// concatenated string) keep an intermediate object reachable from a
// root across a nested allocation that might itself trigger GC. With
// no VM attached there is no value stack, and both are no-ops.
func (gc *GC) push(v Value) {
	if gc.vm != nil {
		gc.vm.push(v)
	}
}

func (gc *GC) pop() Value {
	if gc.vm == nil {
		return NilValue()
	}
	return gc.vm.pop()
}

// collectGarbage runs one full mark-sweep cycle: mark every root,
// drain the gray worklist, strip unmarked interned strings, then
// sweep the object list (§4.5).
func (gc *GC) collectGarbage() {
	gc.collections++
	logging := gc.config.GetBool("gc.log")
	before := gc.bytesAllocated

	if logging {
		gc.logf("-- gc begin\n")
	}

	gc.markRoots()
	gc.traceReferences()
	gc.strings.removeWhite()
	freed := gc.sweep()
	gc.bytesAllocated -= freed

	gc.nextGC = gc.bytesAllocated * gc.config.GetInt("gc.grow_factor")
	if gc.nextGC < gc.config.GetInt("gc.initial_threshold") {
		gc.nextGC = gc.config.GetInt("gc.initial_threshold")
	}

	if logging {
		gc.logf("-- gc end: collected %d objects (%d -> %d), next at %d\n",
			freed, before, gc.bytesAllocated, gc.nextGC)
	}
}

// logf writes a GC diagnostic line to the VM's configured output, or
// stderr when no VM is attached yet (e.g. a GC driven directly in a
// test). Only called when gc.log is set.
func (gc *GC) logf(format string, args ...any) {
	var w io.Writer = os.Stderr
	if gc.vm != nil {
		w = gc.vm.out
	}
	fmt.Fprintf(w, format, args...)
}

// markRoots marks every root enumerated in §4.5: the VM value stack,
// every frame's closure, every open up-value, the globals table, and
// the chain of enclosing compilers.
func (gc *GC) markRoots() {
	if gc.vm != nil {
		for i := 0; i < gc.vm.stackTop; i++ {
			gc.markValue(gc.vm.stack[i])
		}
		for i := 0; i < gc.vm.frameCount; i++ {
			gc.markObject(gc.vm.frames[i].closure)
		}
		for uv := gc.vm.openUpvalues; uv != nil; uv = uv.asUpvalue.next {
			gc.markObject(uv)
		}
		gc.vm.globals.forEach(func(key *ObjStringData, value Value) {
			gc.markObject(key.obj)
			gc.markValue(value)
		})
	}

	for c := gc.compiler; c != nil; c = c.enclosing {
		if c.function != nil {
			gc.markObject(c.function)
		}
	}
}

func (gc *GC) markValue(v Value) {
	if v.IsObj() {
		gc.markObject(v.obj)
	}
}

// markObject marks obj and enqueues it on the gray worklist;
// already-marked objects are skipped so cycles terminate.
func (gc *GC) markObject(obj *Obj) {
	if obj == nil || obj.marked {
		return
	}
	obj.marked = true
	gc.grayStack = append(gc.grayStack, obj)
}

// traceReferences drains the gray worklist, blackening each object by
// marking everything it references (§4.5).
func (gc *GC) traceReferences() {
	for len(gc.grayStack) > 0 {
		obj := gc.grayStack[len(gc.grayStack)-1]
		gc.grayStack = gc.grayStack[:len(gc.grayStack)-1]
		gc.blacken(obj)
	}
}

func (gc *GC) blacken(obj *Obj) {
	switch obj.typ {
	case ObjClosure:
		cl := obj.asClosure
		gc.markObject(cl.function.obj)
		for _, uv := range cl.upvalues {
			gc.markObject(uv)
		}
	case ObjFunction:
		fn := obj.asFunction
		if fn.name != nil {
			gc.markObject(fn.name.obj)
		}
		if fn.chunk != nil {
			for i := 0; i < fn.chunk.constants.Len(); i++ {
				gc.markValue(fn.chunk.constants.Get(i))
			}
		}
	case ObjUpvalue:
		// Safe to mark even while open: `closed` is nil then, and
		// marking a nil object value is a no-op.
		gc.markValue(obj.asUpvalue.closed)
	case ObjString, ObjNative:
		// no outgoing references
	}
}

// sweep frees every unmarked object, unlinking it from the object
// list, and clears the mark bit on survivors. Returns the count of
// objects collected.
func (gc *GC) sweep() int {
	var (
		prev  *Obj
		freed int
	)
	obj := gc.objects
	for obj != nil {
		if obj.marked {
			obj.marked = false
			prev = obj
			obj = obj.next
			continue
		}

		unreached := obj
		obj = obj.next
		if prev != nil {
			prev.next = obj
		} else {
			gc.objects = obj
		}
		freed++
		_ = unreached // the Go GC reclaims it; nothing else to release
	}
	return freed
}
