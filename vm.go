package cox

import (
	"fmt"
	"io"
	"os"
)

// VM is the stack machine that executes a compiled Chunk to
// completion: a frame stack, a value stack, the globals table, and a
// reference to the collector that owns every heap object it touches
// (§4.6, §5).
type VM struct {
	frames     [maxFrames]CallFrame
	frameCount int

	stack    [stackSize]Value
	stackTop int

	globals *Table
	gc      *GC

	openUpvalues *Obj // head of the sorted (descending stack address) list; every entry has Obj.typ == ObjUpvalue

	config *Config
	out    io.Writer
}

func NewVM(config *Config) *VM {
	gc := NewGC(config)
	vm := &VM{
		globals: NewTable(),
		gc:      gc,
		config:  config,
		out:     os.Stdout,
	}
	gc.vm = vm
	return vm
}

// SetOutput redirects PRINT's destination; tests use this to capture
// output instead of writing to stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// Define registers a native function under name, reachable as a global
// from the moment it is called (§6 "Native registration").
func (vm *VM) Define(name string, fn NativeFn) {
	nameStr := vm.gc.copyString(name)
	vm.push(ObjValue(nameStr.obj))

	obj := vm.gc.allocate(ObjNative)
	obj.asNative = &ObjNativeData{name: name, fn: fn}

	vm.push(ObjValue(obj))
	vm.globals.Set(nameStr, vm.stack[vm.stackTop-1])
	vm.pop()
	vm.pop()
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles source and, on success, runs it to completion.
// Compile errors are returned as []CompileError wrapped in an error
// slice via CompileErrors; a runtime failure is returned as
// RuntimeError (§5, §7).
func (vm *VM) Interpret(source string) error {
	vm.gc.compiler = nil

	fnObj, errs := Compile(source, vm.gc)
	if len(errs) > 0 {
		return CompileErrors(errs)
	}

	if vm.config.GetBool("debug.print_code") {
		disassembleChunk(fnObj.asFunction.chunk, fnObj.asFunction.displayName(), vm.out)
	}

	vm.push(ObjValue(fnObj))
	closureObj := vm.gc.allocate(ObjClosure)
	closureObj.asClosure = &ObjClosureData{function: fnObj.asFunction}
	vm.pop()

	vm.push(ObjValue(closureObj))
	vm.call(closureObj, 0)

	return vm.run()
}

// CompileErrors bundles every accumulated compile error into one
// error value (§7: "compilation fails as a whole").
type CompileErrors []CompileError

func (e CompileErrors) Error() string {
	s := ""
	for i, ce := range e {
		if i > 0 {
			s += "\n"
		}
		s += ce.Error()
	}
	return s
}

// runtimeError builds a RuntimeError carrying the current frame trace
// (bottom-up, per §7), then resets the VM stack so the next Interpret
// call starts clean.
func (vm *VM) runtimeError(kind RuntimeErrorKind, format string, args ...any) RuntimeError {
	err := newRuntimeErrorf(kind, format, args...)

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.function()
		line := frame.chunk().LineAt(frame.ip - 1)
		name := "script"
		if fn.name != nil {
			name = fn.name.chars + "()"
		}
		err.Trace = append(err.Trace, frameTrace{Line: line, Name: name})
	}

	fmt.Fprintln(vm.out, err.Message)
	for _, t := range err.Trace {
		fmt.Fprintf(vm.out, "[line %d] in %s\n", t.Line, t.Name)
	}

	vm.resetStack()
	return err
}

// run is the fetch-decode dispatch loop (§4.6).
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	traceExecution := vm.config.GetBool("debug.trace_execution")

	readByte := func() byte {
		b := frame.chunk().ByteAt(frame.ip)
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() Value { return frame.chunk().Constant(int(readByte())) }
	readString := func() *ObjStringData { return readConstant().AsString() }

	for {
		if traceExecution {
			disassembleInstruction(frame.chunk(), frame.ip, vm.out)
		}

		op := OpCode(readByte())
		switch op {
		case OpConstant:
			vm.push(readConstant())

		case OpNil:
			vm.push(NilValue())
		case OpTrue:
			vm.push(BoolValue(true))
		case OpFalse:
			vm.push(BoolValue(false))

		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.slots+slot])
		case OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.slots+slot] = vm.peek(0)

		case OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(UndefinedVariable, "Undefined variable '%s'.", name.chars)
			}
			vm.push(v)

		case OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError(UndefinedVariable, "Undefined variable '%s'.", name.chars)
			}

		case OpGetUpvalue:
			slot := int(readByte())
			vm.push(*frame.closure.asClosure.upvalues[slot].asUpvalue.location)
		case OpSetUpvalue:
			slot := int(readByte())
			*frame.closure.asClosure.upvalues[slot].asUpvalue.location = vm.peek(0)

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(a.Equal(b)))

		case OpGreater:
			if err := vm.numericBinary(func(a, b float64) Value { return BoolValue(a > b) }); err != nil {
				return err
			}
		case OpLess:
			if err := vm.numericBinary(func(a, b float64) Value { return BoolValue(a < b) }); err != nil {
				return err
			}

		case OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case OpSubtract:
			if err := vm.numericBinary(func(a, b float64) Value { return NumberValue(a - b) }); err != nil {
				return err
			}
		case OpMultiply:
			if err := vm.numericBinary(func(a, b float64) Value { return NumberValue(a * b) }); err != nil {
				return err
			}
		case OpDivide:
			if err := vm.numericBinary(func(a, b float64) Value { return NumberValue(a / b) }); err != nil {
				return err
			}

		case OpNot:
			vm.push(BoolValue(vm.pop().IsFalsey()))

		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError(TypeError, "Operand must be a number.")
			}
			vm.push(NumberValue(-vm.pop().AsNumber()))

		case OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case OpJump:
			offset := readShort()
			frame.ip += offset
		case OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case OpLoop:
			offset := readShort()
			frame.ip -= offset

		case OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OpClosure:
			fnVal := readConstant()
			fnObj := fnVal.AsObj()
			closureObj := vm.gc.allocate(ObjClosure)
			fnData := fnObj.asFunction
			closureData := &ObjClosureData{function: fnData, upvalues: make([]*Obj, fnData.upvalueCount)}
			closureObj.asClosure = closureData
			vm.push(ObjValue(closureObj))

			for i := 0; i < fnData.upvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal != 0 {
					closureData.upvalues[i] = vm.captureUpvalue(frame.slots + index)
				} else {
					closureData.upvalues[i] = frame.closure.asClosure.upvalues[index]
				}
			}

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]
		}
	}
}

func (vm *VM) add() error {
	b, a := vm.peek(0), vm.peek(1)
	switch {
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		concatenated := concatStrings(a.AsString(), b.AsString())
		vm.push(ObjValue(vm.gc.takeString(concatenated).obj))
		return nil
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(NumberValue(a.AsNumber() + b.AsNumber()))
		return nil
	default:
		return vm.runtimeError(TypeError, "Operands must be two numbers or two strings.")
	}
}

func (vm *VM) numericBinary(op func(a, b float64) Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError(TypeError, "Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return nil
}

// callValue dispatches CALL on the tag of callee (§4.6).
func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.IsObj() {
		switch callee.AsObj().typ {
		case ObjClosure:
			return vm.call(callee.AsObj(), argCount)
		case ObjNative:
			native := callee.AsNative()
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := native.fn(args)
			if err != nil {
				return vm.runtimeError(TypeError, "%s", err.Error())
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		}
	}
	return vm.runtimeError(NotCallable, "Can only call functions and classes.")
}

func (vm *VM) call(closureObj *Obj, argCount int) error {
	fn := closureObj.asClosure.function
	if argCount != fn.arity {
		return vm.runtimeError(ArityMismatch, "Expected %d arguments but got %d.", fn.arity, argCount)
	}
	if vm.frameCount == maxFrames {
		return vm.runtimeError(StackOverflow, "Stack overflow.")
	}

	frame := &vm.frames[vm.frameCount]
	frame.closure = closureObj
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return nil
}

// captureUpvalue returns the existing open up-value for stack index
// slotIndex if one exists, else splices a new one into the
// descending-sorted list (§4.6).
func (vm *VM) captureUpvalue(slotIndex int) *Obj {
	var prev *Obj
	upvalue := vm.openUpvalues
	for upvalue != nil && upvalue.asUpvalue.openIndex > slotIndex {
		prev = upvalue
		upvalue = upvalue.asUpvalue.next
	}
	if upvalue != nil && upvalue.asUpvalue.openIndex == slotIndex {
		return upvalue
	}

	created := vm.gc.allocate(ObjUpvalue)
	created.asUpvalue = &ObjUpvalueData{location: &vm.stack[slotIndex], openIndex: slotIndex, next: upvalue}

	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.asUpvalue.next = created
	}
	return created
}

// closeUpvalues closes every open up-value at or above stack index
// last, copying its pointee into the embedded `closed` field (§4.6).
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.asUpvalue.openIndex >= last {
		uv := vm.openUpvalues.asUpvalue
		uv.closed = *uv.location
		uv.location = &uv.closed
		vm.openUpvalues = uv.next
		uv.next = nil
	}
}
