package cox

import (
	"fmt"
	"io"
)

// disassembleChunk prints every instruction in chunk, labeled. Driven
// by debug.print_code; not an interactive debugger (§1 Non-goals name
// debugging protocols out of scope — this is the minimal interface the
// original source's debug.h names).
func disassembleChunk(chunk *Chunk, name string, out io.Writer) {
	fmt.Fprintf(out, "== %s ==\n", name)
	for offset := 0; offset < chunk.Len(); {
		offset = disassembleInstruction(chunk, offset, out)
	}
}

// disassembleInstruction prints the instruction at offset and returns
// the offset of the next one.
func disassembleInstruction(chunk *Chunk, offset int, out io.Writer) int {
	fmt.Fprintf(out, "%04d ", offset)
	if offset > 0 && chunk.LineAt(offset) == chunk.LineAt(offset-1) {
		fmt.Fprint(out, "   | ")
	} else {
		fmt.Fprintf(out, "%4d ", chunk.LineAt(offset))
	}

	op := OpCode(chunk.ByteAt(offset))
	switch op {
	case OpConstant:
		return constantInstruction("OP_CONSTANT", chunk, offset, out)
	case OpNil:
		return simpleInstruction("OP_NIL", offset, out)
	case OpTrue:
		return simpleInstruction("OP_TRUE", offset, out)
	case OpFalse:
		return simpleInstruction("OP_FALSE", offset, out)
	case OpPop:
		return simpleInstruction("OP_POP", offset, out)
	case OpGetLocal:
		return byteInstruction("OP_GET_LOCAL", chunk, offset, out)
	case OpSetLocal:
		return byteInstruction("OP_SET_LOCAL", chunk, offset, out)
	case OpGetGlobal:
		return constantInstruction("OP_GET_GLOBAL", chunk, offset, out)
	case OpDefineGlobal:
		return constantInstruction("OP_DEFINE_GLOBAL", chunk, offset, out)
	case OpSetGlobal:
		return constantInstruction("OP_SET_GLOBAL", chunk, offset, out)
	case OpGetUpvalue:
		return byteInstruction("OP_GET_UPVALUE", chunk, offset, out)
	case OpSetUpvalue:
		return byteInstruction("OP_SET_UPVALUE", chunk, offset, out)
	case OpEqual:
		return simpleInstruction("OP_EQUAL", offset, out)
	case OpGreater:
		return simpleInstruction("OP_GREATER", offset, out)
	case OpLess:
		return simpleInstruction("OP_LESS", offset, out)
	case OpAdd:
		return simpleInstruction("OP_ADD", offset, out)
	case OpSubtract:
		return simpleInstruction("OP_SUBTRACT", offset, out)
	case OpMultiply:
		return simpleInstruction("OP_MULTIPLY", offset, out)
	case OpDivide:
		return simpleInstruction("OP_DIVIDE", offset, out)
	case OpNot:
		return simpleInstruction("OP_NOT", offset, out)
	case OpNegate:
		return simpleInstruction("OP_NEGATE", offset, out)
	case OpPrint:
		return simpleInstruction("OP_PRINT", offset, out)
	case OpJump:
		return jumpInstruction("OP_JUMP", 1, chunk, offset, out)
	case OpJumpIfFalse:
		return jumpInstruction("OP_JUMP_IF_FALSE", 1, chunk, offset, out)
	case OpLoop:
		return jumpInstruction("OP_LOOP", -1, chunk, offset, out)
	case OpCall:
		return byteInstruction("OP_CALL", chunk, offset, out)
	case OpClosure:
		return closureInstruction(chunk, offset, out)
	case OpCloseUpvalue:
		return simpleInstruction("OP_CLOSE_UPVALUE", offset, out)
	case OpReturn:
		return simpleInstruction("OP_RETURN", offset, out)
	default:
		fmt.Fprintf(out, "Unknown opcode %d\n", op)
		return offset + 1
	}
}

func simpleInstruction(name string, offset int, out io.Writer) int {
	fmt.Fprintln(out, name)
	return offset + 1
}

func byteInstruction(name string, chunk *Chunk, offset int, out io.Writer) int {
	slot := chunk.ByteAt(offset + 1)
	fmt.Fprintf(out, "%-16s %4d\n", name, slot)
	return offset + 2
}

func constantInstruction(name string, chunk *Chunk, offset int, out io.Writer) int {
	idx := chunk.ByteAt(offset + 1)
	fmt.Fprintf(out, "%-16s %4d '%s'\n", name, idx, chunk.Constant(int(idx)).String())
	return offset + 2
}

func jumpInstruction(name string, sign int, chunk *Chunk, offset int, out io.Writer) int {
	jump := int(chunk.ByteAt(offset+1))<<8 | int(chunk.ByteAt(offset+2))
	target := offset + 3 + sign*jump
	fmt.Fprintf(out, "%-16s %4d -> %d\n", name, offset, target)
	return offset + 3
}

func closureInstruction(chunk *Chunk, offset int, out io.Writer) int {
	offset++
	constant := chunk.ByteAt(offset)
	offset++
	fmt.Fprintf(out, "%-16s %4d '%s'\n", "OP_CLOSURE", constant, chunk.Constant(int(constant)).String())

	fn := chunk.Constant(int(constant)).AsFunction()
	for i := 0; i < fn.upvalueCount; i++ {
		isLocal := chunk.ByteAt(offset)
		offset++
		index := chunk.ByteAt(offset)
		offset++
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(out, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}
