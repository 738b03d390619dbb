package vm

import (
	"fun/internal/bytecode"
	"fun/internal/value"
)

const maxLocals = 64

// Frame is one call frame: its own bytecode block, instruction pointer, and
// fixed-size local slot table (§4.1.3, §4.4). Parameters occupy slots
// 0..argc-1; everything past that starts Nil.
type Frame struct {
	Chunk  *bytecode.Bytecode
	IP     int32
	Locals [maxLocals]value.Value

	// TryHandlers is the frame-local stack of TRY_PUSH targets; THROW
	// unwinds to the innermost one still active in this frame (§7).
	TryHandlers []int32
}

func newFrame(chunk *bytecode.Bytecode) *Frame {
	return &Frame{Chunk: chunk}
}
