package bytecode

// Instruction is a single (opcode, operand) pair. Operand meaning depends on
// the opcode: a constant index, a local/global slot, an absolute jump
// target, an argument count, a bit width, and so on.
type Instruction struct {
	Op      OpCode
	Operand int32
}

// Bytecode is a single compiled block: the flat instruction vector, its
// constant pool, and optional diagnostic metadata. The outer program and
// every nested function/class body each get their own Bytecode, linked
// together only through Function constants in the enclosing pool.
type Bytecode struct {
	Instructions []Instruction
	Constants    []interface{} // holds value.Value; interface{} here avoids an import cycle
	Name         string
	File         string

	// GlobalNames records, for a top-level program block only, the name
	// bound to each global slot in declaration order (slot i -> GlobalNames[i]).
	// Used by IMPORT to build the exported-globals namespace Map.
	GlobalNames []string
}

func New(file string) *Bytecode {
	return &Bytecode{File: file}
}

// Emit appends an instruction and returns its index, for later patching.
func (b *Bytecode) Emit(op OpCode, operand int32) int {
	b.Instructions = append(b.Instructions, Instruction{Op: op, Operand: operand})
	return len(b.Instructions) - 1
}

// Patch rewrites the operand of a previously emitted instruction, used to
// back-patch forward jumps once their target address is known.
func (b *Bytecode) Patch(at int, operand int32) {
	b.Instructions[at].Operand = operand
}

// Here returns the address the next Emit call will land on.
func (b *Bytecode) Here() int32 {
	return int32(len(b.Instructions))
}

func (b *Bytecode) AddConstant(v interface{}) int32 {
	b.Constants = append(b.Constants, v)
	return int32(len(b.Constants) - 1)
}
