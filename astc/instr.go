package astc

// Instr is one decoded bytecode instruction.
type Instr struct {
	Op      Opcode
	PC      int    // byte offset of the opcode within the bytecode stream
	Size    int    // total encoded size (opcode byte + operands)
	Imm32   uint32 // CONST_I32/STORE_LOCAL/LOAD_LOCAL/JUMP/JUMP_IF_FALSE/CALL_USER operand
	Str     []byte // CONST_STRING payload bytes
	FuncID  uint16 // LIBC_CALL function id
	Argc    uint16 // LIBC_CALL argument count
}

// Node is a single node of the embedded AST payload form. Children and
// Value are type-specific, matching spec §3: "nodes carry type tag,
// source line/column, and type-specific children/values".
type Node struct {
	Type     string
	Line     uint32
	Column   uint32
	Value    interface{}
	Children []*Node
}
