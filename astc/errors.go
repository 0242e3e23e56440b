package astc

import "fmt"

// ErrInvalidAstcFormat is returned for header/magic/version/size
// mismatches, and for a truncated or malformed AST payload.
var ErrInvalidAstcFormat = fmt.Errorf("astc: invalid ASTC format")

// UnknownOpcodeError is returned (in strict mode) when the opcode byte
// at PC does not appear in the opcode table.
type UnknownOpcodeError struct {
	Op Opcode
	PC int
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("astc: unknown opcode 0x%02x at pc=%d", byte(e.Op), e.PC)
}

// TruncatedOperandError is returned when an operand would read past
// the end of the payload.
type TruncatedOperandError struct {
	Op Opcode
	PC int
}

func (e *TruncatedOperandError) Error() string {
	return fmt.Sprintf("astc: truncated operand for %s at pc=%d", e.Op, e.PC)
}

// ErrUnsupportedFeature names well-formed but unimplemented payload
// features. Read never returns it: every AST node kind decodes into a
// generic node.
var ErrUnsupportedFeature = fmt.Errorf("astc: unsupported feature")
