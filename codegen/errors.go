package codegen

import "fmt"

// ErrEmitBufferExhausted names a backend that cannot grow its
// instruction buffer further. No code in this module returns it:
// golang-asm's Prog pool grows on demand.
var ErrEmitBufferExhausted = fmt.Errorf("codegen: emit buffer exhausted")

// ErrAllocError names a host allocation failure during code
// generation. No code in this module returns it.
var ErrAllocError = fmt.Errorf("codegen: allocation failed")

// UnsupportedArchError is returned by NewBackend for an architecture
// name with no backend implementation.
type UnsupportedArchError struct {
	Arch string
}

func (e *UnsupportedArchError) Error() string {
	return fmt.Sprintf("codegen: unsupported architecture %q", e.Arch)
}

// InvalidInstructionSequenceError describes an opcode whose static
// stack effect would underflow the symbolic operand stack. The driver
// does not track a symbolic stack depth, and no code in this module
// returns this error.
type InvalidInstructionSequenceError struct {
	PC     int
	Detail string
}

func (e *InvalidInstructionSequenceError) Error() string {
	return fmt.Sprintf("codegen: invalid instruction sequence at pc=%d: %s", e.PC, e.Detail)
}

// UnpatchableJumpError is returned when a forward branch's target pc
// was never emitted.
type UnpatchableJumpError struct {
	TargetPC int
}

func (e *UnpatchableJumpError) Error() string {
	return fmt.Sprintf("codegen: unpatchable jump to pc=%d", e.TargetPC)
}

// CompilationFailedError wraps an underlying cause with the pc at
// which compilation gave up.
type CompilationFailedError struct {
	PC    int
	Cause error
}

func (e *CompilationFailedError) Error() string {
	return fmt.Sprintf("codegen: compilation failed at pc=%d: %v", e.PC, e.Cause)
}

func (e *CompilationFailedError) Unwrap() error { return e.Cause }
