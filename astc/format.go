// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package astc implements C5: parsing of the ASTC bytecode format
// (header, instruction stream, embedded AST) described in spec §3/§4.5.
//
// The decoding style — a fixed magic+version header read first, then a
// driven decode loop building one Instr per opcode — follows
// wasm.ReadModule's header handling and disasm.Disassemble's decode
// loop in the teacher repository.
package astc

// Magic is the 4-byte value at the start of every ASTC file.
var Magic = [4]byte{'A', 'S', 'T', 'C'}

// HeaderSize is the fixed size, in bytes, of the ASTC header.
const HeaderSize = 16

// MaxVersion is the highest header version this reader accepts.
const MaxVersion uint32 = 1

// Opcode identifies one ASTC bytecode instruction, per spec §3.
type Opcode byte

// Recognized opcodes. Numeric values are part of the wire format.
const (
	OpNop         Opcode = 0x00
	OpHalt        Opcode = 0x01
	OpConstI32    Opcode = 0x10
	OpConstString Opcode = 0x12
	OpAdd         Opcode = 0x20
	OpSub         Opcode = 0x21
	OpMul         Opcode = 0x22
	OpDiv         Opcode = 0x23
	OpStoreLocal  Opcode = 0x30
	OpLoadLocal   Opcode = 0x31
	OpJump        Opcode = 0x40
	OpJumpIfFalse Opcode = 0x41
	OpCallUser    Opcode = 0x50
	OpLibcCall    Opcode = 0xF0
)

// operandKind describes how to decode the operand(s) following an
// opcode byte. CONST_STRING and LIBC_CALL are special-cased in the
// reader because their widths aren't a single fixed byte count.
type operandKind int

const (
	operandNone operandKind = iota
	operandU32
	operandString // u32 length + bytes
	operandLibcCall
)

var operandKinds = map[Opcode]operandKind{
	OpNop:         operandNone,
	OpHalt:        operandNone,
	OpConstI32:    operandU32,
	OpConstString: operandString,
	OpAdd:         operandNone,
	OpSub:         operandNone,
	OpMul:         operandNone,
	OpDiv:         operandNone,
	OpStoreLocal:  operandU32,
	OpLoadLocal:   operandU32,
	OpJump:        operandU32,
	OpJumpIfFalse: operandU32,
	OpCallUser:    operandU32,
	OpLibcCall:    operandLibcCall,
}

// StackEffect returns (pops, pushes) for opcodes with a static stack
// effect, per spec §3's opcode table and testable property 4. HALT,
// CALL_USER and LIBC_CALL have dynamic effects and are not modeled here.
func (op Opcode) StackEffect() (pops, pushes int, ok bool) {
	switch op {
	case OpNop:
		return 0, 0, true
	case OpConstI32, OpConstString:
		return 0, 1, true
	case OpAdd, OpSub, OpMul, OpDiv:
		return 2, 1, true
	case OpStoreLocal:
		return 1, 0, true
	case OpLoadLocal:
		return 0, 1, true
	case OpJump:
		return 0, 0, true
	case OpJumpIfFalse:
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "NOP"
	case OpHalt:
		return "HALT"
	case OpConstI32:
		return "CONST_I32"
	case OpConstString:
		return "CONST_STRING"
	case OpAdd:
		return "ADD"
	case OpSub:
		return "SUB"
	case OpMul:
		return "MUL"
	case OpDiv:
		return "DIV"
	case OpStoreLocal:
		return "STORE_LOCAL"
	case OpLoadLocal:
		return "LOAD_LOCAL"
	case OpJump:
		return "JUMP"
	case OpJumpIfFalse:
		return "JUMP_IF_FALSE"
	case OpCallUser:
		return "CALL_USER"
	case OpLibcCall:
		return "LIBC_CALL"
	default:
		return "UNKNOWN"
	}
}

// Header is the fixed 16-byte ASTC file header.
type Header struct {
	Magic       [4]byte
	Version     uint32
	PayloadSize uint32
	EntryOffset uint32
}

// astFlag is the high bit of the on-disk Version word: spec §3 allows
// either a serialized AST or a flat bytecode stream to follow the
// header, and this reader (the format itself names no discriminator)
// needs some way to tell them apart that can never collide with a
// payload byte. The payload's first byte is a valid opcode in the
// bytecode case (e.g. 0x41 is JUMP_IF_FALSE), so any in-payload tag
// byte is ambiguous; the version word's top bit is outside the opcode
// space entirely and versions never get close to needing it.
const astFlag uint32 = 1 << 31
