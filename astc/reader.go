package astc

import (
	"encoding/binary"
)

var byteOrder = binary.LittleEndian

// Options controls reader behavior not fixed by the wire format.
type Options struct {
	// Permissive, when true, decodes an unknown opcode as a NOP-
	// equivalent and continues instead of failing with
	// UnknownOpcodeError (spec §4.5, §7).
	Permissive bool
}

// Program is the parsed result of Read: the header plus whichever
// payload form was present.
type Program struct {
	Header Header
	// Instructions is populated when the payload is a flat bytecode
	// stream.
	Instructions []Instr
	// AST is populated when the payload is a serialized AST tree.
	AST *Node
}

// Read parses an ASTC byte stream: header, then either a bytecode
// instruction stream or a serialized AST, per spec §3/§4.5/§6.
func Read(data []byte, opts Options) (*Program, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidAstcFormat
	}
	var h Header
	copy(h.Magic[:], data[0:4])
	if h.Magic != Magic {
		return nil, ErrInvalidAstcFormat
	}
	rawVersion := byteOrder.Uint32(data[4:8])
	isAST := rawVersion&astFlag != 0
	h.Version = rawVersion &^ astFlag
	if h.Version > MaxVersion {
		return nil, ErrInvalidAstcFormat
	}
	h.PayloadSize = byteOrder.Uint32(data[8:12])
	h.EntryOffset = byteOrder.Uint32(data[12:16])

	if uint64(HeaderSize)+uint64(h.PayloadSize) != uint64(len(data)) {
		return nil, ErrInvalidAstcFormat
	}

	payload := data[HeaderSize:]
	if isAST {
		root, err := decodeAST(payload)
		if err != nil {
			return nil, err
		}
		return &Program{Header: h, AST: root}, nil
	}

	instrs, err := decodeInstructions(payload, opts)
	if err != nil {
		return nil, err
	}
	return &Program{Header: h, Instructions: instrs}, nil
}

func decodeInstructions(payload []byte, opts Options) ([]Instr, error) {
	var instrs []Instr
	pc := 0
	for pc < len(payload) {
		op := Opcode(payload[pc])
		start := pc
		pc++

		kind, known := operandKinds[op]
		if !known {
			if opts.Permissive {
				instrs = append(instrs, Instr{Op: OpNop, PC: start, Size: 1})
				continue
			}
			return nil, &UnknownOpcodeError{Op: op, PC: start}
		}

		instr := Instr{Op: op, PC: start}
		switch kind {
		case operandNone:
			// nothing to read
		case operandU32:
			v, err := readU32At(payload, pc, op, start)
			if err != nil {
				return nil, err
			}
			instr.Imm32 = v
			pc += 4
		case operandString:
			length, err := readU32At(payload, pc, op, start)
			if err != nil {
				return nil, err
			}
			pc += 4
			if pc+int(length) > len(payload) {
				return nil, &TruncatedOperandError{Op: op, PC: start}
			}
			instr.Str = append([]byte(nil), payload[pc:pc+int(length)]...)
			pc += int(length)
		case operandLibcCall:
			if pc+4 > len(payload) {
				return nil, &TruncatedOperandError{Op: op, PC: start}
			}
			instr.FuncID = binary.LittleEndian.Uint16(payload[pc : pc+2])
			instr.Argc = binary.LittleEndian.Uint16(payload[pc+2 : pc+4])
			pc += 4
		}

		instr.Size = pc - start
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func readU32At(payload []byte, pos int, op Opcode, start int) (uint32, error) {
	if pos+4 > len(payload) {
		return 0, &TruncatedOperandError{Op: op, PC: start}
	}
	return byteOrder.Uint32(payload[pos : pos+4]), nil
}

// decodeAST decodes a minimal self-describing AST tree:
//
//	u32 typeLen, type bytes, u32 line, u32 column, u32 valueLen, value bytes, u32 childCount, children...
//
// This mirrors the flat-record style of container's export table
// encoding, adapted to a recursive shape for tree payloads.
func decodeAST(buf []byte) (*Node, error) {
	n, _, err := decodeNode(buf, 0)
	return n, err
}

func decodeNode(buf []byte, pos int) (*Node, int, error) {
	readStr := func(p int) (string, int, error) {
		if p+4 > len(buf) {
			return "", 0, ErrInvalidAstcFormat
		}
		l := int(byteOrder.Uint32(buf[p : p+4]))
		p += 4
		if p+l > len(buf) {
			return "", 0, ErrInvalidAstcFormat
		}
		return string(buf[p : p+l]), p + l, nil
	}

	typ, pos, err := readStr(pos)
	if err != nil {
		return nil, 0, err
	}
	if pos+8 > len(buf) {
		return nil, 0, ErrInvalidAstcFormat
	}
	line := byteOrder.Uint32(buf[pos : pos+4])
	col := byteOrder.Uint32(buf[pos+4 : pos+8])
	pos += 8

	valStr, pos, err := readStr(pos)
	if err != nil {
		return nil, 0, err
	}

	if pos+4 > len(buf) {
		return nil, 0, ErrInvalidAstcFormat
	}
	childCount := byteOrder.Uint32(buf[pos : pos+4])
	pos += 4

	node := &Node{Type: typ, Line: line, Column: col, Value: valStr}
	for i := uint32(0); i < childCount; i++ {
		child, next, err := decodeNode(buf, pos)
		if err != nil {
			return nil, 0, err
		}
		node.Children = append(node.Children, child)
		pos = next
	}
	return node, pos, nil
}
