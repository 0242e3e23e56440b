package astc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildProgram(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Magic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(payload)
	return buf.Bytes()
}

// TestS1ConstantArithmetic implements scenario S1: push 5, push 7, add, halt.
func TestS1ConstantArithmetic(t *testing.T) {
	payload := []byte{
		byte(OpConstI32), 5, 0, 0, 0,
		byte(OpConstI32), 7, 0, 0, 0,
		byte(OpAdd),
		byte(OpHalt),
	}
	data := buildProgram(t, payload)

	prog, err := Read(data, Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(prog.Instructions) != 4 {
		t.Fatalf("got %d instructions, want 4", len(prog.Instructions))
	}
	if prog.Instructions[0].Op != OpConstI32 || prog.Instructions[0].Imm32 != 5 {
		t.Fatalf("instr 0: %+v", prog.Instructions[0])
	}
	if prog.Instructions[1].Imm32 != 7 {
		t.Fatalf("instr 1: %+v", prog.Instructions[1])
	}
	if prog.Instructions[2].Op != OpAdd {
		t.Fatalf("instr 2: %+v", prog.Instructions[2])
	}
	if prog.Instructions[3].Op != OpHalt {
		t.Fatalf("instr 3: %+v", prog.Instructions[3])
	}
}

func TestConstString(t *testing.T) {
	str := []byte("hi\n")
	payload := []byte{byte(OpConstString)}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(str)))
	payload = append(payload, lenBuf...)
	payload = append(payload, str...)
	payload = append(payload, byte(OpHalt))

	data := buildProgram(t, payload)
	prog, err := Read(data, Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(prog.Instructions[0].Str) != "hi\n" {
		t.Fatalf("got %q", prog.Instructions[0].Str)
	}
}

func TestLibcCallOperands(t *testing.T) {
	payload := []byte{byte(OpLibcCall), 0x07, 0x00, 0x01, 0x00}
	data := buildProgram(t, payload)
	prog, err := Read(data, Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if prog.Instructions[0].FuncID != 7 || prog.Instructions[0].Argc != 1 {
		t.Fatalf("got %+v", prog.Instructions[0])
	}
}

// TestS4MalformedAstc implements scenario S4: a declared payload size
// that doesn't match the actual file length must be rejected.
func TestS4MalformedAstc(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write([]byte{1, 2, 3})

	_, err := Read(buf.Bytes(), Options{})
	if err != ErrInvalidAstcFormat {
		t.Fatalf("got %v, want ErrInvalidAstcFormat", err)
	}
}

func TestUnknownOpcodeStrictVsPermissive(t *testing.T) {
	payload := []byte{0xEE, byte(OpHalt)}
	data := buildProgram(t, payload)

	_, err := Read(data, Options{Permissive: false})
	if _, ok := err.(*UnknownOpcodeError); !ok {
		t.Fatalf("got %v (%T), want *UnknownOpcodeError", err, err)
	}

	prog, err := Read(data, Options{Permissive: true})
	if err != nil {
		t.Fatalf("Read (permissive): %v", err)
	}
	if prog.Instructions[0].Op != OpNop {
		t.Fatalf("got %v, want NOP substitution", prog.Instructions[0].Op)
	}
}

func TestTruncatedOperand(t *testing.T) {
	payload := []byte{byte(OpConstI32), 1, 2} // missing 2 bytes of the u32
	data := buildProgram(t, payload)
	_, err := Read(data, Options{})
	if _, ok := err.(*TruncatedOperandError); !ok {
		t.Fatalf("got %v (%T), want *TruncatedOperandError", err, err)
	}
}

// TestBytecodeLeadingWithJumpIfFalseOpcode guards against decoding a
// bytecode stream whose first instruction happens to be JUMP_IF_FALSE
// (0x41, the ASCII byte 'A') as a serialized AST tree: the AST/
// bytecode distinction must come from the header, not from the
// payload's leading byte.
func TestBytecodeLeadingWithJumpIfFalseOpcode(t *testing.T) {
	payload := []byte{
		byte(OpJumpIfFalse), 2, 0, 0, 0,
		byte(OpHalt),
	}
	data := buildProgram(t, payload)

	prog, err := Read(data, Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if prog.AST != nil {
		t.Fatal("got an AST program for a plain bytecode stream")
	}
	if len(prog.Instructions) != 2 || prog.Instructions[0].Op != OpJumpIfFalse {
		t.Fatalf("got %+v, want a JUMP_IF_FALSE; HALT stream", prog.Instructions)
	}
}

// buildASTProgram encodes a single-node AST payload with the astFlag
// bit set on the header's version word.
func buildASTProgram(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Magic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(1)|astFlag)
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(payload)
	return buf.Bytes()
}

func TestASTPayloadDecodesViaHeaderFlag(t *testing.T) {
	var node bytes.Buffer
	writeStr := func(s string) {
		binary.Write(&node, binary.LittleEndian, uint32(len(s)))
		node.WriteString(s)
	}
	writeStr("Program")
	binary.Write(&node, binary.LittleEndian, uint32(1)) // line
	binary.Write(&node, binary.LittleEndian, uint32(0)) // column
	writeStr("")                                        // value
	binary.Write(&node, binary.LittleEndian, uint32(0)) // childCount

	data := buildASTProgram(t, node.Bytes())
	prog, err := Read(data, Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if prog.AST == nil {
		t.Fatal("expected an AST program")
	}
	if prog.AST.Type != "Program" {
		t.Fatalf("got AST type %q, want %q", prog.AST.Type, "Program")
	}
	if prog.Header.Version != 1 {
		t.Fatalf("got Header.Version=%d, want the astFlag bit masked off (1)", prog.Header.Version)
	}
}
