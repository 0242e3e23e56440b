package jit

import (
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/astc-run/astcvm/libc"
)

// buildASTC assembles a minimal ASTC byte stream: header followed by
// the given already-encoded instruction bytes.
func buildASTC(body []byte) []byte {
	buf := make([]byte, 16+len(body))
	copy(buf[0:4], "ASTC")
	binary.LittleEndian.PutUint32(buf[4:8], 1)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(body)))
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	copy(buf[16:], body)
	return buf
}

func constI32(v uint32) []byte {
	b := make([]byte, 5)
	b[0] = 0x10
	binary.LittleEndian.PutUint32(b[1:], v)
	return b
}

// s1Program encodes scenario S1 from spec §8: CONST_I32 5; CONST_I32
// 7; ADD; HALT.
func s1Program() []byte {
	var body []byte
	body = append(body, constI32(5)...)
	body = append(body, constI32(7)...)
	body = append(body, 0x20) // ADD
	body = append(body, 0x01) // HALT
	return buildASTC(body)
}

// s5Program encodes scenario S5 from spec §8: CONST_I32 5;
// CONST_I32 0; DIV; HALT — must trap rather than produce a result.
func s5Program() []byte {
	var body []byte
	body = append(body, constI32(5)...)
	body = append(body, constI32(0)...)
	body = append(body, 0x23) // DIV
	body = append(body, 0x01) // HALT
	return buildASTC(body)
}

func hostArchName(t *testing.T) string {
	t.Helper()
	switch runtime.GOARCH {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64"
	default:
		t.Skipf("no backend for GOARCH=%s", runtime.GOARCH)
		return ""
	}
}

func TestCompileConstantArithmetic(t *testing.T) {
	arch := hostArchName(t)
	prog, err := Compile(s1Program(), arch, Options{EnableOptimizations: false})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	if prog.Stats().InstructionsCompiled != 4 {
		t.Fatalf("got InstructionsCompiled=%d, want 4", prog.Stats().InstructionsCompiled)
	}
}

func TestCompileWithOptimizationsFoldsConstants(t *testing.T) {
	arch := hostArchName(t)
	prog, err := Compile(s1Program(), arch, Options{EnableOptimizations: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	if prog.Stats().OptimizationsApplied == 0 {
		t.Fatal("expected constant folding to apply at least one optimization")
	}
}

func TestCompileMalformedASTCFailsBeforeMapping(t *testing.T) {
	arch := hostArchName(t)
	bad := buildASTC(nil)
	binary.LittleEndian.PutUint32(bad[8:12], 0xFFFFFFFF) // S4: declared size far exceeds actual length
	if _, err := Compile(bad, arch, Options{}); err == nil {
		t.Fatal("expected a parse failure for malformed ASTC input")
	}
}

func TestCompileRejectsUnsupportedArch(t *testing.T) {
	if _, err := Compile(s1Program(), "riscv64", Options{}); err == nil {
		t.Fatal("expected an error for an unsupported architecture")
	}
}

// TestInvokeS1ReturnsComputedSum exercises spec §8 scenario S1 end to
// end: compiled CONST_I32 5; CONST_I32 7; ADD; HALT must actually
// execute and return 12, not just compile.
func TestInvokeS1ReturnsComputedSum(t *testing.T) {
	arch := hostArchName(t)
	prog, err := Compile(s1Program(), arch, Options{EnableOptimizations: false})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	stack := make([]uint64, 0, 8)
	locals := make([]uint64, 4)
	result, err := prog.Invoke(&stack, &locals, libc.NewTable(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != 12 {
		t.Fatalf("S1 result = %d, want 12", result)
	}
}

// TestInvokeS2OptimizedReturnsComputedSum exercises spec §8 scenario
// S2: the same program, compiled with optimizations enabled, must
// still return 12 — constant folding must preserve i32 semantics.
func TestInvokeS2OptimizedReturnsComputedSum(t *testing.T) {
	arch := hostArchName(t)
	prog, err := Compile(s1Program(), arch, Options{EnableOptimizations: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	stack := make([]uint64, 0, 8)
	locals := make([]uint64, 4)
	result, err := prog.Invoke(&stack, &locals, libc.NewTable(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != 12 {
		t.Fatalf("S2 (optimized) result = %d, want 12", result)
	}
}

// TestInvokeS5DivideByZeroTraps exercises spec §8 scenario S5: a DIV
// by zero must surface as a TrapDuringExecutionError rather than
// crashing the process or returning a bogus result.
func TestInvokeS5DivideByZeroTraps(t *testing.T) {
	arch := hostArchName(t)
	prog, err := Compile(s5Program(), arch, Options{EnableOptimizations: false})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Release()

	stack := make([]uint64, 0, 8)
	locals := make([]uint64, 4)
	_, err = prog.Invoke(&stack, &locals, libc.NewTable(), nil)
	if err == nil {
		t.Fatal("expected a trap for division by zero")
	}
	if _, ok := err.(*TrapDuringExecutionError); !ok {
		t.Fatalf("got %T, want *TrapDuringExecutionError", err)
	}
}
