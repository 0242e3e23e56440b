package codegen

import (
	"testing"

	"github.com/astc-run/astcvm/astc"
)

func instr(op astc.Opcode, imm uint32) astc.Instr {
	return astc.Instr{Op: op, Imm32: imm}
}

func TestConstantFolding(t *testing.T) {
	in := []astc.Instr{
		instr(astc.OpConstI32, 5),
		instr(astc.OpConstI32, 7),
		instr(astc.OpAdd, 0),
		instr(astc.OpHalt, 0),
	}
	var stats Stats
	out := Optimize(in, &stats)
	if len(out) != 2 {
		t.Fatalf("got %d instructions, want 2 (folded const + halt): %+v", len(out), out)
	}
	if out[0].Op != astc.OpConstI32 || out[0].Imm32 != 12 {
		t.Fatalf("got %+v, want CONST_I32 12", out[0])
	}
	if stats.OptimizationsApplied == 0 {
		t.Fatal("expected OptimizationsApplied to be incremented")
	}
}

func TestConstantFoldingNotAppliedAcrossJumpTarget(t *testing.T) {
	in := []astc.Instr{
		{Op: astc.OpConstI32, Imm32: 5, PC: 0},
		{Op: astc.OpConstI32, Imm32: 7, PC: 5},
		{Op: astc.OpAdd, PC: 10},
		{Op: astc.OpJump, Imm32: 5, PC: 11},
		{Op: astc.OpHalt, PC: 16},
	}
	out := Optimize(in, nil)
	// pc=5 is a jump target, so the fold must not collapse it away.
	foundConst7 := false
	for _, i := range out {
		if i.Op == astc.OpConstI32 && i.PC == 5 {
			foundConst7 = true
		}
	}
	if !foundConst7 {
		t.Fatalf("folding incorrectly removed a jump target instruction: %+v", out)
	}
}

func TestDeadCodeAfterHalt(t *testing.T) {
	in := []astc.Instr{
		{Op: astc.OpHalt, PC: 0},
		{Op: astc.OpNop, PC: 1},
		{Op: astc.OpNop, PC: 2},
		{Op: astc.OpConstI32, Imm32: 1, PC: 3},
	}
	out := Optimize(in, nil)
	if len(out) != 1 {
		t.Fatalf("got %d instructions, want 1 (only HALT survives): %+v", len(out), out)
	}
}

func TestConsecutiveNopsCollapse(t *testing.T) {
	in := []astc.Instr{
		{Op: astc.OpNop, PC: 0},
		{Op: astc.OpNop, PC: 1},
		{Op: astc.OpNop, PC: 2},
		{Op: astc.OpHalt, PC: 3},
	}
	out := Optimize(in, nil)
	if len(out) != 2 {
		t.Fatalf("got %d instructions, want 2 (one NOP + HALT): %+v", len(out), out)
	}
}
