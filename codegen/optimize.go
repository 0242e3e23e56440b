package codegen

import "github.com/astc-run/astcvm/astc"

// jumpTargets collects every pc any JUMP/JUMP_IF_FALSE instruction in
// instrs can transfer control to (CALL_USER's operand is a function
// id, not a pc, so it contributes none), so the optimizer
// never removes or folds an instruction another instruction can land
// on mid-sequence.
func jumpTargets(instrs []astc.Instr) map[int]bool {
	targets := make(map[int]bool)
	for _, in := range instrs {
		switch in.Op {
		case astc.OpJump, astc.OpJumpIfFalse:
			targets[int(in.Imm32)] = true
		}
	}
	return targets
}

// Optimize applies the peephole passes of spec §4.6 — constant
// folding, dead-code elimination — to a decoded instruction stream,
// and reports how many optimizations it applied. Small-immediate
// selection (the third listed optimization) is a backend emission
// concern, not a stream rewrite, and lives in backend_amd64.go.
//
// Optimize must only be called when the context's EnableOptimizations
// is set; callers that want the naive, debuggable sequence should feed
// the decoded instructions straight to the backend.
func Optimize(instrs []astc.Instr, stats *Stats) []astc.Instr {
	targets := jumpTargets(instrs)

	folded := foldConstants(instrs, targets, stats)
	return eliminateDeadCode(folded, targets, stats)
}

// foldConstants rewrites CONST_I32 a; CONST_I32 b; ADD|SUB|MUL into a
// single CONST_I32 holding the compile-time result, in two's-complement
// i32 arithmetic, whenever neither the second nor the third instruction
// is a jump target (folding would otherwise remove a valid landing
// site; the folded CONST_I32 keeps the first instruction's pc, so a
// jump to the first one still lands).
func foldConstants(instrs []astc.Instr, targets map[int]bool, stats *Stats) []astc.Instr {
	out := make([]astc.Instr, 0, len(instrs))
	i := 0
	for i < len(instrs) {
		if i+2 < len(instrs) &&
			instrs[i].Op == astc.OpConstI32 &&
			instrs[i+1].Op == astc.OpConstI32 &&
			isFoldableBinOp(instrs[i+2].Op) &&
			!targets[instrs[i+1].PC] && !targets[instrs[i+2].PC] {

			a := int32(instrs[i].Imm32)
			b := int32(instrs[i+1].Imm32)
			var r int32
			switch instrs[i+2].Op {
			case astc.OpAdd:
				r = a + b
			case astc.OpSub:
				r = a - b
			case astc.OpMul:
				r = a * b
			}
			folded := instrs[i]
			folded.Imm32 = uint32(r)
			folded.Size = instrs[i].Size
			out = append(out, folded)
			if stats != nil {
				stats.OptimizationsApplied++
			}
			i += 3
			continue
		}
		out = append(out, instrs[i])
		i++
	}
	return out
}

func isFoldableBinOp(op astc.Opcode) bool {
	return op == astc.OpAdd || op == astc.OpSub || op == astc.OpMul
}

// eliminateDeadCode collapses consecutive NOPs to one and drops
// unreachable code following a HALT up to the next jump target.
func eliminateDeadCode(instrs []astc.Instr, targets map[int]bool, stats *Stats) []astc.Instr {
	out := make([]astc.Instr, 0, len(instrs))
	unreachable := false
	for i := 0; i < len(instrs); i++ {
		in := instrs[i]

		if unreachable {
			if targets[in.PC] {
				unreachable = false
			} else {
				if stats != nil {
					stats.OptimizationsApplied++
				}
				continue
			}
		}

		if in.Op == astc.OpNop && len(out) > 0 && out[len(out)-1].Op == astc.OpNop && !targets[in.PC] {
			if stats != nil {
				stats.OptimizationsApplied++
			}
			continue
		}

		out = append(out, in)
		if in.Op == astc.OpHalt {
			unreachable = true
		}
	}
	return out
}
