// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jit implements C8: it drives the ASTC reader (package astc,
// C5) and the code-generator core and architecture backends (package
// codegen, C6/C7) end to end, producing a compiled, mapped, invocable
// program — grounded on exec/vm.go's NewVM/compiledFunction flow and
// exec/internal/compile/native_exec.go's asmBlock invocation in the
// teacher repository.
package jit

import (
	"io"
	"log"
	"os"
	"unsafe"

	"github.com/astc-run/astcvm/astc"
	"github.com/astc-run/astcvm/codegen"
	"github.com/astc-run/astcvm/libc"
)

var logger = log.New(io.Discard, "jit: ", log.Lshortfile)

// SetVerbose toggles diagnostic logging.
func SetVerbose(v bool) {
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}
}

// Options configures a single compilation, mirroring CodeGenContext's
// optimization-flag set and the reader's permissive mode (spec §4.5,
// §4.6).
type Options struct {
	EnableOptimizations bool
	Permissive          bool
}

// CompiledProgram is the JIT driver's result: mapped, executable
// machine code plus the bookkeeping needed to invoke it (spec §4.7:
// "code buffer, entry offset, exports-of-this-compilation").
type CompiledProgram struct {
	mapped *MappedCode
	stats  codegen.Stats
}

// Stats returns the accumulated compilation statistics.
func (p *CompiledProgram) Stats() codegen.Stats { return p.stats }

// Release unmaps the compiled code's executable region. After Release
// the program must not be invoked again.
func (p *CompiledProgram) Release() error {
	return p.mapped.Unmap()
}

// compileInstr maps an ASTC opcode to the matching Backend emit hook.
// CONST_STRING compiles to a NOP and pushes nothing onto the operand
// stack; its bytes stay on the Instr and no code here turns them into
// a data pointer.
func compileInstr(b codegen.Backend, ctx *codegen.Context, in astc.Instr) error {
	switch in.Op {
	case astc.OpNop, astc.OpConstString:
		b.EmitNop(ctx)
	case astc.OpHalt:
		b.EmitHaltWithReturn(ctx)
	case astc.OpConstI32:
		b.EmitConstI32(ctx, in.Imm32)
	case astc.OpAdd:
		b.EmitAdd(ctx)
	case astc.OpSub:
		b.EmitSub(ctx)
	case astc.OpMul:
		b.EmitMul(ctx)
	case astc.OpDiv:
		return b.EmitDiv(ctx)
	case astc.OpStoreLocal:
		b.EmitStoreLocal(ctx, in.Imm32)
	case astc.OpLoadLocal:
		b.EmitLoadLocal(ctx, in.Imm32)
	case astc.OpJump:
		b.EmitBranch(ctx, int(in.Imm32))
	case astc.OpJumpIfFalse:
		b.EmitBranchIfFalse(ctx, int(in.Imm32))
	case astc.OpCallUser:
		b.EmitUserCall(ctx, in.Imm32)
	case astc.OpLibcCall:
		b.EmitLibcCall(ctx, in.FuncID, in.Argc)
	default:
		b.EmitNop(ctx)
	}
	return nil
}

// Compile implements the C8 contract: parse data as ASTC (C5), apply
// the enabled peephole passes to the decoded stream, emit a prologue,
// process every remaining instruction exactly once in program order,
// emit an epilogue, patch forward jumps, and assemble and map the
// result. Errors from any stage short-circuit and leave no
// executable mapping committed.
func Compile(data []byte, archName string, opts Options) (*CompiledProgram, error) {
	prog, err := astc.Read(data, astc.Options{Permissive: opts.Permissive})
	if err != nil {
		return nil, err
	}

	backend, err := codegen.NewBackend(archName)
	if err != nil {
		return nil, err
	}

	ctx, err := codegen.NewContext(archName, len(prog.Instructions)+8, opts.EnableOptimizations)
	if err != nil {
		return nil, err
	}

	ctx.State = codegen.DecodingInstructions
	instrs := prog.Instructions
	if opts.EnableOptimizations {
		ctx.State = codegen.Optimizing
		instrs = codegen.Optimize(instrs, &ctx.Stats)
	}

	ctx.State = codegen.Emitting
	backend.EmitFunctionPrologue(ctx)
	for _, in := range instrs {
		ctx.SetCurrentPC(in.PC)
		if err := compileInstr(backend, ctx, in); err != nil {
			ctx.Fail(&codegen.CompilationFailedError{PC: in.PC, Cause: err})
			return nil, ctx.Err()
		}
		ctx.Stats.InstructionsCompiled++
	}
	backend.EmitFunctionEpilogue(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		ctx.Fail(err)
		return nil, err
	}

	ctx.State = codegen.Finalized
	code, err := ctx.Assemble()
	if err != nil {
		return nil, &codegen.CompilationFailedError{PC: int(prog.Header.EntryOffset), Cause: err}
	}

	mapped, err := mapExecutable(code)
	if err != nil {
		return nil, err
	}

	logger.Printf("compiled %d instructions (%d optimizations applied)", ctx.Stats.InstructionsCompiled, ctx.Stats.OptimizationsApplied)
	return &CompiledProgram{mapped: mapped, stats: ctx.Stats}, nil
}

// Invoke runs the compiled program on the caller's goroutine, per
// spec §5's single-threaded scheduling model: there is no asynchronous
// cancellation, and compiled code runs synchronously until HALT or a
// trap. stack and locals back the operand stack and local-variable
// slots the backends address through R10/R11 (AMD64) or R19/R20
// (ARM64); table is the libc dispatch table LIBC_CALL resolves against
// via jit.libcTrampoline; userFuncs is the current module's own
// compiled-function table, addressed directly by CALL_USER.
func (p *CompiledProgram) Invoke(stack, locals *[]uint64, table *libc.Table, userFuncs []uintptr) (result int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			if trapErr, ok := r.(*TrapDuringExecutionError); ok {
				err = trapErr
				return
			}
			panic(r)
		}
	}()

	activeLibcTable = table
	defer func() { activeLibcTable = nil }()

	var userBase uintptr
	if len(userFuncs) > 0 {
		userBase = uintptr(unsafe.Pointer(&userFuncs[0]))
	}

	raw := jitcall(unsafe.Pointer(p.mapped.Base()), stack, locals, userBase)
	return int32(raw), nil
}
