// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/astc-run/astcvm/container"
)

// AMD64Backend is the native compiler backend for x86-64 architectures.
//
// Register convention (mirrors exec/internal/compile/backend_amd64.go
// in the teacher repository, reusing its exact stack/locals addressing
// scheme; the compiled function is invoked as
// func(stack, locals *[]uint64, userFuncs uintptr)):
//
//	R10 - pointer to the operand-stack slice header
//	R11 - pointer to the locals slice header
//	R12 - scratch address register
//	R13 - scratch index/count register
//	R14 - reserved (saved and restored, otherwise unused)
//	R15 - user-function table pointer (passed by the JIT driver)
//
// Scratch: AX, BX, CX, DX, R8, R9.
type AMD64Backend struct {
	trapLabel *obj.Prog
}

// Name implements Backend.
func (b *AMD64Backend) Name() string { return "amd64" }

// Arch implements Backend.
func (b *AMD64Backend) Arch() container.Arch { return container.ArchX86_64 }

func (b *AMD64Backend) stackPush(ctx *Context, reg int16) {
	bld := ctx.Builder
	// movq r12, [r10]        ; r12 = stack data ptr
	p := bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_MEM, x86.REG_R10
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)

	// movq r13, [r10+8]      ; r13 = stack len
	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R13
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, x86.REG_R10, 8
	bld.AddInstruction(p)

	// leaq r12, [r12 + r13*8]
	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.ALEAQ, obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg, p.From.Scale, p.From.Index = obj.TYPE_MEM, x86.REG_R12, 8, x86.REG_R13
	bld.AddInstruction(p)

	// movq [r12], reg
	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AMOVQ, obj.TYPE_MEM, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(p)

	// incq r13 ; movq [r10+8], r13
	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AINCQ, obj.TYPE_REG, x86.REG_R13
	bld.AddInstruction(p)
	p = bld.NewProg()
	p.As, p.From.Type, p.From.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R13
	p.To.Type, p.To.Reg, p.To.Offset = obj.TYPE_MEM, x86.REG_R10, 8
	bld.AddInstruction(p)
}

func (b *AMD64Backend) stackPop(ctx *Context, reg int16) {
	bld := ctx.Builder
	// movq r13, [r10+8] ; decq r13 ; movq [r10+8], r13
	p := bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R13
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, x86.REG_R10, 8
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)

	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.ADECQ, obj.TYPE_REG, x86.REG_R13
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As, p.From.Type, p.From.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R13
	p.To.Type, p.To.Reg, p.To.Offset = obj.TYPE_MEM, x86.REG_R10, 8
	bld.AddInstruction(p)

	// movq r12, [r10] ; leaq r12, [r12+r13*8] ; movq reg, [r12]
	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.AMOVQ, obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_MEM, x86.REG_R10
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As, p.To.Type, p.To.Reg = x86.ALEAQ, obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg, p.From.Scale, p.From.Index = obj.TYPE_MEM, x86.REG_R12, 8, x86.REG_R13
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As, p.From.Type, p.From.Reg = x86.AMOVQ, obj.TYPE_MEM, x86.REG_R12
	p.To.Type, p.To.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(p)
}

// EmitNop implements Backend. Emitted as a real no-op instruction (not
// skipped) so it can still serve as a jump-target anchor.
func (b *AMD64Backend) EmitNop(ctx *Context) {
	p := ctx.Builder.NewProg()
	p.As = obj.ANOP
	ctx.Builder.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)
}

// EmitHaltWithReturn implements Backend. Pops the actual top of the
// operand stack into AX (the bug flagged in spec §9 — the original
// source wrote a constant 0 instead — is not reproduced here).
func (b *AMD64Backend) EmitHaltWithReturn(ctx *Context) {
	b.stackPop(ctx, x86.REG_AX)
}

func fitsUint8(v uint32) bool { return v <= 0xFF }

// EmitConstI32 implements Backend, using the three representations
// spec §4.6 allows: self-xor for zero, a self-xor followed by an 8-bit
// immediate load when v fits a byte (the xor clears the upper bits the
// byte move leaves untouched), and a full 32-bit immediate otherwise.
func (b *AMD64Backend) EmitConstI32(ctx *Context, v uint32) {
	bld := ctx.Builder
	switch {
	case v == 0:
		p := bld.NewProg()
		p.As = x86.AXORL
		p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_AX
		p.From.Type, p.From.Reg = obj.TYPE_REG, x86.REG_AX
		bld.AddInstruction(p)
	case fitsUint8(v):
		z := bld.NewProg()
		z.As = x86.AXORL
		z.To.Type, z.To.Reg = obj.TYPE_REG, x86.REG_AX
		z.From.Type, z.From.Reg = obj.TYPE_REG, x86.REG_AX
		bld.AddInstruction(z)
		p := bld.NewProg()
		p.As = x86.AMOVB
		p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_AX
		p.From.Type, p.From.Offset = obj.TYPE_CONST, int64(v)
		bld.AddInstruction(p)
	default:
		p := bld.NewProg()
		p.As = x86.AMOVL
		p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_AX
		p.From.Type, p.From.Offset = obj.TYPE_CONST, int64(int32(v))
		bld.AddInstruction(p)
	}
	b.stackPush(ctx, x86.REG_AX)
}

func (b *AMD64Backend) emitBinary(ctx *Context, op obj.As) {
	b.stackPop(ctx, x86.REG_R9)
	b.stackPop(ctx, x86.REG_AX)
	p := ctx.Builder.NewProg()
	p.As = op
	p.From.Type, p.From.Reg = obj.TYPE_REG, x86.REG_R9
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_AX
	ctx.Builder.AddInstruction(p)
	b.stackPush(ctx, x86.REG_AX)
}

// EmitAdd implements Backend.
func (b *AMD64Backend) EmitAdd(ctx *Context) { b.emitBinary(ctx, x86.AADDL) }

// EmitSub implements Backend.
func (b *AMD64Backend) EmitSub(ctx *Context) { b.emitBinary(ctx, x86.ASUBL) }

// EmitMul implements Backend.
func (b *AMD64Backend) EmitMul(ctx *Context) { b.emitBinary(ctx, x86.AIMULL) }

// EmitDiv implements Backend. A zero divisor branches to a trap label
// resolved in the epilogue, rather than letting IDIV raise a native
// SIGFPE (spec §8 property 6: DIV by zero must terminate with
// TrapDuringExecution, never undefined behavior).
func (b *AMD64Backend) EmitDiv(ctx *Context) error {
	bld := ctx.Builder
	b.stackPop(ctx, x86.REG_R9) // divisor
	b.stackPop(ctx, x86.REG_AX) // dividend

	testp := bld.NewProg()
	testp.As = x86.ATESTL
	testp.From.Type, testp.From.Reg = obj.TYPE_REG, x86.REG_R9
	testp.To.Type, testp.To.Reg = obj.TYPE_REG, x86.REG_R9
	bld.AddInstruction(testp)

	jz := bld.NewProg()
	jz.As = x86.AJEQ
	jz.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(jz)
	b.ensureTrapLabel(ctx)
	jz.To.SetTarget(b.trapLabel)

	cdq := bld.NewProg()
	cdq.As = x86.ACDQ
	bld.AddInstruction(cdq)

	div := bld.NewProg()
	div.As = x86.AIDIVL
	div.From.Type, div.From.Reg = obj.TYPE_REG, x86.REG_R9
	bld.AddInstruction(div)

	b.stackPush(ctx, x86.REG_AX)
	return nil
}

func (b *AMD64Backend) ensureTrapLabel(ctx *Context) {
	if b.trapLabel != nil {
		return
	}
	bld := ctx.Builder
	p := bld.NewProg()
	p.As = obj.ACALL
	p.To.Type, p.To.Name, p.To.Sym = obj.TYPE_MEM, obj.NAME_EXTERN, bld.Lookup("github.com/astc-run/astcvm/jit.trapDivideByZero")
	b.trapLabel = p
}

// EmitCmpEq implements Backend: pops two values, pushes 1 if equal,
// else 0.
func (b *AMD64Backend) EmitCmpEq(ctx *Context) { b.emitCompare(ctx, x86.AJNE) }

// EmitCmpLt implements Backend: pops two values (b, a order matches
// pop order below), pushes 1 if a < b, else 0.
func (b *AMD64Backend) EmitCmpLt(ctx *Context) { b.emitCompare(ctx, x86.AJGE) }

// emitCompare pushes 1, or 0 when jcc (the negated condition) holds
// after comparing a (AX) with b (R9). The result register is zeroed
// before the CMP, since XOR would clobber the flags the jump reads.
func (b *AMD64Backend) emitCompare(ctx *Context, jcc obj.As) {
	bld := ctx.Builder
	b.stackPop(ctx, x86.REG_R9)
	b.stackPop(ctx, x86.REG_AX)

	zero := bld.NewProg()
	zero.As = x86.AXORL
	zero.To.Type, zero.To.Reg = obj.TYPE_REG, x86.REG_R8
	zero.From.Type, zero.From.Reg = obj.TYPE_REG, x86.REG_R8
	bld.AddInstruction(zero)

	cmp := bld.NewProg()
	cmp.As = x86.ACMPL
	cmp.From.Type, cmp.From.Reg = obj.TYPE_REG, x86.REG_AX
	cmp.To.Type, cmp.To.Reg = obj.TYPE_REG, x86.REG_R9
	bld.AddInstruction(cmp)

	jmp := bld.NewProg()
	jmp.As = jcc
	jmp.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(jmp)

	one := bld.NewProg()
	one.As = x86.AMOVL
	one.To.Type, one.To.Reg = obj.TYPE_REG, x86.REG_R8
	one.From.Type, one.From.Offset = obj.TYPE_CONST, 1
	bld.AddInstruction(one)

	after := bld.NewProg()
	after.As = obj.ANOP
	bld.AddInstruction(after)
	jmp.To.SetTarget(after)

	b.stackPush(ctx, x86.REG_R8)
}

// EmitBranch implements Backend: an unconditional forward/backward
// jump to target, patched by ctx.ResolvePatches once target's label is
// known.
func (b *AMD64Backend) EmitBranch(ctx *Context, target int) {
	p := ctx.Builder.NewProg()
	p.As = obj.AJMP
	p.To.Type = obj.TYPE_BRANCH
	ctx.Builder.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)
	if anchor, ok := ctx.Labels[target]; ok {
		p.To.SetTarget(anchor)
	} else {
		ctx.AddPatch(target, p)
	}
}

// EmitBranchIfFalse implements Backend: pops the top of the operand
// stack; if it is zero, jumps to target.
func (b *AMD64Backend) EmitBranchIfFalse(ctx *Context, target int) {
	bld := ctx.Builder
	b.stackPop(ctx, x86.REG_AX)

	test := bld.NewProg()
	test.As = x86.ATESTL
	test.From.Type, test.From.Reg = obj.TYPE_REG, x86.REG_AX
	test.To.Type, test.To.Reg = obj.TYPE_REG, x86.REG_AX
	bld.AddInstruction(test)

	p := bld.NewProg()
	p.As = x86.AJEQ
	p.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, test)
	if anchor, ok := ctx.Labels[target]; ok {
		p.To.SetTarget(anchor)
	} else {
		ctx.AddPatch(target, p)
	}
}

// argRegs lists the first four System V integer argument registers.
// EmitUserCall does not read it: it passes the stack, locals and
// user-function table pointers in RDI/RSI/RDX directly.
var argRegs = []int16{x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX}

// libcArgRegs carries (funcID, a0, a1, a2, a3) into jit.libcTrampoline,
// the Go function LIBC_CALL compiles down to (see EmitLibcCall).
var libcArgRegs = []int16{x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX, x86.REG_R8}

// EmitLibcCall implements Backend. Rather than indexing a raw
// function-pointer table (as EmitUserCall does for already-compiled
// ASTC functions), a LIBC_CALL compiles to a call into the fixed Go
// symbol jit.libcTrampoline, which dispatches funcID against the
// process's active libc.Table (spec §5's single-threaded model makes
// that table process-wide mutable state safe to reach this way). The
// backend currently forwards at most the first four popped values;
// argc beyond four is not yet marshalled.
func (b *AMD64Backend) EmitLibcCall(ctx *Context, funcID, argc uint16) {
	bld := ctx.Builder
	n := int(argc)
	if n > 4 {
		n = 4
	}
	for i := n - 1; i >= 0; i-- {
		b.stackPop(ctx, libcArgRegs[i+1])
	}
	for i := n; i < int(argc); i++ {
		b.stackPop(ctx, x86.REG_AX) // discard args beyond the fourth
	}

	id := bld.NewProg()
	id.As = x86.AMOVQ
	id.To.Type, id.To.Reg = obj.TYPE_REG, libcArgRegs[0]
	id.From.Type, id.From.Offset = obj.TYPE_CONST, int64(funcID)
	bld.AddInstruction(id)

	call := bld.NewProg()
	call.As = obj.ACALL
	call.To.Type, call.To.Name, call.To.Sym = obj.TYPE_MEM, obj.NAME_EXTERN, bld.Lookup("github.com/astc-run/astcvm/jit.libcTrampoline")
	bld.AddInstruction(call)

	b.stackPush(ctx, x86.REG_AX)
}

// EmitUserCall implements Backend. funcID indexes the current module's
// own compiled-function table (passed by the driver in R15); the
// target was compiled by this same backend, so it expects its operand
// stack, locals and user-function table through the incoming ABI
// registers RDI/RSI/RDX exactly as EmitFunctionPrologue documents —
// EmitUserCall re-derives them from this function's own R10/R11/R15
// rather than setting up a fresh frame, so CALL_USER effectively shares
// the caller's stack and locals with the callee.
func (b *AMD64Backend) EmitUserCall(ctx *Context, funcID uint32) {
	bld := ctx.Builder
	load := bld.NewProg()
	load.As = x86.AMOVQ
	load.To.Type, load.To.Reg = obj.TYPE_REG, x86.REG_R12
	load.From.Type, load.From.Reg, load.From.Offset = obj.TYPE_MEM, x86.REG_R15, int64(funcID)*8
	bld.AddInstruction(load)

	movArg := func(from, to int16) {
		p := bld.NewProg()
		p.As = x86.AMOVQ
		p.To.Type, p.To.Reg = obj.TYPE_REG, to
		p.From.Type, p.From.Reg = obj.TYPE_REG, from
		bld.AddInstruction(p)
	}
	movArg(x86.REG_R10, x86.REG_DI)
	movArg(x86.REG_R11, x86.REG_SI)
	movArg(x86.REG_R15, x86.REG_DX)

	call := bld.NewProg()
	call.As = obj.ACALL
	call.To.Type, call.To.Reg = obj.TYPE_REG, x86.REG_R12
	bld.AddInstruction(call)

	b.stackPush(ctx, x86.REG_AX)
}

// EmitStoreLocal implements Backend.
func (b *AMD64Backend) EmitStoreLocal(ctx *Context, offset uint32) {
	b.stackPop(ctx, x86.REG_AX)
	b.localsStore(ctx, x86.REG_AX, offset)
}

// EmitLoadLocal implements Backend.
func (b *AMD64Backend) EmitLoadLocal(ctx *Context, offset uint32) {
	b.localsLoad(ctx, x86.REG_AX, offset)
	b.stackPush(ctx, x86.REG_AX)
}

func (b *AMD64Backend) localsLoad(ctx *Context, reg int16, index uint32) {
	bld := ctx.Builder
	p := bld.NewProg()
	p.As = x86.AMOVQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R13
	p.From.Type, p.From.Offset = obj.TYPE_CONST, int64(index)
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.AMOVQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_MEM, x86.REG_R11
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.ALEAQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg, p.From.Scale, p.From.Index = obj.TYPE_MEM, x86.REG_R12, 8, x86.REG_R13
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.AMOVQ
	p.From.Type, p.From.Reg = obj.TYPE_MEM, x86.REG_R12
	p.To.Type, p.To.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(p)
}

func (b *AMD64Backend) localsStore(ctx *Context, reg int16, index uint32) {
	bld := ctx.Builder
	p := bld.NewProg()
	p.As = x86.AMOVQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R13
	p.From.Type, p.From.Offset = obj.TYPE_CONST, int64(index)
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.AMOVQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_MEM, x86.REG_R11
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.ALEAQ
	p.To.Type, p.To.Reg = obj.TYPE_REG, x86.REG_R12
	p.From.Type, p.From.Reg, p.From.Scale, p.From.Index = obj.TYPE_MEM, x86.REG_R12, 8, x86.REG_R13
	bld.AddInstruction(p)

	p = bld.NewProg()
	p.As = x86.AMOVQ
	p.To.Type, p.To.Reg = obj.TYPE_MEM, x86.REG_R12
	p.From.Type, p.From.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(p)
}

// minFrameSize is the minimum 16-byte-aligned stack frame the
// prologue reserves, per spec §4.6.
const minFrameSize = 48

// EmitFunctionPrologue implements Backend: saves the frame pointer,
// establishes a new frame at least minFrameSize bytes, 16-byte
// aligned, and saves the callee-saved registers the backend touches
// (R12, R13, R14, R15).
func (b *AMD64Backend) EmitFunctionPrologue(ctx *Context) {
	bld := ctx.Builder
	push := func(reg int16) {
		p := bld.NewProg()
		p.As = x86.APUSHQ
		p.From.Type, p.From.Reg = obj.TYPE_REG, reg
		bld.AddInstruction(p)
	}
	push(x86.REG_BP)
	mov := bld.NewProg()
	mov.As = x86.AMOVQ
	mov.From.Type, mov.From.Reg = obj.TYPE_REG, x86.REG_SP
	mov.To.Type, mov.To.Reg = obj.TYPE_REG, x86.REG_BP
	bld.AddInstruction(mov)

	sub := bld.NewProg()
	sub.As = x86.ASUBQ
	sub.From.Type, sub.From.Offset = obj.TYPE_CONST, int64(alignFrame(minFrameSize))
	sub.To.Type, sub.To.Reg = obj.TYPE_REG, x86.REG_SP
	bld.AddInstruction(sub)

	push(x86.REG_R12)
	push(x86.REG_R13)
	push(x86.REG_R14)
	push(x86.REG_R15)

	// The driver invokes compiled code as
	// func(stack, locals *[]uint64, userFuncs uintptr), so the three
	// System V argument registers carry exactly the pointers
	// R10/R11/R15 need for the rest of the function. R14 is reserved
	// but currently unused (LIBC_CALL no longer threads a table
	// pointer through registers — see EmitLibcCall).
	movArg := func(from, to int16) {
		p := bld.NewProg()
		p.As = x86.AMOVQ
		p.From.Type, p.From.Reg = obj.TYPE_REG, from
		p.To.Type, p.To.Reg = obj.TYPE_REG, to
		bld.AddInstruction(p)
	}
	movArg(x86.REG_DI, x86.REG_R10)
	movArg(x86.REG_SI, x86.REG_R11)
	movArg(x86.REG_DX, x86.REG_R15)
}

// EmitFunctionEpilogue implements Backend: tears the frame down in
// exactly reverse order, appends the deferred trap stub if one was
// referenced, and returns.
func (b *AMD64Backend) EmitFunctionEpilogue(ctx *Context) {
	bld := ctx.Builder
	pop := func(reg int16) {
		p := bld.NewProg()
		p.As = x86.APOPQ
		p.To.Type, p.To.Reg = obj.TYPE_REG, reg
		bld.AddInstruction(p)
	}
	pop(x86.REG_R15)
	pop(x86.REG_R14)
	pop(x86.REG_R13)
	pop(x86.REG_R12)

	add := bld.NewProg()
	add.As = x86.AADDQ
	add.From.Type, add.From.Offset = obj.TYPE_CONST, int64(alignFrame(minFrameSize))
	add.To.Type, add.To.Reg = obj.TYPE_REG, x86.REG_SP
	bld.AddInstruction(add)

	pop(x86.REG_BP)

	ret := bld.NewProg()
	ret.As = obj.ARET
	bld.AddInstruction(ret)

	if b.trapLabel != nil {
		bld.AddInstruction(b.trapLabel)
		b.trapLabel = nil
	}
}

func alignFrame(n int) int {
	return (n + 15) &^ 15
}
