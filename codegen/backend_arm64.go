// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/astc-run/astcvm/container"
)

// ARM64Backend is the native compiler backend for 64-bit ARM
// architectures, per spec §4.6's ARM64 contract: stp/ldp pair saves
// across the prologue/epilogue and the x19-x28/fp/lr/sp register
// context the AAPCS64 callee-saved set provides.
//
// Register convention, chosen to mirror AMD64Backend's role split:
//
//	R19 - pointer to the operand-stack slice header
//	R20 - pointer to the locals slice header
//	R21 - scratch address register
//	R22 - scratch index/count register
//	R23 - reserved (saved and restored, otherwise unused)
//	R24 - user function table pointer
//
// Scratch: R0-R9.
type ARM64Backend struct{}

// Name implements Backend.
func (b *ARM64Backend) Name() string { return "arm64" }

// Arch implements Backend.
func (b *ARM64Backend) Arch() container.Arch { return container.ArchARM64 }

func (b *ARM64Backend) stackPush(ctx *Context, reg int16) {
	bld := ctx.Builder
	// ldr r21, [r19]        ; r21 = stack data ptr
	p := bld.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R21
	p.From.Type, p.From.Reg = obj.TYPE_MEM, arm64.REG_R19
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)

	// ldr r22, [r19, #8]    ; r22 = stack len
	p = bld.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R22
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, arm64.REG_R19, 8
	bld.AddInstruction(p)

	// add r21, r21, r22, lsl #3
	add := bld.NewProg()
	add.As = arm64.AADD
	add.To.Type, add.To.Reg = obj.TYPE_REG, arm64.REG_R21
	add.From.Type, add.From.Offset = obj.TYPE_SHIFT, int64(arm64.REG_R22&31)<<16|3<<10
	add.Reg = arm64.REG_R21
	bld.AddInstruction(add)

	// str reg, [r21]
	st := bld.NewProg()
	st.As = arm64.AMOVD
	st.To.Type, st.To.Reg = obj.TYPE_MEM, arm64.REG_R21
	st.From.Type, st.From.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(st)

	// add r22, r22, #1 ; str r22, [r19, #8]
	inc := bld.NewProg()
	inc.As = arm64.AADD
	inc.To.Type, inc.To.Reg = obj.TYPE_REG, arm64.REG_R22
	inc.From.Type, inc.From.Offset = obj.TYPE_CONST, 1
	inc.Reg = arm64.REG_R22
	bld.AddInstruction(inc)

	st2 := bld.NewProg()
	st2.As = arm64.AMOVD
	st2.From.Type, st2.From.Reg = obj.TYPE_REG, arm64.REG_R22
	st2.To.Type, st2.To.Reg, st2.To.Offset = obj.TYPE_MEM, arm64.REG_R19, 8
	bld.AddInstruction(st2)
}

func (b *ARM64Backend) stackPop(ctx *Context, reg int16) {
	bld := ctx.Builder
	// ldr r22, [r19, #8] ; sub r22, r22, #1 ; str r22, [r19, #8]
	p := bld.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R22
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, arm64.REG_R19, 8
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)

	sub := bld.NewProg()
	sub.As = arm64.ASUB
	sub.To.Type, sub.To.Reg = obj.TYPE_REG, arm64.REG_R22
	sub.From.Type, sub.From.Offset = obj.TYPE_CONST, 1
	sub.Reg = arm64.REG_R22
	bld.AddInstruction(sub)

	st := bld.NewProg()
	st.As = arm64.AMOVD
	st.From.Type, st.From.Reg = obj.TYPE_REG, arm64.REG_R22
	st.To.Type, st.To.Reg, st.To.Offset = obj.TYPE_MEM, arm64.REG_R19, 8
	bld.AddInstruction(st)

	// ldr r21, [r19] ; add r21, r21, r22, lsl #3 ; ldr reg, [r21]
	ld := bld.NewProg()
	ld.As = arm64.AMOVD
	ld.To.Type, ld.To.Reg = obj.TYPE_REG, arm64.REG_R21
	ld.From.Type, ld.From.Reg = obj.TYPE_MEM, arm64.REG_R19
	bld.AddInstruction(ld)

	add := bld.NewProg()
	add.As = arm64.AADD
	add.To.Type, add.To.Reg = obj.TYPE_REG, arm64.REG_R21
	add.From.Type, add.From.Offset = obj.TYPE_SHIFT, int64(arm64.REG_R22&31)<<16|3<<10
	add.Reg = arm64.REG_R21
	bld.AddInstruction(add)

	final := bld.NewProg()
	final.As = arm64.AMOVD
	final.From.Type, final.From.Reg = obj.TYPE_MEM, arm64.REG_R21
	final.To.Type, final.To.Reg = obj.TYPE_REG, reg
	bld.AddInstruction(final)
}

// EmitNop implements Backend.
func (b *ARM64Backend) EmitNop(ctx *Context) {
	p := ctx.Builder.NewProg()
	p.As = obj.ANOP
	ctx.Builder.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)
}

// EmitHaltWithReturn implements Backend.
func (b *ARM64Backend) EmitHaltWithReturn(ctx *Context) {
	b.stackPop(ctx, arm64.REG_R0)
}

// EmitConstI32 implements Backend. ARM64's MOVD handles a 32-bit
// immediate directly; the zero/small-immediate split the AMD64
// backend performs exists there to pick a shorter x86 encoding and has
// no equivalent benefit under a fixed-width ISA, so ARM64 always
// materializes the full immediate.
func (b *ARM64Backend) EmitConstI32(ctx *Context, v uint32) {
	p := ctx.Builder.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R0
	p.From.Type, p.From.Offset = obj.TYPE_CONST, int64(int32(v))
	ctx.Builder.AddInstruction(p)
	b.stackPush(ctx, arm64.REG_R0)
}

func (b *ARM64Backend) emitBinary(ctx *Context, op obj.As) {
	b.stackPop(ctx, arm64.REG_R1)
	b.stackPop(ctx, arm64.REG_R0)
	p := ctx.Builder.NewProg()
	p.As = op
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R0
	p.From.Type, p.From.Reg = obj.TYPE_REG, arm64.REG_R0
	p.Reg = arm64.REG_R1
	ctx.Builder.AddInstruction(p)
	b.stackPush(ctx, arm64.REG_R0)
}

// EmitAdd implements Backend.
func (b *ARM64Backend) EmitAdd(ctx *Context) { b.emitBinary(ctx, arm64.AADD) }

// EmitSub implements Backend.
func (b *ARM64Backend) EmitSub(ctx *Context) { b.emitBinary(ctx, arm64.ASUB) }

// EmitMul implements Backend.
func (b *ARM64Backend) EmitMul(ctx *Context) { b.emitBinary(ctx, arm64.AMUL) }

// EmitDiv implements Backend. Mirrors AMD64Backend.EmitDiv's trap
// convention: a zero divisor branches out to the runtime trap shim
// rather than letting SDIV silently return 0 (ARM64's native
// behavior, unlike x86-64's #DE fault).
func (b *ARM64Backend) EmitDiv(ctx *Context) error {
	bld := ctx.Builder
	b.stackPop(ctx, arm64.REG_R1) // divisor
	b.stackPop(ctx, arm64.REG_R0) // dividend

	// A nonzero divisor jumps over the trap call straight to the SDIV.
	cbnz := bld.NewProg()
	cbnz.As = arm64.ACBNZ
	cbnz.From.Type, cbnz.From.Reg = obj.TYPE_REG, arm64.REG_R1
	cbnz.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(cbnz)

	trap := bld.NewProg()
	trap.As = obj.ACALL
	trap.To.Type, trap.To.Name, trap.To.Sym = obj.TYPE_MEM, obj.NAME_EXTERN, bld.Lookup("github.com/astc-run/astcvm/jit.trapDivideByZero")
	bld.AddInstruction(trap)

	div := bld.NewProg()
	div.As = arm64.ASDIV
	div.To.Type, div.To.Reg = obj.TYPE_REG, arm64.REG_R0
	div.From.Type, div.From.Reg = obj.TYPE_REG, arm64.REG_R0
	div.Reg = arm64.REG_R1
	cbnz.To.SetTarget(div)
	bld.AddInstruction(div)

	b.stackPush(ctx, arm64.REG_R0)
	return nil
}

func (b *ARM64Backend) emitCompare(ctx *Context, bcc obj.As) {
	bld := ctx.Builder
	b.stackPop(ctx, arm64.REG_R1)
	b.stackPop(ctx, arm64.REG_R0)

	cmp := bld.NewProg()
	cmp.As = arm64.ACMP
	cmp.From.Type, cmp.From.Reg = obj.TYPE_REG, arm64.REG_R1
	cmp.Reg = arm64.REG_R0
	bld.AddInstruction(cmp)

	zero := bld.NewProg()
	zero.As = arm64.AMOVD
	zero.To.Type, zero.To.Reg = obj.TYPE_REG, arm64.REG_R0
	zero.From.Type, zero.From.Offset = obj.TYPE_CONST, 0
	bld.AddInstruction(zero)

	br := bld.NewProg()
	br.As = bcc
	br.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(br)

	one := bld.NewProg()
	one.As = arm64.AMOVD
	one.To.Type, one.To.Reg = obj.TYPE_REG, arm64.REG_R0
	one.From.Type, one.From.Offset = obj.TYPE_CONST, 1
	bld.AddInstruction(one)

	after := bld.NewProg()
	after.As = obj.ANOP
	bld.AddInstruction(after)
	br.To.SetTarget(after)

	b.stackPush(ctx, arm64.REG_R0)
}

// EmitCmpEq implements Backend. The branch passed to emitCompare is the
// negated condition: it skips the MOV $1, leaving 0.
func (b *ARM64Backend) EmitCmpEq(ctx *Context) { b.emitCompare(ctx, arm64.ABNE) }

// EmitCmpLt implements Backend.
func (b *ARM64Backend) EmitCmpLt(ctx *Context) { b.emitCompare(ctx, arm64.ABGE) }

// EmitBranch implements Backend.
func (b *ARM64Backend) EmitBranch(ctx *Context, target int) {
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

// EmitBranchIfFalse implements Backend.
func (b *ARM64Backend) EmitBranchIfFalse(ctx *Context, target int) {
	bld := ctx.Builder
	b.stackPop(ctx, arm64.REG_R0)

	p := bld.NewProg()
	p.As = arm64.ACBZ
	p.From.Type, p.From.Reg = obj.TYPE_REG, arm64.REG_R0
	p.To.Type = obj.TYPE_BRANCH
	bld.AddInstruction(p)
	ctx.MarkLabel(ctx.curPC, p)
	if anchor, ok := ctx.Labels[target]; ok {
		p.To.SetTarget(anchor)
	} else {
		ctx.AddPatch(target, p)
	}
}

// argRegsARM64 mirrors argRegs for AAPCS64: the first four integer
// argument registers, R0-R3. EmitUserCall does not read it: it passes
// the stack, locals and user-function table pointers in X0/X1/X2
// directly.
var argRegsARM64 = []int16{arm64.REG_R0, arm64.REG_R1, arm64.REG_R2, arm64.REG_R3}

// libcArgRegsARM64 carries (funcID, a0, a1, a2, a3) into
// jit.libcTrampoline under AAPCS64, mirroring AMD64Backend's
// libcArgRegs. See EmitLibcCall there for the rationale: LIBC_CALL
// dispatches through a fixed Go symbol rather than a raw address
// table.
var libcArgRegsARM64 = []int16{arm64.REG_R0, arm64.REG_R1, arm64.REG_R2, arm64.REG_R3, arm64.REG_R4}

// EmitLibcCall implements Backend.
func (b *ARM64Backend) EmitLibcCall(ctx *Context, funcID, argc uint16) {
	bld := ctx.Builder
	n := int(argc)
	if n > 4 {
		n = 4
	}
	for i := n - 1; i >= 0; i-- {
		b.stackPop(ctx, libcArgRegsARM64[i+1])
	}
	for i := n; i < int(argc); i++ {
		b.stackPop(ctx, arm64.REG_R9) // discard args beyond the fourth
	}

	id := bld.NewProg()
	id.As = arm64.AMOVD
	id.To.Type, id.To.Reg = obj.TYPE_REG, libcArgRegsARM64[0]
	id.From.Type, id.From.Offset = obj.TYPE_CONST, int64(funcID)
	bld.AddInstruction(id)

	call := bld.NewProg()
	call.As = obj.ACALL
	call.To.Type, call.To.Name, call.To.Sym = obj.TYPE_MEM, obj.NAME_EXTERN, bld.Lookup("github.com/astc-run/astcvm/jit.libcTrampoline")
	bld.AddInstruction(call)

	b.stackPush(ctx, arm64.REG_R0)
}

// EmitUserCall implements Backend. funcID indexes the current module's
// own compiled-function table (passed by the driver in R24); the
// target was compiled by this same backend and expects its operand
// stack, locals and user-function table through the incoming ABI
// registers X0/X1/X2 exactly as EmitFunctionPrologue documents —
// EmitUserCall re-derives them from this function's own R19/R20/R24
// rather than setting up a fresh frame, so CALL_USER effectively shares
// the caller's stack and locals with the callee.
func (b *ARM64Backend) EmitUserCall(ctx *Context, funcID uint32) {
	bld := ctx.Builder
	load := bld.NewProg()
	load.As = arm64.AMOVD
	load.To.Type, load.To.Reg = obj.TYPE_REG, arm64.REG_R9
	load.From.Type, load.From.Reg, load.From.Offset = obj.TYPE_MEM, arm64.REG_R24, int64(funcID)*8
	bld.AddInstruction(load)

	movArg := func(from, to int16) {
		p := bld.NewProg()
		p.As = arm64.AMOVD
		p.To.Type, p.To.Reg = obj.TYPE_REG, to
		p.From.Type, p.From.Reg = obj.TYPE_REG, from
		bld.AddInstruction(p)
	}
	movArg(arm64.REG_R19, arm64.REG_R0)
	movArg(arm64.REG_R20, arm64.REG_R1)
	movArg(arm64.REG_R24, arm64.REG_R2)

	call := bld.NewProg()
	call.As = obj.ACALL
	call.To.Type, call.To.Reg = obj.TYPE_REG, arm64.REG_R9
	bld.AddInstruction(call)

	b.stackPush(ctx, arm64.REG_R0)
}

// EmitStoreLocal implements Backend.
func (b *ARM64Backend) EmitStoreLocal(ctx *Context, offset uint32) {
	b.stackPop(ctx, arm64.REG_R0)
	b.localsStore(ctx, arm64.REG_R0, offset)
}

// EmitLoadLocal implements Backend.
func (b *ARM64Backend) EmitLoadLocal(ctx *Context, offset uint32) {
	b.localsLoad(ctx, arm64.REG_R0, offset)
	b.stackPush(ctx, arm64.REG_R0)
}

func (b *ARM64Backend) localsLoad(ctx *Context, reg int16, index uint32) {
	p := ctx.Builder.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R9
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, arm64.REG_R20, 0
	ctx.Builder.AddInstruction(p)

	ld := ctx.Builder.NewProg()
	ld.As = arm64.AMOVD
	ld.To.Type, ld.To.Reg = obj.TYPE_REG, reg
	ld.From.Type, ld.From.Reg, ld.From.Offset = obj.TYPE_MEM, arm64.REG_R9, int64(index)*8
	ctx.Builder.AddInstruction(ld)
}

func (b *ARM64Backend) localsStore(ctx *Context, reg int16, index uint32) {
	p := ctx.Builder.NewProg()
	p.As = arm64.AMOVD
	p.To.Type, p.To.Reg = obj.TYPE_REG, arm64.REG_R9
	p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, arm64.REG_R20, 0
	ctx.Builder.AddInstruction(p)

	st := ctx.Builder.NewProg()
	st.As = arm64.AMOVD
	st.From.Type, st.From.Reg = obj.TYPE_REG, reg
	st.To.Type, st.To.Reg, st.To.Offset = obj.TYPE_MEM, arm64.REG_R9, int64(index)*8
	ctx.Builder.AddInstruction(st)
}

// minFrameSizeARM64 mirrors minFrameSize, 16-byte aligned per AAPCS64.
const minFrameSizeARM64 = 96

// EmitFunctionPrologue implements Backend: saves fp/lr and the
// callee-saved registers the backend touches as stp pairs, per the
// AAPCS64 convention spec §4.6 calls out for ARM64.
func (b *ARM64Backend) EmitFunctionPrologue(ctx *Context) {
	bld := ctx.Builder

	sub := bld.NewProg()
	sub.As = arm64.ASUB
	sub.To.Type, sub.To.Reg = obj.TYPE_REG, arm64.REGSP
	sub.From.Type, sub.From.Offset = obj.TYPE_CONST, minFrameSizeARM64
	sub.Reg = arm64.REGSP
	bld.AddInstruction(sub)

	stp := func(r1, r2 int16, off int64) {
		p := bld.NewProg()
		p.As = arm64.ASTP
		p.From.Type, p.From.Reg = obj.TYPE_REGREG, r1
		p.From.Offset = int64(r2)
		p.To.Type, p.To.Reg, p.To.Offset = obj.TYPE_MEM, arm64.REGSP, off
		bld.AddInstruction(p)
	}
	stp(arm64.REG_R29, arm64.REG_R30, 0) // fp, lr
	stp(arm64.REG_R19, arm64.REG_R20, 16)
	stp(arm64.REG_R21, arm64.REG_R22, 32)
	stp(arm64.REG_R23, arm64.REG_R24, 48)

	mov := bld.NewProg()
	mov.As = arm64.AMOVD
	mov.To.Type, mov.To.Reg = obj.TYPE_REG, arm64.REG_R29
	mov.From.Type, mov.From.Reg = obj.TYPE_REG, arm64.REGSP
	bld.AddInstruction(mov)

	// The driver invokes compiled code as
	// func(stack, locals *[]uint64, userFuncs uintptr); under AAPCS64
	// those arrive in X0-X2, matching what R19/R20/R24 need for the
	// rest of the function. R23 is reserved but currently unused (see
	// AMD64Backend's EmitFunctionPrologue for why LIBC_CALL no longer
	// needs a table pointer here).
	movArg := func(from, to int16) {
		p := bld.NewProg()
		p.As = arm64.AMOVD
		p.From.Type, p.From.Reg = obj.TYPE_REG, from
		p.To.Type, p.To.Reg = obj.TYPE_REG, to
		bld.AddInstruction(p)
	}
	movArg(arm64.REG_R0, arm64.REG_R19)
	movArg(arm64.REG_R1, arm64.REG_R20)
	movArg(arm64.REG_R2, arm64.REG_R24)
}

// EmitFunctionEpilogue implements Backend.
func (b *ARM64Backend) EmitFunctionEpilogue(ctx *Context) {
	bld := ctx.Builder

	ldp := func(r1, r2 int16, off int64) {
		p := bld.NewProg()
		p.As = arm64.ALDP
		p.To.Type, p.To.Reg = obj.TYPE_REGREG, r1
		p.To.Offset = int64(r2)
		p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, arm64.REGSP, off
		bld.AddInstruction(p)
	}
	ldp(arm64.REG_R23, arm64.REG_R24, 48)
	ldp(arm64.REG_R21, arm64.REG_R22, 32)
	ldp(arm64.REG_R19, arm64.REG_R20, 16)
	ldp(arm64.REG_R29, arm64.REG_R30, 0)

	add := bld.NewProg()
	add.As = arm64.AADD
	add.To.Type, add.To.Reg = obj.TYPE_REG, arm64.REGSP
	add.From.Type, add.From.Offset = obj.TYPE_CONST, minFrameSizeARM64
	add.Reg = arm64.REGSP
	bld.AddInstruction(add)

	ret := bld.NewProg()
	ret.As = obj.ARET
	bld.AddInstruction(ret)
}
