// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codegen implements C6 (the code-generator core: register
// bookkeeping, peephole optimization) and C7 (the concrete x86-64 and
// ARM64 backends), following the per-architecture emit-hook vtable
// shape of exec/internal/compile/backend_amd64.go in the teacher
// repository, built on the same golang-asm (twitchyliquid64/golang-asm)
// IR the teacher uses rather than hand-encoded opcode bytes.
package codegen

import "github.com/astc-run/astcvm/container"

// Backend is the uniform per-architecture vtable of emit hooks
// described in spec §4.6. Each method appends to ctx's builder and
// updates its register/stack bookkeeping.
type Backend interface {
	Name() string
	Arch() container.Arch

	EmitNop(ctx *Context)
	EmitHaltWithReturn(ctx *Context)
	EmitConstI32(ctx *Context, v uint32)
	EmitAdd(ctx *Context)
	EmitSub(ctx *Context)
	EmitMul(ctx *Context)
	EmitDiv(ctx *Context) error
	EmitCmpEq(ctx *Context)
	EmitCmpLt(ctx *Context)
	EmitBranch(ctx *Context, target int)
	EmitBranchIfFalse(ctx *Context, target int)
	EmitLibcCall(ctx *Context, funcID, argc uint16)
	EmitUserCall(ctx *Context, funcID uint32)
	EmitStoreLocal(ctx *Context, offset uint32)
	EmitLoadLocal(ctx *Context, offset uint32)
	EmitFunctionPrologue(ctx *Context)
	EmitFunctionEpilogue(ctx *Context)
}

// NewBackend returns the Backend for archName ("amd64" or "arm64",
// golang-asm's architecture strings). Any other value is an error: the
// JIT driver (package jit) is expected to have already resolved the
// host architecture via package arch before reaching here.
func NewBackend(archName string) (Backend, error) {
	switch archName {
	case "amd64":
		return &AMD64Backend{}, nil
	case "arm64":
		return &ARM64Backend{}, nil
	default:
		return nil, &UnsupportedArchError{Arch: archName}
	}
}

// State is the compilation state machine of spec §4.6.
type State int

// Recognized states.
const (
	Idle State = iota
	ParsingHeader
	DecodingInstructions
	Emitting
	Optimizing
	Finalized
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ParsingHeader:
		return "ParsingHeader"
	case DecodingInstructions:
		return "DecodingInstructions"
	case Emitting:
		return "Emitting"
	case Optimizing:
		return "Optimizing"
	case Finalized:
		return "Finalized"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Stats are compilation statistics accumulated on a Context.
type Stats struct {
	InstructionsCompiled int
	OptimizationsApplied int
	SpillCount           int
	CompileMicros        int64
}
