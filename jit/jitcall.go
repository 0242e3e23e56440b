// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import "unsafe"

// jitcall is the hand-written trampoline (jitcall_amd64.s,
// jitcall_arm64.s) that bridges a Go call into the System V / AAPCS64
// calling convention the backends' EmitFunctionPrologue hooks expect,
// then jumps to fn. This mirrors the role of
// exec/internal/compile/native_exec.go's asmBlock.Invoke in the
// teacher repository, which calls through an equivalent (and, there,
// build-tag-gated out of this copy) jitcall assembly stub.
func jitcall(fn unsafe.Pointer, stack, locals *[]uint64, userTable uintptr) int64
