// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import "github.com/astc-run/astcvm/libc"

// activeLibcTable is the libc.Table a LIBC_CALL dispatches against.
// Spec §5 documents the module registry and libc statistics as
// process-wide mutable state touched only from the single control
// thread; this mirrors that for the currently executing compiled
// program, set by Invoke for the duration of one call.
var activeLibcTable *libc.Table

// libcTrampoline is the external symbol AMD64Backend.EmitLibcCall and
// ARM64Backend.EmitLibcCall reference via golang-asm's NAME_EXTERN
// relocation (the same technique used for trapDivideByZero). It
// forwards to the active libc.Table's dispatch.
//
//go:noinline
func libcTrampoline(funcID, a0, a1, a2, a3 int64) int64 {
	if activeLibcTable == nil {
		return 0
	}
	return activeLibcTable.Call(uint16(funcID), [4]int64{a0, a1, a2, a3})
}
