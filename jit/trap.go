// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

// trapDivideByZero is the external symbol the AMD64 and ARM64 backends
// reference (via golang-asm's NAME_EXTERN relocation) when a DIV
// instruction's divisor is zero. It never returns to the compiled
// code: it unwinds the calling goroutine with a panic that Invoke
// recovers into a TrapDuringExecutionError.
//
//go:noinline
func trapDivideByZero() {
	panic(&TrapDuringExecutionError{Cause: "division by zero"})
}
