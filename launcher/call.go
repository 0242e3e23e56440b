// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package launcher

import "unsafe"

// callVMMain invokes fn with the C calling convention a module's
// vm_native_main export is written against: int vm_native_main(int
// argc, char **argv). As with jit.jitcall, Go cannot safely cast a
// resolved symbol address directly to a callable func value, so a
// small per-architecture assembly trampoline bridges the call.
// Implemented in call_amd64.s / call_arm64.s.
func callVMMain(fn unsafe.Pointer, argc int64, argv unsafe.Pointer) int32
