// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import "fmt"

// ErrExecutableMapFailed is returned when the compiled code buffer
// cannot be committed to an executable mapping.
var ErrExecutableMapFailed = fmt.Errorf("jit: executable map failed")

// TrapDuringExecutionError is returned (via panic/recover at the
// Invoke boundary) when compiled code hits a runtime trap, per spec
// §8 property 6 — currently raised only for integer division by zero.
type TrapDuringExecutionError struct {
	Cause string
}

func (e *TrapDuringExecutionError) Error() string {
	return fmt.Sprintf("jit: trap during execution: %s", e.Cause)
}
