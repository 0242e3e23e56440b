// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"plugin"
	"reflect"
)

// symbolAddress extracts the address plugin.Open already resolved for
// sym, which is either *T (a variable) or a func value. reflect.Value's
// Pointer method covers both: for a Func value it is the code entry
// point, for a Ptr it is the variable's address.
func symbolAddress(sym plugin.Symbol) uintptr {
	return reflect.ValueOf(sym).Pointer()
}
