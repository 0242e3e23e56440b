// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import "fmt"

// ModuleNotFoundError is returned when a logical module name cannot be
// located in any configured search path.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("loader: module %q not found", e.Name)
}

// LoadFailedError wraps the underlying cause of a failed module load,
// whether from the container codec or from host dynamic-library
// loading.
type LoadFailedError struct {
	Path  string
	Cause error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("loader: load %q failed: %v", e.Path, e.Cause)
}

func (e *LoadFailedError) Unwrap() error { return e.Cause }

// SymbolNotFoundError is returned by Resolve/ResolveGlobal when no
// loaded module exports the requested symbol.
type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("loader: symbol %q not found", e.Symbol)
}

// MaxModulesReachedError is returned when the registry's configured
// module limit would be exceeded by a new load.
type MaxModulesReachedError struct {
	Limit int
}

func (e *MaxModulesReachedError) Error() string {
	return fmt.Sprintf("loader: maximum of %d loaded modules reached", e.Limit)
}
