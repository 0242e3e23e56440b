// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import "plugin"

// dynModule wraps a module brought in through the host's own dynamic
// loader rather than C1, for the "format mismatch" fallback path spec
// §4.2 requires. plugin.Open is the one facility the Go runtime itself
// exposes for this (it calls into the platform's dlopen under the
// hood on the platforms that support it at all); no third-party
// library in the reference corpus wraps dynamic-library loading, so
// this one function is necessarily stdlib — see DESIGN.md.
type dynModule struct {
	p *plugin.Plugin
}

func openDynamic(path string) (*dynModule, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &dynModule{p: p}, nil
}

// lookup resolves a symbol to a function pointer the same shape
// resolve/resolve_global return for a native module: an opaque
// uintptr, obtained here via the symbol's address rather than a
// section offset.
func (d *dynModule) lookup(name string) (uintptr, error) {
	sym, err := d.p.Lookup(name)
	if err != nil {
		return 0, &SymbolNotFoundError{Symbol: name}
	}
	return symbolAddress(sym), nil
}
