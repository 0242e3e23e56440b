// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/astc-run/astcvm/container"
)

// discoveryName builds the "{name}_{arch}_{bits}.native" filename spec
// §4.2's auto-discovery looks for.
func discoveryName(logicalName string, hostArch container.Arch) string {
	bits := 64
	if hostArch == container.ArchX86 || hostArch == container.ArchARM32 {
		bits = 32
	}
	return fmt.Sprintf("%s_%s_%d.native", logicalName, hostArch.String(), bits)
}

// discover searches r.searchPaths, in order, for a file matching
// logicalName's discovery name. It returns the first match.
func (r *Registry) discover(logicalName string) (string, bool) {
	want := discoveryName(logicalName, r.hostArch)
	for _, dir := range r.searchPaths {
		candidate := filepath.Join(dir, want)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// Load resolves logicalName to a handle. If a module of that name is
// already loaded, its refcount is incremented and the existing handle
// returned (spec §4.2). Otherwise filePath is used directly if
// non-empty; an empty filePath triggers auto-discovery across the
// registry's search paths.
//
// The file is first offered to C1's reader; InvalidMagic (the only
// failure that means "not a .native file at all" rather than "a
// malformed one") triggers the host dynamic-library fallback. Any
// other C1 error is fatal: a file that declares itself NATV but then
// fails validation is not silently handed to plugin.Open.
func (r *Registry) Load(logicalName, filePath string) (*Handle, error) {
	r.mu.Lock()
	if h, ok := r.byName[logicalName]; ok {
		h.refcount++
		r.mu.Unlock()
		logger.Printf("load %q: reusing existing handle (refcount=%d)", logicalName, h.refcount)
		return h, nil
	}
	if r.maxModules > 0 && len(r.byName) >= r.maxModules {
		r.mu.Unlock()
		return nil, &MaxModulesReachedError{Limit: r.maxModules}
	}
	r.mu.Unlock()

	path := filePath
	if path == "" {
		found, ok := r.discover(logicalName)
		if !ok {
			return nil, &ModuleNotFoundError{Name: logicalName}
		}
		path = found
	}

	h, err := r.loadFromPath(logicalName, path)
	if err != nil {
		return nil, &LoadFailedError{Path: path, Cause: err}
	}

	r.mu.Lock()
	h.refcount = 1
	r.byName[logicalName] = h
	r.order = append(r.order, logicalName)
	r.mu.Unlock()

	logger.Printf("load %q: mapped from %s (kind=%s)", logicalName, path, h.Kind())
	return h, nil
}

func (r *Registry) loadFromPath(logicalName, path string) (*Handle, error) {
	nm, err := container.ReadFile(path, r.hostArch)
	switch {
	case err == nil:
		mapped, err := container.MapIntoProcess(nm)
		if err != nil {
			return nil, err
		}
		return &Handle{Name: logicalName, Path: path, native: mapped}, nil
	case errors.Is(err, container.ErrInvalidMagic):
		dyn, derr := openDynamic(path)
		if derr != nil {
			return nil, derr
		}
		return &Handle{Name: logicalName, Path: path, dyn: dyn}, nil
	default:
		return nil, err
	}
}

// Unload drops h's refcount by one, unmapping the underlying module
// once it reaches zero. Calling Unload on an already-fully-unloaded
// handle is a no-op.
func (r *Registry) Unload(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.refcount <= 0 {
		return nil
	}
	h.refcount--
	if h.refcount > 0 {
		return nil
	}

	delete(r.byName, h.Name)
	for i, n := range r.order {
		if n == h.Name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if h.native != nil {
		return h.native.Unmap()
	}
	return nil
}

// Resolve looks up symbol within h only.
func (r *Registry) Resolve(h *Handle, symbol string) (uintptr, error) {
	if h.native != nil {
		addr, err := h.native.FindExport(symbol)
		if err != nil {
			return 0, &SymbolNotFoundError{Symbol: symbol}
		}
		return addr, nil
	}
	return h.dyn.lookup(symbol)
}

// ResolveGlobal walks every loaded module, most recently loaded first,
// returning the first hit (spec §4.2: "to make libc overrides
// deterministic").
func (r *Registry) ResolveGlobal(symbol string) (moduleName string, addr uintptr, err error) {
	r.mu.Lock()
	names := append([]string{}, r.order...)
	handles := make(map[string]*Handle, len(r.byName))
	for k, v := range r.byName {
		handles[k] = v
	}
	r.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		h := handles[names[i]]
		if h == nil {
			continue
		}
		if addr, err := r.Resolve(h, symbol); err == nil {
			return h.Name, addr, nil
		}
	}
	return "", 0, &SymbolNotFoundError{Symbol: symbol}
}
