// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader implements C2: the module loader. It parses a
// ".native" container via package container, falls back to the host's
// own dynamic-library loader when a file doesn't decode as NATV, and
// keeps every loaded module in a name-keyed, refcounted registry so a
// second load of the same logical name is a cheap refcount bump
// instead of a second mapping.
//
// Grounded on cmd/wasm-run/main.go's importer callback (the teacher's
// closest analogue to resolving a named module against a search path)
// and on container.MapIntoProcess for the actual in-process mapping.
package loader

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/astc-run/astcvm/arch"
	"github.com/astc-run/astcvm/container"
)

var logger = log.New(io.Discard, "loader: ", log.Lshortfile)

// SetVerbose toggles diagnostic logging.
func SetVerbose(v bool) {
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}
}

// DefaultSearchPaths is the auto-discovery list spec §4.2 names:
// "./modules/", "./lib/", the executable's directory, and
// "bin/layer2/".
func DefaultSearchPaths() []string {
	paths := []string{"modules", "lib"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}
	paths = append(paths, filepath.Join("bin", "layer2"))
	return paths
}

// Handle is a live reference to a loaded module. It stays valid from
// the Load call that returned it until the matching Unload drops its
// refcount to zero (spec §4.2's invariant); symbol pointers obtained
// via Resolve must not be used past that point.
type Handle struct {
	Name     string
	Path     string
	refcount int

	native *container.MappedModule // set when loaded through C1
	dyn    *dynModule              // set when loaded through the host loader
}

// Kind reports which loading path produced this handle.
func (h *Handle) Kind() string {
	if h.native != nil {
		return "native"
	}
	return "dynamic"
}

// Registry is the process-wide, name-keyed table of loaded modules
// (spec §5's single control thread owns it, but Registry serializes
// its own bookkeeping with a mutex so it is safe to call from a
// launcher that itself runs on one goroutine at a time per spec's
// scheduling model, while still being defensible under -race).
type Registry struct {
	mu          sync.Mutex
	searchPaths []string
	maxModules  int

	byName map[string]*Handle
	// order records load order, most recent last; ResolveGlobal walks
	// it back-to-front so the most recently loaded module wins ties,
	// per spec §4.2 ("to make libc overrides deterministic").
	order []string

	hostArch container.Arch
}

// NewRegistry constructs a Registry that auto-discovers modules under
// searchPaths (DefaultSearchPaths() if nil) and refuses containers
// whose declared architecture doesn't match hostArch.
func NewRegistry(searchPaths []string, hostArch container.Arch) *Registry {
	if searchPaths == nil {
		searchPaths = DefaultSearchPaths()
	}
	return &Registry{
		searchPaths: searchPaths,
		byName:      make(map[string]*Handle),
		hostArch:    hostArch,
	}
}

// New constructs a Registry configured for the host this process is
// actually running on.
func New() *Registry {
	return NewRegistry(nil, arch.Detect().ContainerArch())
}

// SetMaxModules caps the number of distinct logical names the
// registry will hold concurrently; zero (the default) means
// unlimited.
func (r *Registry) SetMaxModules(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxModules = n
}

// Init resets the registry to an empty state. Cleanup unloads
// everything. Both exist to mirror spec §4.2's init/cleanup pair for
// callers that manage a Registry's lifetime explicitly rather than
// relying on New returning a ready instance.
func (r *Registry) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]*Handle)
	r.order = nil
}

// Cleanup unloads every module regardless of refcount.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	names := append([]string{}, r.order...)
	r.mu.Unlock()
	for _, n := range names {
		r.mu.Lock()
		h := r.byName[n]
		r.mu.Unlock()
		if h == nil {
			continue
		}
		for h.refcount > 0 {
			r.Unload(h)
		}
	}
}

// IsLoaded reports whether name currently has a live handle.
func (r *Registry) IsLoaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byName[name]
	return ok
}

// List returns the logical names of every currently loaded module,
// most recently loaded last.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.order...)
}

// Info returns the handle's bookkeeping state: name, path, kind, and
// current refcount.
type Info struct {
	Name     string
	Path     string
	Kind     string
	Refcount int
}

// Info reports a handle's current bookkeeping state.
func (r *Registry) Info(h *Handle) Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{Name: h.Name, Path: h.Path, Kind: h.Kind(), Refcount: h.refcount}
}
