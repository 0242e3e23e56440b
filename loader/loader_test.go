// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"path/filepath"
	"testing"

	"github.com/astc-run/astcvm/container"
)

func writeTestModule(t *testing.T, dir, logicalName string) string {
	t.Helper()
	b := container.NewBuilder(container.ArchX86_64, container.ModuleTypeUser)
	code := []byte{0xC3} // RET
	b.SetCode(code, 0)
	if err := b.AddExport("entry", container.ExportFunction, 0, 1); err != nil {
		t.Fatalf("AddExport: %v", err)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	path := filepath.Join(dir, logicalName+"_x64_64.native")
	if err := container.WriteFile(path, m); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAndRefcount(t *testing.T) {
	dir := t.TempDir()
	path := writeTestModule(t, dir, "demo")

	r := NewRegistry([]string{dir}, container.ArchX86_64)

	h1, err := r.Load("demo", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h2, err := r.Load("demo", path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected the same handle on a second load of the same logical name")
	}
	if h1.refcount != 2 {
		t.Fatalf("refcount = %d, want 2", h1.refcount)
	}

	if err := r.Unload(h1); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, ok := r.byName["demo"]; !ok {
		t.Fatal("module unloaded too early: refcount should still be 1")
	}
	if err := r.Unload(h1); err != nil {
		t.Fatalf("second Unload: %v", err)
	}
	if _, ok := r.byName["demo"]; ok {
		t.Fatal("module should be gone once refcount reaches zero")
	}
}

func TestLoadAutoDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "autod")

	r := NewRegistry([]string{dir}, container.ArchX86_64)
	h, err := r.Load("autod", "")
	if err != nil {
		t.Fatalf("Load with auto-discovery: %v", err)
	}
	if h.Kind() != "native" {
		t.Fatalf("Kind() = %q, want native", h.Kind())
	}
}

func TestLoadUnknownModuleFails(t *testing.T) {
	r := NewRegistry([]string{t.TempDir()}, container.ArchX86_64)
	if _, err := r.Load("nope", ""); err == nil {
		t.Fatal("expected an error for an undiscoverable module")
	} else if _, ok := err.(*ModuleNotFoundError); !ok {
		t.Fatalf("got %T, want *ModuleNotFoundError", err)
	}
}

func TestResolveAndResolveGlobal(t *testing.T) {
	dir := t.TempDir()
	pathA := writeTestModule(t, dir, "a")
	_ = pathA

	r := NewRegistry([]string{dir}, container.ArchX86_64)
	h, err := r.Load("a", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	addr, err := r.Resolve(h, "entry")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr == 0 {
		t.Fatal("resolved address is zero")
	}

	if _, err := r.Resolve(h, "missing"); err == nil {
		t.Fatal("expected SymbolNotFoundError for a missing export")
	}

	modName, gaddr, err := r.ResolveGlobal("entry")
	if err != nil {
		t.Fatalf("ResolveGlobal: %v", err)
	}
	if modName != "a" || gaddr != addr {
		t.Fatalf("ResolveGlobal returned (%s, %#x), want (a, %#x)", modName, gaddr, addr)
	}
}

func TestResolveGlobalMostRecentWins(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "first")
	writeTestModule(t, dir, "second")

	r := NewRegistry([]string{dir}, container.ArchX86_64)
	if _, err := r.Load("first", ""); err != nil {
		t.Fatalf("Load first: %v", err)
	}
	if _, err := r.Load("second", ""); err != nil {
		t.Fatalf("Load second: %v", err)
	}

	modName, _, err := r.ResolveGlobal("entry")
	if err != nil {
		t.Fatalf("ResolveGlobal: %v", err)
	}
	if modName != "second" {
		t.Fatalf("ResolveGlobal picked %q, want the most recently loaded module", modName)
	}
}

func TestArchitectureMismatchIsFatalNotFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeTestModule(t, dir, "wrongarch")

	r := NewRegistry([]string{dir}, container.ArchARM64)
	if _, err := r.Load("wrongarch", path); err == nil {
		t.Fatal("expected an architecture mismatch error, not a silent dynamic-library fallback")
	}
}

func TestCleanupUnloadsEverything(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "x")

	r := NewRegistry([]string{dir}, container.ArchX86_64)
	if _, err := r.Load("x", ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r.Cleanup()
	if len(r.List()) != 0 {
		t.Fatalf("List() = %v, want empty after Cleanup", r.List())
	}
}

func TestDiscoveryNameFormat(t *testing.T) {
	if got, want := discoveryName("vm", container.ArchX86_64), "vm_x64_64.native"; got != want {
		t.Fatalf("discoveryName = %q, want %q", got, want)
	}
	if got, want := discoveryName("vm", container.ArchARM32), "vm_arm32_32.native"; got != want {
		t.Fatalf("discoveryName = %q, want %q", got, want)
	}
}
