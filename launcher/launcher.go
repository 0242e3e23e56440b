// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package launcher implements C9: the one public entry point that
// turns an ASTC file path into a process exit code. It never
// interprets ASTC itself; per spec §4.8 it detects the host
// architecture (package arch, C4), loads the matching vm_{arch}_{bits}
// module (package loader, C2), resolves that module's vm_native_main
// export, and invokes it with the ASTC path as argv[1] — delegating
// all parsing, compilation and execution to the loaded module.
//
// Grounded on cmd/wasm-run/main.go's run function for the overall
// "open input, hand it to the engine, report the result" shape, with
// the actual engine call replaced by a cross-module native invocation.
package launcher

import (
	"io"
	"log"
	"os"
	"runtime"
	"unsafe"

	"github.com/astc-run/astcvm/arch"
	"github.com/astc-run/astcvm/loader"
)

var logger = log.New(io.Discard, "launcher: ", log.Lshortfile)

// SetVerbose toggles diagnostic logging.
func SetVerbose(v bool) {
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}
}

// Exit codes, per spec §8.
const (
	ExitSuccess            = 0
	ExitUsageError         = 1
	ExitModuleLoadFailure  = 2
	ExitASTCParseFailure   = 3
	ExitCompilationFailure = 4
	ExitCompiledCodeTrap   = 5
)

// Options configures a Launcher.
type Options struct {
	// VMModulePath overrides auto-discovery of the vm module; empty
	// means search the registry's configured paths for
	// "vm_{arch}_{bits}.native".
	VMModulePath string
	// ModulePaths, if non-empty, replaces loader.DefaultSearchPaths.
	ModulePaths []string
}

// Launcher ties package arch and package loader together to run an
// ASTC program end to end.
type Launcher struct {
	registry *loader.Registry
	opts     Options
}

// New constructs a Launcher for the host this process is running on.
func New(opts Options) *Launcher {
	hostArch := arch.Detect().ContainerArch()
	reg := loader.NewRegistry(opts.ModulePaths, hostArch)
	return &Launcher{registry: reg, opts: opts}
}

// Registry exposes the underlying module registry, e.g. so a caller
// can preload additional modules before Run.
func (l *Launcher) Registry() *loader.Registry { return l.registry }

// Run loads the VM module for the host architecture and invokes its
// vm_native_main export with astcPath forwarded as argv[1]. The
// returned int is the process exit code spec §8 defines; err is
// non-nil only for failures the launcher itself detects (module load,
// missing export) as opposed to failures the VM module reports through
// its own return value.
func (l *Launcher) Run(astcPath string) (int, error) {
	info := arch.Detect()
	vmName := "vm"

	handle, err := l.registry.Load(vmName, l.opts.VMModulePath)
	if err != nil {
		logger.Printf("failed to load vm module for %s: %v", info.ModuleSuffix(), err)
		return ExitModuleLoadFailure, err
	}

	addr, err := l.registry.Resolve(handle, "vm_native_main")
	if err != nil {
		logger.Printf("vm module has no vm_native_main export: %v", err)
		return ExitModuleLoadFailure, err
	}

	argv0 := cBytes("astcrun")
	argv1 := cBytes(astcPath)
	argvPtrs := []unsafe.Pointer{
		unsafe.Pointer(&argv0[0]),
		unsafe.Pointer(&argv1[0]),
	}

	rc := callVMMain(unsafe.Pointer(addr), 2, unsafe.Pointer(&argvPtrs[0]))
	runtime.KeepAlive(argv0)
	runtime.KeepAlive(argv1)
	runtime.KeepAlive(argvPtrs)

	logger.Printf("vm_native_main returned %d", rc)
	return int(rc), nil
}

// cBytes returns s as a NUL-terminated byte slice suitable for passing
// as a C string.
func cBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
