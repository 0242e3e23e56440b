// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch detects the host instruction set architecture and
// pointer width, and maps that detection onto the module-filename
// convention and container.Arch tags used by the rest of the stack.
//
// Detection is read from the Go runtime's own notion of GOARCH rather
// than parsed from /proc/cpuinfo or environment strings as spec §4.4
// describes for the original C host: runtime.GOARCH is itself derived
// from those same OS facilities at build time, and unsafe.Sizeof gives
// the pointer width without assuming it. No third-party library in the
// reference corpus performs this kind of detection, so this package is
// necessarily stdlib-only; see DESIGN.md.
package arch

import (
	"runtime"
	"strconv"
	"unsafe"

	"github.com/astc-run/astcvm/container"
)

// ISA identifies a host instruction set family, independent of pointer
// width.
type ISA int

// Recognized instruction set families.
const (
	Unknown ISA = iota
	X86
	ARM
)

func (i ISA) String() string {
	switch i {
	case X86:
		return "x86"
	case ARM:
		return "arm"
	default:
		return "unknown"
	}
}

// Info is the result of a host detection: an ISA family and pointer
// width (32 or 64 bits).
type Info struct {
	ISA  ISA
	Bits int
}

// Detect reads the host architecture and pointer width from the Go
// runtime.
func Detect() Info {
	bits := int(unsafe.Sizeof(uintptr(0))) * 8
	switch runtime.GOARCH {
	case "amd64", "386":
		return Info{ISA: X86, Bits: bits}
	case "arm64", "arm":
		return Info{ISA: ARM, Bits: bits}
	default:
		return Info{ISA: Unknown, Bits: bits}
	}
}

// ContainerArch maps this Info to the container.Arch tag a .native
// file loaded on this host must declare.
func (i Info) ContainerArch() container.Arch {
	switch {
	case i.ISA == X86 && i.Bits == 64:
		return container.ArchX86_64
	case i.ISA == X86 && i.Bits == 32:
		return container.ArchX86
	case i.ISA == ARM && i.Bits == 64:
		return container.ArchARM64
	case i.ISA == ARM && i.Bits == 32:
		return container.ArchARM32
	default:
		return container.ArchUnknown
	}
}

// ModuleSuffix returns the "{arch}_{bits}" token used by the
// "{logical_name}_{arch}_{bits}.native" filename convention of spec §6.
func (i Info) ModuleSuffix() string {
	var archTok string
	switch {
	case i.ISA == X86 && i.Bits == 64:
		archTok = "x64"
	case i.ISA == X86 && i.Bits == 32:
		archTok = "x86"
	case i.ISA == ARM && i.Bits == 64:
		archTok = "arm64"
	case i.ISA == ARM && i.Bits == 32:
		archTok = "arm32"
	default:
		archTok = "unknown"
	}
	return archTok + "_" + strconv.Itoa(i.Bits)
}
