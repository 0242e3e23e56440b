// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package container implements the ".native" (NATV) binary container
// format: the on-disk layout for VM, libc and user modules, and the
// logic to validate, serialize and map an instance into process memory.
//
// The layout follows the header-then-sections shape used throughout
// the reference corpus (wasm.Module's magic+version header, PE's
// section table): a fixed 64-byte header, a code section, a data
// section and an export table, each aligned to 16 bytes.
package container

import (
	"encoding/binary"
	"hash/crc64"
)

// Magic is the 4-byte magic number at the start of every .native file.
var Magic = [4]byte{'N', 'A', 'T', 'V'}

// CurrentVersion is the only header version this package accepts on read.
const CurrentVersion uint32 = 1

// HeaderSize is the fixed size, in bytes, of the on-disk header.
const HeaderSize = 64

// SectionAlignment is the alignment, in bytes, required of every
// section's start offset.
const SectionAlignment = 16

// MaxExports is the maximum number of exports a single module may declare.
const MaxExports = 1024

// MaxExportNameLen is the maximum length, in bytes, of an export name
// including its terminating NUL.
const MaxExportNameLen = 256

// Arch tags the target instruction set architecture a module's code
// section was generated for.
type Arch uint8

// Recognized architectures. Values are part of the wire format and
// must not be renumbered.
const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchARM32
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x64"
	case ArchARM32:
		return "arm32"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ModuleType tags what role a module plays in the execution stack.
type ModuleType uint8

// Recognized module types. Values are part of the wire format.
const (
	ModuleTypeUser ModuleType = iota
	ModuleTypeVM
	ModuleTypeLibc
)

// ExportKind identifies the nature of a named export.
type ExportKind uint8

// Recognized export kinds.
const (
	ExportFunction ExportKind = iota
	ExportVariable
	ExportConstant
)

// ExportFlag bits carried in an Export's Flags field. Reserved for
// future use (e.g. weak symbols); the codec round-trips them verbatim.
type ExportFlag uint32

// Header is the fixed-size, little-endian on-disk header of a
// .native file.
type Header struct {
	Magic             [4]byte
	Version           uint32
	Arch              Arch
	ModType           ModuleType
	Flags             uint16
	CodeOffset        uint32
	CodeSize          uint32
	DataOffset        uint32
	DataSize          uint32
	ExportTableOffset uint32
	ExportCount       uint32
	EntryOffset       uint32
	Checksum          uint64
	_                 [16]byte // reserved, always zero on write
}

// Export is one entry of the export table: a named, typed,
// offset-addressable symbol inside a module's code or data section.
type Export struct {
	Name   string
	Kind   ExportKind
	Flags  ExportFlag
	Offset uint32
	Size   uint32
}

// NativeModule is the in-memory representation of a .native container,
// as produced by a Builder or returned by Read.
type NativeModule struct {
	Header  Header
	Code    []byte
	Data    []byte
	Exports []Export
}

// FindExport returns the export with the given name, or
// (Export{}, false) if none exists.
func (m *NativeModule) FindExport(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

var crcTable = crc64.MakeTable(crc64.ISO)

// computeChecksum returns the CRC64-ISO checksum of buf, as if the
// 8-byte checksum field at checksumFieldOffset were all zero.
func computeChecksum(buf []byte) uint64 {
	masked := make([]byte, len(buf))
	copy(masked, buf)
	for i := 0; i < 8; i++ {
		masked[checksumFieldOffset+i] = 0
	}
	return crc64.Checksum(masked, crcTable)
}

// checksumFieldOffset is the byte offset of Header.Checksum within the
// encoded header. Computed once from the struct layout in encode.go's
// encodeHeader so it stays correct if the struct changes.
const checksumFieldOffset = 4 + 4 + 1 + 1 + 2 + 4 + 4 + 4 + 4 + 4 + 4 + 4

var byteOrder = binary.LittleEndian
