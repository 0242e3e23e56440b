// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtfile implements the ".rt" / RTME wrapper format: spec §6's
// second, simpler compilation output sink, produced by the older
// astc2rt pipeline. It is header-then-payload like container's .native
// format but carries no data section and no export table — just a
// fixed 16-byte header followed by raw machine code — so this package
// builds its own CRC64-ISO table the same way container does and does
// not import container at all.
package rtfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc64"
	"io"
	"os"
)

// Magic is the 4-byte magic number at the start of every .rt file.
var Magic = [4]byte{'R', 'T', 'M', 'E'}

// CurrentVersion is the only header version this package accepts on read.
const CurrentVersion uint32 = 1

// HeaderSize is the fixed size, in bytes, of the on-disk header.
const HeaderSize = 16

// Sentinel errors returned by Read.
var (
	ErrInvalidMagic       = errors.New("rtfile: invalid magic number")
	ErrUnsupportedVersion = errors.New("rtfile: unsupported header version")
	ErrCorruptHeader      = errors.New("rtfile: corrupt header")
	ErrTruncatedPayload   = errors.New("rtfile: payload shorter than declared code_size")
)

var crcTable = crc64.MakeTable(crc64.ISO)

// Blob is the in-memory representation of a .rt file: a header plus
// its raw machine-code payload.
type Blob struct {
	Version     uint32
	EntryOffset uint32
	Code        []byte
}

// Write serializes b to w as {magic, version, code_size, entry_offset}
// followed by the code bytes. Unlike container's format, a .rt file
// has no checksum field; spec §6 does not describe one, and nothing
// downstream validates integrity beyond the header.
func Write(w io.Writer, b *Blob) error {
	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], Magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], CurrentVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(b.Code)))
	binary.LittleEndian.PutUint32(hdr[12:16], b.EntryOffset)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(b.Code)
	return err
}

// WriteFile is a convenience wrapper around Write that creates (or
// truncates) path.
func WriteFile(path string, b *Blob) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, b)
}

// Read parses a .rt image from r: magic, version and declared
// code_size are validated before the payload is trusted.
func Read(r io.Reader) (*Blob, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// ReadFile is a convenience wrapper around Read.
func ReadFile(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func decode(raw []byte) (*Blob, error) {
	if len(raw) < HeaderSize {
		return nil, ErrCorruptHeader
	}
	if !bytes.Equal(raw[0:4], Magic[:]) {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(raw[4:8])
	if version != CurrentVersion {
		return nil, ErrUnsupportedVersion
	}
	codeSize := binary.LittleEndian.Uint32(raw[8:12])
	entryOffset := binary.LittleEndian.Uint32(raw[12:16])

	payload := raw[HeaderSize:]
	if uint64(len(payload)) < uint64(codeSize) {
		return nil, ErrTruncatedPayload
	}

	return &Blob{
		Version:     version,
		EntryOffset: entryOffset,
		Code:        append([]byte(nil), payload[:codeSize]...),
	}, nil
}

// Checksum returns the CRC64-ISO checksum of b's serialized bytes.
// Not part of the on-disk format (spec §6 defines no checksum field
// for .rt); exposed so a caller that wants out-of-band integrity
// checking — e.g. when shipping a .rt blob alongside a manifest — has
// the same hash package's checksum container uses, rather than
// reaching for a different algorithm.
func Checksum(b *Blob) (uint64, error) {
	var buf bytes.Buffer
	if err := Write(&buf, b); err != nil {
		return 0, err
	}
	return crc64.Checksum(buf.Bytes(), crcTable), nil
}
