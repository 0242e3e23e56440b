// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtfile

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	want := &Blob{Version: CurrentVersion, EntryOffset: 4, Code: []byte{0xC3, 0x90, 0x90, 0x90, 0xB8, 0x01}}

	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.EntryOffset != want.EntryOffset || !bytes.Equal(got.Code, want.Code) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	raw := make([]byte, HeaderSize)
	copy(raw, "XXXX")
	if _, err := decode(raw); err != ErrInvalidMagic {
		t.Fatalf("decode: got %v, want ErrInvalidMagic", err)
	}
}

func TestReadRejectsTruncatedPayload(t *testing.T) {
	b := &Blob{Version: CurrentVersion, Code: []byte{1, 2, 3, 4}}
	var buf bytes.Buffer
	if err := Write(&buf, b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	truncated := buf.Bytes()[:HeaderSize+2]
	if _, err := decode(truncated); err != ErrTruncatedPayload {
		t.Fatalf("decode: got %v, want ErrTruncatedPayload", err)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	b := &Blob{Version: CurrentVersion, Code: []byte{1, 2, 3}}
	c1, err := Checksum(b)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	c2, err := Checksum(b)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if c1 != c2 {
		t.Fatal("Checksum is not deterministic for identical input")
	}
}
