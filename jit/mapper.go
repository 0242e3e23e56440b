// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// MappedCode is freshly JIT-assembled machine code committed to an
// executable mapping. It is the same write-then-flip discipline
// container.MapIntoProcess applies to a NativeModule's code section
// (spec §4.1, §8 property 9), applied here directly to a JIT driver's
// output rather than to a file-backed container.
type MappedCode struct {
	region mmap.MMap
}

// mapExecutable copies code into a freshly allocated page, then flips
// it to read+execute. The region is never observably read+write+
// execute: the RW window exists only inside this call.
func mapExecutable(code []byte) (*MappedCode, error) {
	if len(code) == 0 {
		return nil, ErrExecutableMapFailed
	}
	region, err := mmap.MapRegion(nil, len(code), mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, &mappedError{ErrExecutableMapFailed, err}
	}
	copy(region, code)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		region.Unmap()
		return nil, &mappedError{ErrExecutableMapFailed, err}
	}
	return &MappedCode{region: region}, nil
}

// Base returns the mapping's base address.
func (m *MappedCode) Base() uintptr {
	return uintptr(unsafe.Pointer(&m.region[0]))
}

// Unmap releases the mapping. Calling it more than once is a no-op
// after the first call.
func (m *MappedCode) Unmap() error {
	if m.region == nil {
		return nil
	}
	err := m.region.Unmap()
	m.region = nil
	return err
}

type mappedError struct {
	sentinel error
	cause    error
}

func (e *mappedError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *mappedError) Unwrap() error { return e.sentinel }
