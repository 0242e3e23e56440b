package container

import (
	"bytes"
	"io"
	"os"
)

// Write serializes m to w: header (zeroed checksum) + code + data +
// export table, each section padded to a 16-byte boundary, then
// patches the checksum field in place. Write never leaves a partially
// written file observable on the happy path: the whole image is built
// in memory first.
func Write(w io.Writer, m *NativeModule) error {
	buf, err := serialize(m)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// WriteFile is a convenience wrapper around Write that creates (or
// truncates) path.
func WriteFile(path string, m *NativeModule) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, m)
}

func serialize(m *NativeModule) ([]byte, error) {
	exportBuf, err := encodeExportTable(m.Exports)
	if err != nil {
		return nil, err
	}

	total := int(m.Header.ExportTableOffset) + len(exportBuf)
	buf := make([]byte, total)

	copy(buf[int(m.Header.CodeOffset):], m.Code)
	copy(buf[int(m.Header.DataOffset):], m.Data)
	copy(buf[int(m.Header.ExportTableOffset):], exportBuf)

	h := m.Header
	h.Checksum = 0
	copy(buf[0:HeaderSize], encodeHeader(h))

	checksum := computeChecksum(buf)
	byteOrder.PutUint64(buf[checksumFieldOffset:checksumFieldOffset+8], checksum)
	m.Header.Checksum = checksum

	return buf, nil
}

// Read parses a .native image from r, validating the header before any
// section is copied out, then the full-file checksum, then every
// section bound and every export offset. hostArch is compared against
// the module's declared architecture; pass ArchUnknown to skip that
// check (used by tooling that inspects foreign-architecture modules).
func Read(r io.Reader, hostArch Arch) (*NativeModule, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decode(raw, hostArch)
}

// ReadFile is a convenience wrapper around Read.
func ReadFile(path string, hostArch Arch) (*NativeModule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, hostArch)
}

func decode(raw []byte, hostArch Arch) (*NativeModule, error) {
	if len(raw) < HeaderSize {
		return nil, ErrCorruptHeader
	}
	h, err := decodeHeader(raw[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(h.Magic[:], Magic[:]) {
		return nil, ErrInvalidMagic
	}
	if h.Version != CurrentVersion {
		return nil, ErrUnsupportedVersion
	}

	// Checksum is verified before any further interpretation of the
	// file, and before any allocation proportional to attacker-supplied
	// sizes, so a corrupt file is rejected cheaply.
	want := h.Checksum
	got := computeChecksum(raw)
	if got != want {
		return nil, ErrChecksumFailed
	}

	if hostArch != ArchUnknown && h.Arch != hostArch {
		return nil, ErrArchitectureMismatch
	}

	fileSize := uint32(len(raw))
	if err := checkBounds("code", h.CodeOffset, h.CodeSize, fileSize); err != nil {
		return nil, err
	}
	if err := checkBounds("data", h.DataOffset, h.DataSize, fileSize); err != nil {
		return nil, err
	}
	if uint64(h.ExportTableOffset) > uint64(fileSize) {
		return nil, &BoundsError{Section: "export-table", Offset: h.ExportTableOffset, Limit: fileSize}
	}
	if h.ExportCount > MaxExports {
		return nil, ErrTooManyExports
	}

	exports, err := decodeExportTable(raw[h.ExportTableOffset:], h.ExportCount)
	if err != nil {
		return nil, err
	}
	if err := validateExportsAgainstSections(exports, h.CodeSize, h.DataSize); err != nil {
		return nil, err
	}

	code := make([]byte, h.CodeSize)
	copy(code, raw[h.CodeOffset:h.CodeOffset+h.CodeSize])
	data := make([]byte, h.DataSize)
	copy(data, raw[h.DataOffset:h.DataOffset+h.DataSize])

	return &NativeModule{Header: h, Code: code, Data: data, Exports: exports}, nil
}

func checkBounds(section string, offset, size, fileSize uint32) error {
	if uint64(offset)+uint64(size) > uint64(fileSize) {
		return &BoundsError{Section: section, Offset: offset, Size: size, Limit: fileSize}
	}
	return nil
}
