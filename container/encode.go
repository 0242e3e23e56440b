package container

import (
	"bytes"
	"fmt"
)

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	byteOrder.PutUint32(buf[4:8], h.Version)
	buf[8] = byte(h.Arch)
	buf[9] = byte(h.ModType)
	byteOrder.PutUint16(buf[10:12], h.Flags)
	byteOrder.PutUint32(buf[12:16], h.CodeOffset)
	byteOrder.PutUint32(buf[16:20], h.CodeSize)
	byteOrder.PutUint32(buf[20:24], h.DataOffset)
	byteOrder.PutUint32(buf[24:28], h.DataSize)
	byteOrder.PutUint32(buf[28:32], h.ExportTableOffset)
	byteOrder.PutUint32(buf[32:36], h.ExportCount)
	byteOrder.PutUint32(buf[36:40], h.EntryOffset)
	byteOrder.PutUint64(buf[40:48], h.Checksum)
	// remaining 16 bytes stay zero (reserved)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrCorruptHeader
	}
	var h Header
	copy(h.Magic[:], buf[0:4])
	h.Version = byteOrder.Uint32(buf[4:8])
	h.Arch = Arch(buf[8])
	h.ModType = ModuleType(buf[9])
	h.Flags = byteOrder.Uint16(buf[10:12])
	h.CodeOffset = byteOrder.Uint32(buf[12:16])
	h.CodeSize = byteOrder.Uint32(buf[16:20])
	h.DataOffset = byteOrder.Uint32(buf[20:24])
	h.DataSize = byteOrder.Uint32(buf[24:28])
	h.ExportTableOffset = byteOrder.Uint32(buf[28:32])
	h.ExportCount = byteOrder.Uint32(buf[32:36])
	h.EntryOffset = byteOrder.Uint32(buf[36:40])
	h.Checksum = byteOrder.Uint64(buf[40:48])
	return h, nil
}

func align16(n int) int {
	return (n + SectionAlignment - 1) &^ (SectionAlignment - 1)
}

// encodeExportTable serializes exports in order, each as:
//
//	u16 nameLen, name bytes (NUL-terminated), u8 kind, u32 flags, u32 offset, u32 size
func encodeExportTable(exports []Export) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, e := range exports {
		nameBytes := append([]byte(e.Name), 0)
		if len(nameBytes) > MaxExportNameLen {
			return nil, ErrExportNameTooLong
		}
		var lenField [2]byte
		byteOrder.PutUint16(lenField[:], uint16(len(nameBytes)))
		buf.Write(lenField[:])
		buf.Write(nameBytes)
		buf.WriteByte(byte(e.Kind))
		var rest [12]byte
		byteOrder.PutUint32(rest[0:4], uint32(e.Flags))
		byteOrder.PutUint32(rest[4:8], e.Offset)
		byteOrder.PutUint32(rest[8:12], e.Size)
		buf.Write(rest[:])
	}
	return buf.Bytes(), nil
}

func decodeExportTable(buf []byte, count uint32) ([]Export, error) {
	exports := make([]Export, 0, count)
	pos := 0
	for i := uint32(0); i < count; i++ {
		if pos+2 > len(buf) {
			return nil, ErrCorruptHeader
		}
		nameLen := int(byteOrder.Uint16(buf[pos : pos+2]))
		pos += 2
		if nameLen == 0 || nameLen > MaxExportNameLen || pos+nameLen > len(buf) {
			return nil, ErrExportNameTooLong
		}
		nameBytes := buf[pos : pos+nameLen]
		pos += nameLen
		if nameBytes[len(nameBytes)-1] != 0 {
			return nil, fmt.Errorf("container: export name %d not NUL-terminated: %w", i, ErrCorruptHeader)
		}
		name := string(nameBytes[:len(nameBytes)-1])
		if pos+13 > len(buf) {
			return nil, ErrCorruptHeader
		}
		kind := ExportKind(buf[pos])
		pos++
		flags := ExportFlag(byteOrder.Uint32(buf[pos : pos+4]))
		offset := byteOrder.Uint32(buf[pos+4 : pos+8])
		size := byteOrder.Uint32(buf[pos+8 : pos+12])
		pos += 12
		exports = append(exports, Export{Name: name, Kind: kind, Flags: flags, Offset: offset, Size: size})
	}
	return exports, nil
}
