package container

// Builder incrementally constructs a NativeModule. The zero value is
// not usable; use NewBuilder.
//
// Lifecycle mirrors spec §4.1: create, set_code, set_data, add_export
// (any order, any number of times), then Build/Write. A Builder is
// not safe for concurrent use.
type Builder struct {
	arch    Arch
	modType ModuleType
	code    []byte
	entry   uint32
	data    []byte
	exports []Export
	names   map[string]bool
}

// NewBuilder starts building a module targeting arch for the given
// module type.
func NewBuilder(arch Arch, modType ModuleType) *Builder {
	return &Builder{arch: arch, modType: modType, names: map[string]bool{}}
}

// SetCode installs the code section and the offset within it (relative
// to the start of the code section) at which execution begins.
func (b *Builder) SetCode(code []byte, entryOffset uint32) {
	b.code = code
	b.entry = entryOffset
}

// SetData installs the read-write data section.
func (b *Builder) SetData(data []byte) {
	b.data = data
}

// AddExport appends a named export. offset is relative to the start of
// the code section (ExportFunction/ExportConstant) or the data section
// (ExportVariable).
func (b *Builder) AddExport(name string, kind ExportKind, offset, size uint32) error {
	if len(b.exports) >= MaxExports {
		return ErrTooManyExports
	}
	nameBytes := len(name) + 1
	if nameBytes > MaxExportNameLen {
		return ErrExportNameTooLong
	}
	if b.names[name] {
		return ErrDuplicateExport
	}
	b.names[name] = true
	b.exports = append(b.exports, Export{Name: name, Kind: kind, Offset: offset, Size: size})
	return nil
}

// Build validates the accumulated state and returns the finished
// module, laid out the way Write will serialize it: header, then code,
// then data, then export table, each section 16-byte aligned.
func (b *Builder) Build() (*NativeModule, error) {
	for name := range b.names {
		_ = name // names already deduplicated incrementally by AddExport
	}
	if err := validateExportsAgainstSections(b.exports, uint32(len(b.code)), uint32(len(b.data))); err != nil {
		return nil, err
	}

	codeOffset := uint32(align16(HeaderSize))
	dataOffset := uint32(align16(int(codeOffset) + len(b.code)))
	exportTableOffset := uint32(align16(int(dataOffset) + len(b.data)))

	h := Header{
		Magic:             Magic,
		Version:           CurrentVersion,
		Arch:              b.arch,
		ModType:           b.modType,
		CodeOffset:        codeOffset,
		CodeSize:          uint32(len(b.code)),
		DataOffset:        dataOffset,
		DataSize:          uint32(len(b.data)),
		ExportTableOffset: exportTableOffset,
		ExportCount:       uint32(len(b.exports)),
		EntryOffset:       b.entry,
	}

	m := &NativeModule{
		Header:  h,
		Code:    b.code,
		Data:    b.data,
		Exports: append([]Export(nil), b.exports...),
	}
	return m, nil
}

func validateExportsAgainstSections(exports []Export, codeSize, dataSize uint32) error {
	seen := make(map[string]bool, len(exports))
	if len(exports) > MaxExports {
		return ErrTooManyExports
	}
	for _, e := range exports {
		if seen[e.Name] {
			return ErrDuplicateExport
		}
		seen[e.Name] = true
		if len(e.Name)+1 > MaxExportNameLen {
			return ErrExportNameTooLong
		}
		var limit uint32
		var section string
		switch e.Kind {
		case ExportFunction, ExportConstant:
			limit, section = codeSize, "code"
		case ExportVariable:
			limit, section = dataSize, "data"
		default:
			limit, section = codeSize, "code"
		}
		if uint64(e.Offset)+uint64(e.Size) > uint64(limit) {
			return &BoundsError{Section: section, Offset: e.Offset, Size: e.Size, Limit: limit}
		}
	}
	return nil
}
