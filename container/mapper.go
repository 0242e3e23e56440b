package container

import (
	"errors"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// ErrExecutableMapFailed wraps the underlying OS error when a module's
// code section cannot be committed to executable memory.
var ErrExecutableMapFailed = errors.New("container: executable map failed")

// MappedModule is a NativeModule that has been committed into process
// memory: its code lives in an executable (never simultaneously
// writable) mapping, and its data in a read-write mapping. Exactly one
// owner may unmap it.
type MappedModule struct {
	mu       sync.Mutex
	source   *NativeModule
	codeMap  mmap.MMap
	dataMap  mmap.MMap
	unmapped bool
}

// MapIntoProcess copies m's code section into a freshly allocated
// page-aligned region and finalizes it read+execute (never read+write+
// execute at any point an observer could inspect it), and copies the
// data section into an ordinary read-write region.
//
// The sequence is: allocate RW, memcpy the bytes in, then flip the
// code mapping to RX. This is the "write-then-flip" discipline spec
// §4.1 requires on W^X hosts; the RW window exists only inside this
// call, never across the MappedModule's public API.
func MapIntoProcess(m *NativeModule) (*MappedModule, error) {
	mm := &MappedModule{source: m}

	if len(m.Code) > 0 {
		codeMap, err := mmap.MapRegion(nil, len(m.Code), mmap.RDWR, mmap.ANON, 0)
		if err != nil {
			return nil, errJoin(ErrExecutableMapFailed, err)
		}
		copy(codeMap, m.Code)
		if err := unix.Mprotect(codeMap, unix.PROT_READ|unix.PROT_EXEC); err != nil {
			codeMap.Unmap()
			return nil, errJoin(ErrExecutableMapFailed, err)
		}
		mm.codeMap = codeMap
	}

	if len(m.Data) > 0 {
		dataMap, err := mmap.MapRegion(nil, len(m.Data), mmap.RDWR, mmap.ANON, 0)
		if err != nil {
			if mm.codeMap != nil {
				mm.codeMap.Unmap()
			}
			return nil, errJoin(ErrExecutableMapFailed, err)
		}
		copy(dataMap, m.Data)
		mm.dataMap = dataMap
	}

	return mm, nil
}

func errJoin(sentinel, cause error) error {
	return &mappedError{sentinel: sentinel, cause: cause}
}

type mappedError struct {
	sentinel error
	cause    error
}

func (e *mappedError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *mappedError) Unwrap() error { return e.sentinel }

// CodeBase returns the base address of the executable code mapping as
// a raw pointer value, or 0 if the module has no code section.
func (mm *MappedModule) CodeBase() uintptr {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.unmapped || len(mm.codeMap) == 0 {
		return 0
	}
	return uintptr(unsafePointer(mm.codeMap))
}

// DataBase returns the base address of the read-write data mapping, or
// 0 if the module has no data section.
func (mm *MappedModule) DataBase() uintptr {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.unmapped || len(mm.dataMap) == 0 {
		return 0
	}
	return uintptr(unsafePointer(mm.dataMap))
}

// FindExport resolves name against the originating module's export
// table and returns an address inside the appropriate mapping.
func (mm *MappedModule) FindExport(name string) (uintptr, error) {
	e, ok := mm.source.FindExport(name)
	if !ok {
		return 0, ErrExportNotFound
	}
	var base uintptr
	switch e.Kind {
	case ExportVariable:
		base = mm.DataBase()
	default:
		base = mm.CodeBase()
	}
	if base == 0 {
		return 0, ErrExportNotFound
	}
	return base + uintptr(e.Offset), nil
}

// Unmap releases both mappings. Unmap is idempotent; calling it twice
// is a no-op on the second call.
func (mm *MappedModule) Unmap() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.unmapped {
		return nil
	}
	mm.unmapped = true
	var firstErr error
	if mm.codeMap != nil {
		if err := mm.codeMap.Unmap(); err != nil {
			firstErr = err
		}
	}
	if mm.dataMap != nil {
		if err := mm.dataMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
