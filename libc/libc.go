// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package libc implements C10: a stable name->function table forwarding
// the host-C stdlib surface of spec §4.9 onto Go standard library
// equivalents. JIT-compiled code reaches it by calling
// jit.libcTrampoline, which dispatches the funcID against the Table
// package jit has made active; no register carries a table pointer.
package libc

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unsafe"
)

var logger = log.New(io.Discard, "libc: ", log.Lshortfile)

// SetVerbose toggles diagnostic logging, following the same
// discard-by-default pattern as packages loader, launcher and jit.
func SetVerbose(v bool) {
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}
}

// Category groups forwarded functions for the statistics C10 exposes
// behind get_stats.
type Category int

// Recognized categories.
const (
	CategoryMemory Category = iota
	CategoryString
	CategoryMemOps
	CategoryIO
	CategoryMath
	CategoryCharClass
	CategoryConvert
	CategoryTime
	CategoryEnv
	CategoryFS
)

func (c Category) String() string {
	switch c {
	case CategoryMemory:
		return "memory"
	case CategoryString:
		return "string"
	case CategoryMemOps:
		return "memops"
	case CategoryIO:
		return "io"
	case CategoryMath:
		return "math"
	case CategoryCharClass:
		return "charclass"
	case CategoryConvert:
		return "convert"
	case CategoryTime:
		return "time"
	case CategoryEnv:
		return "env"
	case CategoryFS:
		return "fs"
	default:
		return "unknown"
	}
}

// Stats are the optional per-category counters C10 exposes behind a
// single get_stats export. Per spec §5's shared-resource policy, these
// are touched only from the single execution thread; a multi-threaded
// embedding would need to make them atomic.
type Stats struct {
	CallCounts    [10]uint64
	BytesAlloc    uint64
	BytesFreed    uint64
	PeakAllocated uint64
}

// Trampoline is the fixed Go-level ABI a forwarded function is called
// through: four int64 arguments (unused ones are zero), returning one
// int64 result. It mirrors the register-argument shape emit_libc_call
// materializes in codegen's backends; the assembled call goes to
// jit.libcTrampoline, which reaches the Trampoline through Table.Call.
type Trampoline func(args [4]int64) int64

type entry struct {
	name     string
	category Category
	fn       Trampoline
}

// Table is a loaded libc forwarding module: an ordered, funcID-indexed
// function table plus the statistics counters those functions update.
type Table struct {
	byID   []entry
	byName map[string]uint16

	stats      Stats
	allocSizes map[uintptr]int

	// pinned keeps every buffer this table has ever handed a raw
	// pointer to reachable for the Go GC, for as long as the table
	// itself is alive. Compiled code holds these addresses as plain
	// integers with no way to tell the Go runtime about that
	// reference, so without this the backing array of e.g. a malloc
	// result could be collected out from under it. free() and realloc()
	// remove the entry for whatever pointer they are passed; strdup/getenv
	// results are conventionally never freed by callers either, in real
	// libc, so they stay pinned for the table's lifetime.
	pinned map[uintptr][]byte

	// tmBuf backs localtime/gmtime's returned struct tm the same way
	// the real functions return a pointer into one process-wide static
	// buffer, overwritten by the next call.
	tmBuf [9]int32
}

// NewTable builds the standard forwarding table. funcID values (as
// referenced by ASTC's LIBC_CALL operand) are stable for the lifetime
// of the process, assigned in registration order below.
func NewTable() *Table {
	t := &Table{
		byName:     make(map[string]uint16),
		allocSizes: make(map[uintptr]int),
		pinned:     make(map[uintptr][]byte),
	}
	t.registerMemory()
	t.registerString()
	t.registerMemOps()
	t.registerIO()
	t.registerMath()
	t.registerCharClass()
	t.registerConvert()
	t.registerTime()
	t.registerEnv()
	t.registerStats()
	return t
}

func (t *Table) register(name string, cat Category, fn Trampoline) {
	id := uint16(len(t.byID))
	t.byID = append(t.byID, entry{name: name, category: cat, fn: fn})
	t.byName[name] = id
}

// FuncID returns the stable numeric id ASTC's LIBC_CALL operand
// should carry for name, and whether it is known.
func (t *Table) FuncID(name string) (uint16, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Call invokes the function registered under funcID, incrementing its
// category's call counter. Returns ExportNotFound-shaped zero value
// and logs if funcID is out of range (the driver is expected to have
// already validated funcID against Len during compilation).
func (t *Table) Call(funcID uint16, args [4]int64) int64 {
	if int(funcID) >= len(t.byID) {
		logger.Printf("call to unknown libc funcID=%d", funcID)
		return 0
	}
	e := t.byID[funcID]
	t.stats.CallCounts[e.category]++
	return e.fn(args)
}

// Len reports how many functions are registered, for bounds checks
// against ASTC's u16 func-id operand.
func (t *Table) Len() int { return len(t.byID) }

// Stats returns a snapshot of the call/allocation counters.
func (t *Table) Stats() Stats { return t.stats }

// --- memory ---

// retain pins buf against collection for the table's lifetime and
// returns the raw address compiled code will treat as a pointer.
func (t *Table) retain(buf []byte) uintptr {
	if len(buf) == 0 {
		buf = make([]byte, 1)
	}
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	t.pinned[ptr] = buf
	return ptr
}

func (t *Table) registerMemory() {
	t.register("malloc", CategoryMemory, func(a [4]int64) int64 {
		n := int(a[0])
		if n <= 0 {
			return 0
		}
		ptr := t.retain(make([]byte, n))
		t.allocSizes[ptr] = n
		t.stats.BytesAlloc += uint64(n)
		if t.stats.BytesAlloc-t.stats.BytesFreed > t.stats.PeakAllocated {
			t.stats.PeakAllocated = t.stats.BytesAlloc - t.stats.BytesFreed
		}
		return int64(ptr)
	})
	t.register("calloc", CategoryMemory, func(a [4]int64) int64 {
		n, size := int(a[0]), int(a[1])
		total := n * size
		if total <= 0 {
			return 0
		}
		ptr := t.retain(make([]byte, total))
		t.allocSizes[ptr] = total
		t.stats.BytesAlloc += uint64(total)
		return int64(ptr)
	})
	t.register("realloc", CategoryMemory, func(a [4]int64) int64 {
		ptr, n := uintptr(a[0]), int(a[1])
		if ptr != 0 {
			delete(t.allocSizes, ptr)
			delete(t.pinned, ptr)
		}
		if n <= 0 {
			return 0
		}
		newPtr := t.retain(make([]byte, n))
		t.allocSizes[newPtr] = n
		return int64(newPtr)
	})
	t.register("free", CategoryMemory, func(a [4]int64) int64 {
		ptr := uintptr(a[0])
		if ptr == 0 {
			return 0
		}
		if n, ok := t.allocSizes[ptr]; ok {
			t.stats.BytesFreed += uint64(n)
			delete(t.allocSizes, ptr)
		}
		delete(t.pinned, ptr)
		return 0
	})
}

// --- strings (operating on NUL-terminated byte blobs addressed by
// pointer, reconstructed via unsafe since the forwarded ABI is
// pointer-based like the real libc) ---

func cString(ptr int64) []byte {
	if ptr == 0 {
		return nil
	}
	p := (*byte)(unsafe.Pointer(uintptr(ptr)))
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return unsafe.Slice(p, n)
}

// writeAt copies data to the raw address ptr, a no-op on a null
// pointer (mirroring the null-input tolerance the rest of this table
// already applies).
func writeAt(ptr int64, data []byte) {
	if ptr == 0 || len(data) == 0 {
		return
	}
	d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(d, data)
}

func readInt64At(ptr int64) int64 {
	if ptr == 0 {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(ptr)))
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func (t *Table) registerString() {
	t.register("strlen", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1 // canonical "invalid" sentinel for a null input
		}
		return int64(len(cString(a[0])))
	})
	t.register("strcpy", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return a[0]
		}
		src := cString(a[1])
		writeAt(a[0], append(append([]byte{}, src...), 0))
		return a[0]
	})
	t.register("strncpy", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return a[0]
		}
		n := int(a[2])
		if n <= 0 {
			return a[0]
		}
		var src []byte
		if a[1] != 0 {
			src = cString(a[1])
		}
		buf := make([]byte, n) // zero-filled: matches strncpy's NUL-padding of any remainder
		copy(buf, src)
		writeAt(a[0], buf)
		return a[0]
	})
	t.register("strcat", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return a[0]
		}
		dst := cString(a[0])
		src := cString(a[1])
		writeAt(a[0]+int64(len(dst)), append(append([]byte{}, src...), 0))
		return a[0]
	})
	t.register("strncat", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return a[0]
		}
		dst := cString(a[0])
		n := int(a[2])
		var src []byte
		if a[1] != 0 {
			src = cString(a[1])
		}
		if n >= 0 && n < len(src) {
			src = src[:n]
		}
		writeAt(a[0]+int64(len(dst)), append(append([]byte{}, src...), 0))
		return a[0]
	})
	t.register("strcmp", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return -1
		}
		return int64(strings.Compare(string(cString(a[0])), string(cString(a[1]))))
	})
	t.register("strncmp", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return -1
		}
		n := int(a[2])
		x, y := cString(a[0]), cString(a[1])
		if len(x) > n {
			x = x[:n]
		}
		if len(y) > n {
			y = y[:n]
		}
		return int64(strings.Compare(string(x), string(y)))
	})
	t.register("strchr", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		idx := strings.IndexByte(string(cString(a[0])), byte(a[1]))
		if idx < 0 {
			return 0
		}
		return a[0] + int64(idx)
	})
	t.register("strrchr", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		idx := strings.LastIndexByte(string(cString(a[0])), byte(a[1]))
		if idx < 0 {
			return 0
		}
		return a[0] + int64(idx)
	})
	t.register("strstr", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return 0
		}
		idx := strings.Index(string(cString(a[0])), string(cString(a[1])))
		if idx < 0 {
			return 0
		}
		return a[0] + int64(idx)
	})
	t.register("strdup", CategoryString, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		src := cString(a[0])
		buf := make([]byte, len(src)+1)
		copy(buf, src)
		return int64(t.retain(buf))
	})
}

// --- memcpy family ---

func (t *Table) registerMemOps() {
	t.register("memcpy", CategoryMemOps, func(a [4]int64) int64 {
		dst, src, n := a[0], a[1], int(a[2])
		if dst == 0 || src == 0 || n <= 0 {
			return dst
		}
		d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), n)
		s := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(src))), n)
		copy(d, s)
		return dst
	})
	t.register("memmove", CategoryMemOps, func(a [4]int64) int64 {
		dst, src, n := a[0], a[1], int(a[2])
		if dst == 0 || src == 0 || n <= 0 {
			return dst
		}
		d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), n)
		s := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(src))), n)
		tmp := make([]byte, n)
		copy(tmp, s)
		copy(d, tmp)
		return dst
	})
	t.register("memset", CategoryMemOps, func(a [4]int64) int64 {
		dst, v, n := a[0], byte(a[1]), int(a[2])
		if dst == 0 || n <= 0 {
			return dst
		}
		d := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), n)
		for i := range d {
			d[i] = v
		}
		return dst
	})
	t.register("memcmp", CategoryMemOps, func(a [4]int64) int64 {
		x, y, n := a[0], a[1], int(a[2])
		if x == 0 || y == 0 {
			return -1
		}
		xs := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(x))), n)
		ys := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(y))), n)
		for i := 0; i < n; i++ {
			if xs[i] != ys[i] {
				return int64(xs[i]) - int64(ys[i])
			}
		}
		return 0
	})
}

// --- formatted I/O ---
//
// The fixed four-int64-argument trampoline shape has no room for a C
// varargs list, so the *printf family here forwards the format string
// verbatim rather than expanding %-directives against trailing
// arguments — the same simplification puts/printf already made before
// this file grew sprintf/snprintf/fprintf/fscanf.

func (t *Table) registerIO() {
	t.register("puts", CategoryIO, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1
		}
		s := string(cString(a[0]))
		n, _ := os.Stdout.WriteString(s + "\n")
		return int64(n)
	})
	t.register("printf", CategoryIO, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1
		}
		s := string(cString(a[0]))
		n, _ := os.Stdout.WriteString(s)
		return int64(n)
	})
	t.register("putchar", CategoryIO, func(a [4]int64) int64 {
		os.Stdout.Write([]byte{byte(a[0])})
		return a[0]
	})
	t.register("sprintf", CategoryIO, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return -1
		}
		s := cString(a[1])
		writeAt(a[0], append(append([]byte{}, s...), 0))
		return int64(len(s))
	})
	t.register("snprintf", CategoryIO, func(a [4]int64) int64 {
		if a[0] == 0 || a[2] == 0 {
			return -1
		}
		size := int(a[1])
		s := cString(a[2])
		n := len(s)
		if size > 0 && n > size-1 {
			n = size - 1
		}
		if size > 0 {
			writeAt(a[0], append(append([]byte{}, s[:n]...), 0))
		}
		return int64(len(s)) // full would-be length, matching C's snprintf contract
	})
	t.register("fprintf", CategoryIO, func(a [4]int64) int64 {
		if a[1] == 0 {
			return -1
		}
		w := os.Stdout
		if a[0] == 2 { // stderr, by the conventional low-fd numbering
			w = os.Stderr
		}
		n, _ := w.WriteString(string(cString(a[1])))
		return int64(n)
	})
	t.register("fscanf", CategoryIO, func(a [4]int64) int64 {
		// Only the "%d"-shaped single-integer-output case is
		// supported: the format string isn't parsed, matching this
		// table's general non-expansion of format directives.
		if a[2] == 0 {
			return -1
		}
		var v int64
		n, err := fmt.Fscan(os.Stdin, &v)
		if err != nil || n == 0 {
			return -1
		}
		writeAt(a[2], int64ToBytes(v))
		return int64(n)
	})
}

// --- math ---

func (t *Table) registerMath() {
	unary := func(name string, fn func(float64) float64) {
		t.register(name, CategoryMath, func(a [4]int64) int64 {
			return int64(math.Float64bits(fn(math.Float64frombits(uint64(a[0])))))
		})
	}
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("atan", math.Atan)
	unary("exp", math.Exp)
	unary("log", math.Log)
	unary("log10", math.Log10)
	unary("sqrt", math.Sqrt)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("round", math.Round)
	unary("trunc", math.Trunc)
	unary("fabs", math.Abs)
	unary("sinh", math.Sinh)
	unary("cosh", math.Cosh)
	unary("tanh", math.Tanh)

	t.register("atan2", CategoryMath, func(a [4]int64) int64 {
		y := math.Float64frombits(uint64(a[0]))
		x := math.Float64frombits(uint64(a[1]))
		return int64(math.Float64bits(math.Atan2(y, x)))
	})
	t.register("pow", CategoryMath, func(a [4]int64) int64 {
		x := math.Float64frombits(uint64(a[0]))
		y := math.Float64frombits(uint64(a[1]))
		return int64(math.Float64bits(math.Pow(x, y)))
	})
	t.register("fmod", CategoryMath, func(a [4]int64) int64 {
		x := math.Float64frombits(uint64(a[0]))
		y := math.Float64frombits(uint64(a[1]))
		return int64(math.Float64bits(math.Mod(x, y)))
	})
}

// --- character classification ---

func (t *Table) registerCharClass() {
	classify := func(name string, fn func(byte) bool) {
		t.register(name, CategoryCharClass, func(a [4]int64) int64 {
			if fn(byte(a[0])) {
				return 1
			}
			return 0
		})
	}
	classify("isalpha", func(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') })
	classify("isdigit", func(c byte) bool { return c >= '0' && c <= '9' })
	classify("isalnum", func(c byte) bool {
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	})
	classify("isspace", func(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f' })
	classify("isupper", func(c byte) bool { return c >= 'A' && c <= 'Z' })

	t.register("toupper", CategoryCharClass, func(a [4]int64) int64 {
		c := byte(a[0])
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		return int64(c)
	})
	t.register("tolower", CategoryCharClass, func(a [4]int64) int64 {
		c := byte(a[0])
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		return int64(c)
	})
}

// --- conversion ---

func (t *Table) registerConvert() {
	t.register("atoi", CategoryConvert, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		v, err := strconv.Atoi(strings.TrimSpace(string(cString(a[0]))))
		if err != nil {
			return 0
		}
		return int64(v)
	})
	t.register("atol", CategoryConvert, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		v, err := strconv.ParseInt(strings.TrimSpace(string(cString(a[0]))), 10, 64)
		if err != nil {
			return 0
		}
		return v
	})
	t.register("atof", CategoryConvert, func(a [4]int64) int64 {
		if a[0] == 0 {
			return int64(math.Float64bits(0))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(cString(a[0]))), 64)
		if err != nil {
			v = 0
		}
		return int64(math.Float64bits(v))
	})
	// strtol/strtod parse the whole trimmed input string rather than a
	// leading numeric prefix followed by an endptr cutoff, at the same
	// fidelity atoi/atol/atof above already settle for; endptr, if
	// given, is set past the full consumed string.
	t.register("strtol", CategoryConvert, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		raw := cString(a[0])
		v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), int(a[2]), 64)
		if err != nil {
			return 0
		}
		if a[1] != 0 {
			writeAt(a[1], int64ToBytes(a[0]+int64(len(raw))))
		}
		return v
	})
	t.register("strtod", CategoryConvert, func(a [4]int64) int64 {
		if a[0] == 0 {
			return int64(math.Float64bits(0))
		}
		raw := cString(a[0])
		v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			v = 0
		}
		if a[1] != 0 {
			writeAt(a[1], int64ToBytes(a[0]+int64(len(raw))))
		}
		return int64(math.Float64bits(v))
	})
}

// --- time ---

// encodeTM lays tt out as the 9 int32 fields of a C struct tm, in the
// conventional sec/min/hour/mday/mon/year/wday/yday/isdst order. This
// is this table's own fixed layout, not guaranteed bit-compatible with
// any particular host libc's struct tm, since callers only ever go
// through localtime/gmtime/mktime/strftime to read or write it.
func encodeTM(tt time.Time) [9]int32 {
	return [9]int32{
		int32(tt.Second()),
		int32(tt.Minute()),
		int32(tt.Hour()),
		int32(tt.Day()),
		int32(tt.Month() - 1),
		int32(tt.Year() - 1900),
		int32(tt.Weekday()),
		int32(tt.YearDay() - 1),
		0,
	}
}

func decodeTM(ptr int64) *[9]int32 {
	return (*[9]int32)(unsafe.Pointer(uintptr(ptr)))
}

func formatTM(format string, fields *[9]int32) string {
	tt := time.Date(int(fields[5])+1900, time.Month(fields[4]+1), int(fields[3]),
		int(fields[2]), int(fields[1]), int(fields[0]), 0, time.UTC)
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", tt.Year())
		case 'm':
			fmt.Fprintf(&b, "%02d", int(tt.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", tt.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", tt.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", tt.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", tt.Second())
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func (t *Table) registerTime() {
	t.register("time", CategoryTime, func(a [4]int64) int64 {
		return time.Now().Unix()
	})
	t.register("clock", CategoryTime, func(a [4]int64) int64 {
		return time.Now().UnixNano() / 1000
	})
	t.register("localtime", CategoryTime, func(a [4]int64) int64 {
		t.tmBuf = encodeTM(time.Unix(readInt64At(a[0]), 0).Local())
		return int64(uintptr(unsafe.Pointer(&t.tmBuf[0])))
	})
	t.register("gmtime", CategoryTime, func(a [4]int64) int64 {
		t.tmBuf = encodeTM(time.Unix(readInt64At(a[0]), 0).UTC())
		return int64(uintptr(unsafe.Pointer(&t.tmBuf[0])))
	})
	t.register("mktime", CategoryTime, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1
		}
		f := decodeTM(a[0])
		tt := time.Date(int(f[5])+1900, time.Month(f[4]+1), int(f[3]),
			int(f[2]), int(f[1]), int(f[0]), 0, time.Local)
		return tt.Unix()
	})
	t.register("strftime", CategoryTime, func(a [4]int64) int64 {
		if a[0] == 0 || a[2] == 0 || a[3] == 0 {
			return 0
		}
		maxsize := int(a[1])
		out := formatTM(string(cString(a[2])), decodeTM(a[3]))
		if maxsize > 0 && len(out)+1 > maxsize {
			return 0
		}
		writeAt(a[0], append([]byte(out), 0))
		return int64(len(out))
	})
}

// --- env ---

func (t *Table) registerEnv() {
	t.register("getenv", CategoryEnv, func(a [4]int64) int64 {
		if a[0] == 0 {
			return 0
		}
		v, ok := os.LookupEnv(string(cString(a[0])))
		if !ok {
			return 0
		}
		return int64(t.retain([]byte(v + "\x00")))
	})
	t.register("setenv", CategoryEnv, func(a [4]int64) int64 {
		if a[0] == 0 || a[1] == 0 {
			return -1
		}
		if err := os.Setenv(string(cString(a[0])), string(cString(a[1]))); err != nil {
			return -1
		}
		return 0
	})
	t.register("unsetenv", CategoryEnv, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1
		}
		if err := os.Unsetenv(string(cString(a[0]))); err != nil {
			return -1
		}
		return 0
	})
}

// statsSize is the number of bytes get_stats writes: Stats is all
// uint64 fields, so its Go layout is already the wire layout.
const statsSize = int(unsafe.Sizeof(Stats{}))

// registerStats exposes Table.Stats() itself as a callable table
// export, per spec §4.9's "behind a single get_stats export": the
// caller passes a buffer pointer in a[0] and get_stats writes the
// current Stats snapshot into it.
func (t *Table) registerStats() {
	t.register("get_stats", CategoryMemory, func(a [4]int64) int64 {
		if a[0] == 0 {
			return -1
		}
		s := t.stats
		out := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(a[0]))), statsSize)
		*(*Stats)(unsafe.Pointer(&out[0])) = s
		return int64(statsSize)
	})
}
