// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/astc-run/astcvm/astc"
	"github.com/astc-run/astcvm/container"
)

// dumpFile tries path as a .native container first; when the file does
// not start with the container magic (including files too short for a
// container header) it falls back to treating the file as a raw ASTC
// bytecode stream, since both formats begin with a 4-byte magic and
// nothing else distinguishes them without reading it.
func dumpFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m, cerr := container.Read(bytes.NewReader(raw), container.ArchUnknown)
	if cerr == nil {
		dumpContainer(path, m)
		return nil
	}
	if !errors.Is(cerr, container.ErrInvalidMagic) && bytes.HasPrefix(raw, container.Magic[:]) {
		return fmt.Errorf("not a valid .native container: %w", cerr)
	}

	prog, aerr := astc.Read(raw, astc.Options{Permissive: true})
	if aerr != nil {
		return fmt.Errorf("neither a .native container nor valid ASTC: %w", aerr)
	}
	dumpASTC(path, prog)
	return nil
}

func dumpContainer(path string, m *container.NativeModule) {
	fmt.Printf("%s: .native container\n", path)
	if showHeader {
		h := m.Header
		fmt.Printf("  version:      %d\n", h.Version)
		fmt.Printf("  arch:         %s\n", h.Arch)
		fmt.Printf("  module type:  %d\n", h.ModType)
		fmt.Printf("  code:         %d bytes @ offset %d\n", h.CodeSize, h.CodeOffset)
		fmt.Printf("  data:         %d bytes @ offset %d\n", h.DataSize, h.DataOffset)
		fmt.Printf("  entry offset: %d\n", h.EntryOffset)
		fmt.Printf("  checksum:     %#016x\n", h.Checksum)
	}
	if showExports {
		fmt.Printf("  exports (%d):\n", len(m.Exports))
		for _, e := range m.Exports {
			fmt.Printf("    %-32s kind=%d offset=%d size=%d\n", e.Name, e.Kind, e.Offset, e.Size)
		}
	}
}

func dumpASTC(path string, prog *astc.Program) {
	fmt.Printf("%s: ASTC program\n", path)
	if showHeader {
		h := prog.Header
		fmt.Printf("  version:      %d\n", h.Version)
		fmt.Printf("  payload size: %d\n", h.PayloadSize)
		fmt.Printf("  entry offset: %d\n", h.EntryOffset)
	}
	if showDisasm {
		if prog.AST != nil {
			dumpNode(prog.AST, 0)
			return
		}
		for _, in := range prog.Instructions {
			switch {
			case in.Op == astc.OpConstI32 || in.Op == astc.OpStoreLocal || in.Op == astc.OpLoadLocal ||
				in.Op == astc.OpJump || in.Op == astc.OpJumpIfFalse || in.Op == astc.OpCallUser:
				fmt.Printf("  %06d  %-14s %d\n", in.PC, in.Op, in.Imm32)
			case in.Op == astc.OpConstString:
				fmt.Printf("  %06d  %-14s %q\n", in.PC, in.Op, string(in.Str))
			case in.Op == astc.OpLibcCall:
				fmt.Printf("  %06d  %-14s func_id=%d argc=%d\n", in.PC, in.Op, in.FuncID, in.Argc)
			default:
				fmt.Printf("  %06d  %s\n", in.PC, in.Op)
			}
		}
	}
}

func dumpNode(n *astc.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%s%s @%d:%d %v\n", indent, n.Type, n.Line, n.Column, n.Value)
	for _, c := range n.Children {
		dumpNode(c, depth+1)
	}
}
