// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command astcdump is a read-only inspection tool for .native
// containers and raw ASTC files: it prints header fields, the export
// table, and a decoded instruction stream, without mapping anything
// into executable memory. Grounded on saferwall/pe/cmd's cobra-based
// dump command for the subcommand/flag shape and on
// cmd/wasm-dump/main.go's per-file dump loop and disassembly-listing
// behavior.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	showHeader  bool
	showExports bool
	showDisasm  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "astcdump",
		Short: "Inspect .native containers and ASTC files",
		Long:  "astcdump prints the header, export table and decoded instruction stream of .native containers and ASTC files.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostics")

	dumpCmd := &cobra.Command{
		Use:   "dump [files...]",
		Short: "Dump one or more files",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDump,
	}
	dumpCmd.Flags().BoolVarP(&showHeader, "header", "h", true, "print the header")
	dumpCmd.Flags().BoolVarP(&showExports, "exports", "x", false, "print the export table (.native only)")
	dumpCmd.Flags().BoolVarP(&showDisasm, "disasm", "d", false, "print the decoded ASTC instruction stream")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("astcdump 0.1.0")
		},
	}

	rootCmd.AddCommand(dumpCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDump(cmd *cobra.Command, args []string) {
	for i, path := range args {
		if i > 0 {
			fmt.Println()
		}
		if err := dumpFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		}
	}
}
