// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/astc-run/astcvm/launcher"
	"github.com/astc-run/astcvm/loader"
)

// modulePathList collects repeated -module-path flags into a slice,
// the way flag.Var is normally used for "give me several of these".
type modulePathList []string

func (m *modulePathList) String() string { return strings.Join(*m, ",") }
func (m *modulePathList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	log.SetPrefix("astcrun: ")
	log.SetFlags(0)

	var paths modulePathList
	verbose := flag.Bool("v", false, "enable verbose/debug logging")
	vmModule := flag.String("vm-module", "", "path to the vm_{arch}_{bits}.native module (default: auto-discover)")
	flag.Var(&paths, "module-path", "additional module search directory (repeatable)")

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(launcher.ExitUsageError)
	}

	launcher.SetVerbose(*verbose)
	loader.SetVerbose(*verbose)

	l := launcher.New(launcher.Options{
		VMModulePath: *vmModule,
		ModulePaths:  paths,
	})

	rc, err := l.Run(flag.Arg(0))
	if err != nil {
		log.Printf("%v", err)
	}
	os.Exit(rc)
}
