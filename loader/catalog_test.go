// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"testing"

	"github.com/astc-run/astcvm/container"
	"github.com/astc-run/astcvm/depres"
)

func TestCatalogAdapterResolvesDependencyOrder(t *testing.T) {
	dir := t.TempDir()
	writeTestModule(t, dir, "base")
	writeTestModule(t, dir, "app")

	r := NewRegistry([]string{dir}, container.ArchX86_64)
	adapter := &CatalogAdapter{
		Registry: r,
		Manifest: map[string]depres.ModuleDependencyInfo{
			"app": {
				Name:    "app",
				Version: depres.Version{Major: 1},
				Deps: []depres.DepSpec{
					{Target: "base", Kind: depres.Required, Constraint: depres.Constraint{Kind: depres.Min, Low: depres.Version{Major: 1}}},
				},
			},
			"base": {Name: "base", Version: depres.Version{Major: 1, Minor: 2}},
		},
	}

	resolver := &depres.Resolver{Catalog: adapter, AutoResolve: true}
	order, err := resolver.Resolve("app")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(order) != 2 || order[0] != "base" || order[1] != "app" {
		t.Fatalf("order = %v, want [base app]", order)
	}
	if !r.IsLoaded("base") {
		t.Fatal("expected base to be auto-loaded as a required dependency")
	}
}
