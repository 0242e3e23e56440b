// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import "github.com/astc-run/astcvm/depres"

// CatalogAdapter implements depres.Catalog over a Registry. The
// .native format carries no dependency-manifest section (spec §4.1
// lists no such field), so the manifest a module's dependencies are
// checked against is supplied by the caller — typically the launcher,
// which already knows what a VM module requires before asking the
// registry to load it — rather than invented out of the container
// format.
type CatalogAdapter struct {
	Registry *Registry
	Manifest map[string]depres.ModuleDependencyInfo
	// DefaultLoadPath, if set, maps a logical name to the path Load
	// passes to the registry when bringing an absent dependency into
	// existence (auto-resolution, spec §4.3). A nil func or an empty
	// result leaves the name to the registry's normal discovery path.
	DefaultLoadPath func(name string) string
}

// Lookup implements depres.Catalog.
func (c *CatalogAdapter) Lookup(name string) (depres.ModuleDependencyInfo, bool) {
	info, ok := c.Manifest[name]
	if !ok {
		return depres.ModuleDependencyInfo{}, false
	}
	return info, c.Registry.IsLoaded(name)
}

// Load implements depres.Catalog by loading name through the registry
// (auto-discovery if DefaultLoadPath is nil or returns "").
func (c *CatalogAdapter) Load(name string) (depres.ModuleDependencyInfo, error) {
	path := ""
	if c.DefaultLoadPath != nil {
		path = c.DefaultLoadPath(name)
	}
	if _, err := c.Registry.Load(name, path); err != nil {
		return depres.ModuleDependencyInfo{}, err
	}
	info, ok := c.Manifest[name]
	if !ok {
		return depres.ModuleDependencyInfo{}, &ModuleNotFoundError{Name: name}
	}
	return info, nil
}
