// Copyright 2024 The astcvm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package depres implements C3: semver parsing and comparison, and
// the dependency-graph / version-constraint resolver that wires
// modules together.
//
// Version ordering is delegated to golang.org/x/mod/semver, which
// already implements semver precedence (numeric comparison of
// major/minor/patch, dot-separated prerelease comparison with numeric
// identifiers compared numerically, build metadata ignored). That
// package's surface requires a leading "v" and does not expose parsed
// components, so this file wraps it: Parse builds a Version with its
// fields broken out for spec §3/§4.3 (required/optional/conflicting
// dependency records, prerelease gating), and Compare re-assembles the
// canonical "vMAJOR.MINOR.PATCH[-PRE][+BUILD]" string to hand to
// semver.Compare rather than re-implementing precedence by hand.
package depres

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a parsed MAJOR.MINOR.PATCH version with optional
// prerelease and build-metadata fields, per spec §4.3.
type Version struct {
	Major, Minor, Patch int
	Prerelease          string // without leading '-'; "" if absent
	Build               string // without leading '+'; "" if absent
}

// ErrInvalidVersion is returned by Parse for any string not matching
// strict semver grammar (no leading zeroes, digits only in the
// numeric fields).
var ErrInvalidVersion = fmt.Errorf("depres: invalid version")

// Parse parses a MAJOR[.MINOR[.PATCH]][-prerelease][+build] string.
// Missing MINOR/PATCH default to zero, per spec §4.3.
func Parse(s string) (Version, error) {
	core := s
	build := ""
	if i := strings.IndexByte(core, '+'); i >= 0 {
		build = core[i+1:]
		core = core[:i]
	}
	pre := ""
	if i := strings.IndexByte(core, '-'); i >= 0 {
		pre = core[i+1:]
		core = core[:i]
	}

	parts := strings.Split(core, ".")
	if len(parts) > 3 || len(parts) == 0 {
		return Version{}, ErrInvalidVersion
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := parseNumericComponent(p)
		if err != nil {
			return Version{}, err
		}
		nums[i] = n
	}
	if pre != "" && !validPrerelease(pre) {
		return Version{}, ErrInvalidVersion
	}
	if build != "" && !validPrerelease(build) {
		return Version{}, ErrInvalidVersion
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: pre, Build: build}, nil
}

func parseNumericComponent(p string) (int, error) {
	if p == "" {
		return 0, ErrInvalidVersion
	}
	if len(p) > 1 && p[0] == '0' {
		return 0, ErrInvalidVersion
	}
	for _, c := range p {
		if c < '0' || c > '9' {
			return 0, ErrInvalidVersion
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, ErrInvalidVersion
	}
	return n, nil
}

func validPrerelease(s string) bool {
	for _, ident := range strings.Split(s, ".") {
		if ident == "" {
			return false
		}
		for _, c := range ident {
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-') {
				return false
			}
		}
	}
	return true
}

// String renders the canonical form of v, without a leading "v".
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// IsPrerelease reports whether v carries a prerelease identifier.
func (v Version) IsPrerelease() bool { return v.Prerelease != "" }

// Compare returns -1, 0 or +1 as a is less than, equal to, or greater
// than b, using full semver precedence (build metadata ignored).
func Compare(a, b Version) int {
	return semver.Compare("v"+a.String(), "v"+b.String())
}

// Less reports whether a sorts strictly before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }
