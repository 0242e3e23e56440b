package depres

import (
	"io"
	"log"
)

// DependencyKind classifies how a DepSpec's absence or conflict should
// be treated, per spec §4.3.
type DependencyKind int

// Recognized dependency kinds.
const (
	Required DependencyKind = iota
	Optional
	Conflicting
	Suggested
)

// DepSpec is one declared dependency edge from a module to a target.
type DepSpec struct {
	Target     string
	Kind       DependencyKind
	Constraint Constraint
	// Platforms, if non-empty, restricts this dependency to hosts whose
	// platform tag appears in the list (spec §4.3's "platform/arch gate").
	Platforms []string
}

// ModuleDependencyInfo is C3's record for one module: its name, parsed
// version, and declared dependencies. Loadedness is deliberately not a
// field here (spec §9 flags the source's unmaintained "is_loaded" flag
// as a defect) — it is exclusively a property of the module loader's
// registry.
type ModuleDependencyInfo struct {
	Name    string
	Version Version
	Deps    []DepSpec
}

// Catalog supplies ModuleDependencyInfo by name, and optionally loads a
// module that isn't yet known (auto-resolution of required deps).
type Catalog interface {
	// Lookup returns the info for name and whether it is already
	// considered "present" (loaded/available) without needing a load.
	Lookup(name string) (info ModuleDependencyInfo, present bool)
	// Load attempts to bring an absent required dependency into
	// existence (e.g. by loading it from disk) and returns its info.
	Load(name string) (ModuleDependencyInfo, error)
}

// Resolver computes topological load orders and enforces the
// dependency/version/platform rules of spec §4.3.
type Resolver struct {
	Catalog Catalog
	// Platform is this host's platform tag, checked against each
	// DepSpec's Platforms list.
	Platform string
	// AllowPrerelease is the resolver-wide opt-in described in spec §4.3.
	AllowPrerelease bool
	// AutoResolve enables recursive loading of absent required
	// dependencies via Catalog.Load.
	AutoResolve bool

	logger *log.Logger
}

// SetLogger installs a destination for "log and continue"
// optional/suggested-dependency notices (spec §4.3). The default
// discards them.
func (r *Resolver) SetLogger(w io.Writer) {
	r.logger = log.New(w, "depres: ", log.LstdFlags)
}

func (r *Resolver) log() *log.Logger {
	if r.logger == nil {
		r.logger = log.New(io.Discard, "depres: ", log.LstdFlags)
	}
	return r.logger
}

// Resolve computes a topological load order for root and its
// transitive required dependencies, plus any optional or suggested
// dependencies that are present, enforcing every rule in spec §4.3's
// "dependency check sequence". The returned order lists dependencies
// before the modules that require them (for A requiring B and B
// requiring C, the order is C, B, A).
func (r *Resolver) Resolve(root string) ([]string, error) {
	var order []string
	visited := make(map[string]bool)
	inFlight := make(map[string]bool)

	var visit func(name string, chain []string) error
	visit = func(name string, chain []string) error {
		if inFlight[name] {
			return &CyclicDependencyError{Chain: append(append([]string{}, chain...), name)}
		}
		if visited[name] {
			return nil
		}
		inFlight[name] = true
		defer delete(inFlight, name)
		chain = append(chain, name)

		info, present := r.Catalog.Lookup(name)
		if !present {
			if !r.AutoResolve {
				return &MissingDependencyError{Module: "", Dependency: name}
			}
			loaded, err := r.Catalog.Load(name)
			if err != nil {
				return &MissingDependencyError{Module: "", Dependency: name, Cause: err}
			}
			info = loaded
		}

		for _, dep := range info.Deps {
			if len(dep.Platforms) > 0 && !containsString(dep.Platforms, r.Platform) {
				return &IncompatiblePlatformError{Module: name, Dependency: dep.Target}
			}

			depInfo, depPresent := r.Catalog.Lookup(dep.Target)

			switch dep.Kind {
			case Required:
				if !depPresent {
					if !r.AutoResolve {
						return &MissingDependencyError{Module: name, Dependency: dep.Target}
					}
					if err := visit(dep.Target, chain); err != nil {
						return err
					}
					depInfo, depPresent = r.Catalog.Lookup(dep.Target)
					if !depPresent {
						return &MissingDependencyError{Module: name, Dependency: dep.Target}
					}
				} else if err := visit(dep.Target, chain); err != nil {
					return err
				}
				if !dep.Constraint.Satisfies(depInfo.Version, r.AllowPrerelease) {
					return &VersionConflictError{
						Module:     name,
						Dependency: dep.Target,
						Present:    depInfo.Version,
						Constraint: dep.Constraint,
					}
				}
			case Conflicting:
				if depPresent {
					return &ConflictingModuleError{Module: name, Dependency: dep.Target}
				}
			case Optional, Suggested:
				if !depPresent {
					r.log().Printf("optional dependency %s of %s not present, continuing", dep.Target, name)
					continue
				}
				if err := visit(dep.Target, chain); err != nil {
					return err
				}
			}
		}

		visited[name] = true
		order = append(order, name)
		return nil
	}

	if err := visit(root, nil); err != nil {
		return nil, err
	}
	return order, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
