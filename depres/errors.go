package depres

import "fmt"

// VersionConflictError names the dependent module, the target and the
// constraint that the present version failed to satisfy.
type VersionConflictError struct {
	Module     string
	Dependency string
	Present    Version
	Constraint Constraint
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("depres: %s requires %s %v, found %v", e.Module, e.Dependency, e.Constraint, e.Present)
}

// MissingDependencyError names the dependent module and the absent,
// required target that auto-resolution could not load.
type MissingDependencyError struct {
	Module     string
	Dependency string
	Cause      error
}

func (e *MissingDependencyError) Error() string {
	msg := fmt.Sprintf("depres: %s requires missing module %s", e.Module, e.Dependency)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MissingDependencyError) Unwrap() error { return e.Cause }

// ConflictingModuleError names the two modules that declared a
// mutual-exclusion dependency.
type ConflictingModuleError struct {
	Module     string
	Dependency string
}

func (e *ConflictingModuleError) Error() string {
	return fmt.Sprintf("depres: %s conflicts with loaded module %s", e.Module, e.Dependency)
}

// IncompatiblePlatformError names the module and dependency whose
// platform/architecture gate rejected the host.
type IncompatiblePlatformError struct {
	Module     string
	Dependency string
}

func (e *IncompatiblePlatformError) Error() string {
	return fmt.Sprintf("depres: %s's dependency on %s is not supported on this platform", e.Module, e.Dependency)
}

// CyclicDependencyError carries the chain of module names from the
// re-entered module back to itself.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	s := "depres: cyclic dependency: "
	for i, name := range e.Chain {
		if i > 0 {
			s += " -> "
		}
		s += name
	}
	return s
}
