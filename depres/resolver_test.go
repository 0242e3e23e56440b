package depres

import (
	"reflect"
	"testing"
)

// mapCatalog is a fixed, in-memory Catalog used by tests. Load always
// fails (no auto-resolution), matching the "present" test fixtures.
type mapCatalog map[string]ModuleDependencyInfo

func (c mapCatalog) Lookup(name string) (ModuleDependencyInfo, bool) {
	info, ok := c[name]
	return info, ok
}

func (c mapCatalog) Load(name string) (ModuleDependencyInfo, error) {
	return ModuleDependencyInfo{}, &MissingDependencyError{Dependency: name}
}

func mustVersion(t *testing.T, s string) Version {
	t.Helper()
	v, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return v
}

// TestDependencyChain implements scenario S6: A requires B ^1.0, B
// requires C >=1.0, C v1.0.0. Expected order: C, B, A.
func TestDependencyChain(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "B", Kind: Required, Constraint: Constraint{Kind: CompatibleMajor, Low: mustVersion(t, "1.0.0")}},
		}},
		"B": {Name: "B", Version: mustVersion(t, "1.2.3"), Deps: []DepSpec{
			{Target: "C", Kind: Required, Constraint: Constraint{Kind: Min, Low: mustVersion(t, "1.0.0")}},
		}},
		"C": {Name: "C", Version: mustVersion(t, "1.0.0")},
	}

	r := &Resolver{Catalog: catalog}
	order, err := r.Resolve("A")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"C", "B", "A"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("got %v, want %v", order, want)
	}
}

func TestDependencyChainVersionConflict(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "B", Kind: Required, Constraint: Constraint{Kind: CompatibleMajor, Low: mustVersion(t, "1.0.0")}},
		}},
		"B": {Name: "B", Version: mustVersion(t, "1.2.3"), Deps: []DepSpec{
			{Target: "C", Kind: Required, Constraint: Constraint{Kind: Min, Low: mustVersion(t, "1.0.0")}},
		}},
		"C": {Name: "C", Version: mustVersion(t, "0.9.0")},
	}

	r := &Resolver{Catalog: catalog}
	_, err := r.Resolve("A")
	var vc *VersionConflictError
	if err == nil {
		t.Fatal("expected VersionConflictError")
	}
	if ok := asVersionConflict(err, &vc); !ok {
		t.Fatalf("got %v (%T), want *VersionConflictError", err, err)
	}
	if vc.Module != "B" || vc.Dependency != "C" {
		t.Fatalf("got %+v, want Module=B Dependency=C", vc)
	}
}

func asVersionConflict(err error, out **VersionConflictError) bool {
	vc, ok := err.(*VersionConflictError)
	if ok {
		*out = vc
	}
	return ok
}

func TestCyclicDependency(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "B", Kind: Required, Constraint: Constraint{Kind: Min, Low: mustVersion(t, "0.0.0")}},
		}},
		"B": {Name: "B", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "A", Kind: Required, Constraint: Constraint{Kind: Min, Low: mustVersion(t, "0.0.0")}},
		}},
	}

	r := &Resolver{Catalog: catalog}
	_, err := r.Resolve("A")
	if _, ok := err.(*CyclicDependencyError); !ok {
		t.Fatalf("got %v (%T), want *CyclicDependencyError", err, err)
	}
}

func TestConflictingModule(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "B", Kind: Conflicting},
		}},
		"B": {Name: "B", Version: mustVersion(t, "1.0.0")},
	}
	r := &Resolver{Catalog: catalog}
	_, err := r.Resolve("A")
	if _, ok := err.(*ConflictingModuleError); !ok {
		t.Fatalf("got %v (%T), want *ConflictingModuleError", err, err)
	}
}

func TestOptionalDependencyAbsentContinues(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "Z", Kind: Optional},
		}},
	}
	r := &Resolver{Catalog: catalog}
	order, err := r.Resolve("A")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"A"}) {
		t.Fatalf("got %v", order)
	}
}

func TestPlatformGate(t *testing.T) {
	catalog := mapCatalog{
		"A": {Name: "A", Version: mustVersion(t, "1.0.0"), Deps: []DepSpec{
			{Target: "B", Kind: Required, Constraint: Constraint{Kind: Min, Low: mustVersion(t, "0.0.0")}, Platforms: []string{"windows"}},
		}},
		"B": {Name: "B", Version: mustVersion(t, "1.0.0")},
	}
	r := &Resolver{Catalog: catalog, Platform: "linux"}
	_, err := r.Resolve("A")
	if _, ok := err.(*IncompatiblePlatformError); !ok {
		t.Fatalf("got %v (%T), want *IncompatiblePlatformError", err, err)
	}
}
