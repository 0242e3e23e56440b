package depres

import "testing"

func TestParseDefaultsMinorPatch(t *testing.T) {
	v, err := Parse("1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Major != 1 || v.Minor != 0 || v.Patch != 0 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseRejectsLeadingZero(t *testing.T) {
	if _, err := Parse("1.02.0"); err != ErrInvalidVersion {
		t.Fatalf("got %v, want ErrInvalidVersion", err)
	}
}

func TestParsePrereleaseAndBuild(t *testing.T) {
	v, err := Parse("1.2.3-beta.1+build5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Prerelease != "beta.1" || v.Build != "build5" {
		t.Fatalf("got %+v", v)
	}
}

func TestComparePrereleaseLessThanRelease(t *testing.T) {
	pre, _ := Parse("1.0.0-alpha")
	rel, _ := Parse("1.0.0")
	if !Less(pre, rel) {
		t.Fatal("expected prerelease < release")
	}
}

func TestCompareOrdering(t *testing.T) {
	a, _ := Parse("1.2.5")
	b, _ := Parse("1.3.0")
	if !Less(a, b) {
		t.Fatal("expected 1.2.5 < 1.3.0")
	}
}

func TestCompareIgnoresBuildMetadata(t *testing.T) {
	a, _ := Parse("1.0.0+build1")
	b, _ := Parse("1.0.0+build2")
	if Compare(a, b) != 0 {
		t.Fatal("expected build metadata to be ignored for ordering")
	}
}

func TestCompatibleMajorConstraint(t *testing.T) {
	c := Constraint{Kind: CompatibleMajor, Low: Version{Major: 1, Minor: 2, Patch: 5}}
	v130, _ := Parse("1.3.0")
	v200, _ := Parse("2.0.0")
	if !c.Satisfies(v130, false) {
		t.Fatal("1.3.0 should satisfy compatible-major with 1.2.5")
	}
	if c.Satisfies(v200, false) {
		t.Fatal("2.0.0 should not satisfy compatible-major with 1.2.5")
	}
}
