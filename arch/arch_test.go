package arch

import "testing"

func TestDetectReturnsKnownBits(t *testing.T) {
	info := Detect()
	if info.Bits != 32 && info.Bits != 64 {
		t.Fatalf("unexpected pointer width: %d", info.Bits)
	}
}

func TestModuleSuffixFormat(t *testing.T) {
	cases := []struct {
		info Info
		want string
	}{
		{Info{X86, 64}, "x64_64"},
		{Info{X86, 32}, "x86_32"},
		{Info{ARM, 64}, "arm64_64"},
		{Info{ARM, 32}, "arm32_32"},
	}
	for _, c := range cases {
		if got := c.info.ModuleSuffix(); got != c.want {
			t.Errorf("ModuleSuffix(%+v) = %q, want %q", c.info, got, c.want)
		}
	}
}

func TestContainerArchMapping(t *testing.T) {
	if got := (Info{X86, 64}).ContainerArch(); got.String() != "x64" {
		t.Errorf("got %v, want x64", got)
	}
	if got := (Info{ARM, 64}).ContainerArch(); got.String() != "arm64" {
		t.Errorf("got %v, want arm64", got)
	}
}
