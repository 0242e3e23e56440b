package codegen

import (
	"testing"

	"github.com/astc-run/astcvm/container"
)

func TestNewBackendKnownArchitectures(t *testing.T) {
	cases := []struct {
		name string
		arch container.Arch
	}{
		{"amd64", container.ArchX86_64},
		{"arm64", container.ArchARM64},
	}
	for _, c := range cases {
		b, err := NewBackend(c.name)
		if err != nil {
			t.Fatalf("NewBackend(%q): %v", c.name, err)
		}
		if b.Name() != c.name {
			t.Fatalf("got Name()=%q, want %q", b.Name(), c.name)
		}
		if b.Arch() != c.arch {
			t.Fatalf("got Arch()=%v, want %v", b.Arch(), c.arch)
		}
	}
}

func TestNewBackendUnsupportedArch(t *testing.T) {
	_, err := NewBackend("riscv64")
	if err == nil {
		t.Fatal("expected an error for an unsupported architecture")
	}
	if _, ok := err.(*UnsupportedArchError); !ok {
		t.Fatalf("got %T, want *UnsupportedArchError", err)
	}
}

func newTestContext(t *testing.T, archName string) *Context {
	t.Helper()
	ctx, err := NewContext(archName, 64, false)
	if err != nil {
		t.Fatalf("NewContext(%q): %v", archName, err)
	}
	return ctx
}

func TestAMD64BackendEmitsConstAddHalt(t *testing.T) {
	b := &AMD64Backend{}
	ctx := newTestContext(t, "amd64")

	ctx.SetCurrentPC(0)
	b.EmitFunctionPrologue(ctx)
	ctx.SetCurrentPC(1)
	b.EmitConstI32(ctx, 5)
	ctx.SetCurrentPC(2)
	b.EmitConstI32(ctx, 7)
	ctx.SetCurrentPC(3)
	b.EmitAdd(ctx)
	ctx.SetCurrentPC(4)
	b.EmitHaltWithReturn(ctx)
	b.EmitFunctionEpilogue(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	if _, err := ctx.Assemble(); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestAMD64BackendBranchPatchesForward(t *testing.T) {
	b := &AMD64Backend{}
	ctx := newTestContext(t, "amd64")

	ctx.SetCurrentPC(0)
	b.EmitBranch(ctx, 10)
	if len(ctx.Pending) != 1 {
		t.Fatalf("got %d pending patches, want 1", len(ctx.Pending))
	}

	ctx.SetCurrentPC(10)
	b.EmitNop(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	if len(ctx.Pending) != 0 {
		t.Fatalf("got %d pending patches after resolve, want 0", len(ctx.Pending))
	}
}

func TestAMD64BackendUnresolvedBranchErrors(t *testing.T) {
	b := &AMD64Backend{}
	ctx := newTestContext(t, "amd64")

	ctx.SetCurrentPC(0)
	b.EmitBranch(ctx, 99)

	err := ctx.ResolvePatches()
	if err == nil {
		t.Fatal("expected an error resolving a branch to a pc that was never emitted")
	}
	if _, ok := err.(*UnpatchableJumpError); !ok {
		t.Fatalf("got %T, want *UnpatchableJumpError", err)
	}
}

func TestARM64BackendEmitsConstAddHalt(t *testing.T) {
	b := &ARM64Backend{}
	ctx := newTestContext(t, "arm64")

	ctx.SetCurrentPC(0)
	b.EmitFunctionPrologue(ctx)
	ctx.SetCurrentPC(1)
	b.EmitConstI32(ctx, 5)
	ctx.SetCurrentPC(2)
	b.EmitConstI32(ctx, 7)
	ctx.SetCurrentPC(3)
	b.EmitAdd(ctx)
	ctx.SetCurrentPC(4)
	b.EmitHaltWithReturn(ctx)
	b.EmitFunctionEpilogue(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	if _, err := ctx.Assemble(); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestARM64BackendLibcCallMarshalsArgs(t *testing.T) {
	b := &ARM64Backend{}
	ctx := newTestContext(t, "arm64")

	for i := 0; i < 6; i++ {
		ctx.SetCurrentPC(i)
		b.EmitConstI32(ctx, uint32(i))
	}
	ctx.SetCurrentPC(6)
	b.EmitLibcCall(ctx, 3, 6)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	if _, err := ctx.Assemble(); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
}

func TestAMD64BackendUserCallHandsOffSharedRegisters(t *testing.T) {
	b := &AMD64Backend{}
	ctx := newTestContext(t, "amd64")

	ctx.SetCurrentPC(0)
	b.EmitFunctionPrologue(ctx)
	ctx.SetCurrentPC(1)
	b.EmitUserCall(ctx, 2)
	ctx.SetCurrentPC(2)
	b.EmitFunctionEpilogue(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	code, err := ctx.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
}

func TestARM64BackendUserCallHandsOffSharedRegisters(t *testing.T) {
	b := &ARM64Backend{}
	ctx := newTestContext(t, "arm64")

	ctx.SetCurrentPC(0)
	b.EmitFunctionPrologue(ctx)
	ctx.SetCurrentPC(1)
	b.EmitUserCall(ctx, 2)
	ctx.SetCurrentPC(2)
	b.EmitFunctionEpilogue(ctx)

	if err := ctx.ResolvePatches(); err != nil {
		t.Fatalf("ResolvePatches: %v", err)
	}
	code, err := ctx.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
}
