package codegen

import (
	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// JumpPatch is a forward branch recorded during emission, to be
// resolved once the target ASTC program counter has been emitted
// (spec §4.7: "patches forward jumps after all instructions are
// emitted").
type JumpPatch struct {
	TargetPC int
	Branch   *obj.Prog
}

// Context is the mutable scratchpad shared by one compilation, per
// spec §3's CodeGenContext. It wraps a golang-asm Builder (which
// supplies the growable, backend-agnostic instruction buffer) with the
// register/stack bookkeeping spec §3 and §4.6 require.
type Context struct {
	Arch    string
	Builder *asm.Builder

	// RegBitmap is a bitmap over the 16 allocatable virtual register
	// slots. No code in this module sets it; the backends address the
	// operand stack in memory and do not allocate registers.
	RegBitmap uint16
	VRegCount int
	Allocator *RegisterAllocator

	// Labels maps an ASTC bytecode pc to the first Prog emitted while
	// processing that pc, i.e. the jump target anchor.
	Labels map[int]*obj.Prog
	// Pending holds forward branches awaiting their target's Prog.
	Pending []JumpPatch

	FrameOffset int

	// curPC is the ASTC program counter of the instruction currently
	// being emitted. The driver (package jit) sets it before each
	// Emit* call so backends can register jump-target anchors via
	// MarkLabel without threading the pc through every method.
	curPC int

	EnableOptimizations bool

	State State
	Stats Stats

	err error
}

// NewContext creates a Context for the given architecture name
// ("amd64" or "arm64", per golang-asm's architecture strings) with an
// initial instruction-object pool sized progPoolSize.
func NewContext(archName string, progPoolSize int, enableOptimizations bool) (*Context, error) {
	builder, err := asm.NewBuilder(archName, progPoolSize)
	if err != nil {
		return nil, err
	}
	return &Context{
		Arch:                archName,
		Builder:             builder,
		Labels:              make(map[int]*obj.Prog),
		Allocator:           NewRegisterAllocator(),
		EnableOptimizations: enableOptimizations,
		State:               Idle,
	}, nil
}

// SetCurrentPC records the ASTC pc about to be emitted. Called by the
// driver immediately before dispatching to a Backend Emit* method.
func (c *Context) SetCurrentPC(pc int) { c.curPC = pc }

// CurrentPC returns the pc most recently set by SetCurrentPC.
func (c *Context) CurrentPC() int { return c.curPC }

// MarkLabel records prog as the jump-target anchor for astcPC, if one
// isn't already recorded (the first instruction emitted for a given pc
// is its anchor).
func (c *Context) MarkLabel(astcPC int, prog *obj.Prog) {
	if _, ok := c.Labels[astcPC]; !ok {
		c.Labels[astcPC] = prog
	}
}

// AddPatch records a forward branch to be resolved once astcPC's
// label is known.
func (c *Context) AddPatch(astcPC int, branch *obj.Prog) {
	c.Pending = append(c.Pending, JumpPatch{TargetPC: astcPC, Branch: branch})
}

// ResolvePatches wires every recorded forward branch to its target
// Prog. Returns UnpatchableJumpError for any target pc that was never
// emitted.
func (c *Context) ResolvePatches() error {
	for _, p := range c.Pending {
		target, ok := c.Labels[p.TargetPC]
		if !ok {
			return &UnpatchableJumpError{TargetPC: p.TargetPC}
		}
		p.Branch.To.SetTarget(target)
	}
	c.Pending = nil
	return nil
}

// Fail transitions the context into the Failed state, recording err as
// the cause. Subsequent Assemble calls return err.
func (c *Context) Fail(err error) {
	c.State = Failed
	c.err = err
}

// Err returns the error that caused Fail, if any.
func (c *Context) Err() error { return c.err }

// Assemble finalizes emission and returns the assembled machine code.
// It is an error to call Assemble while the context is Failed.
func (c *Context) Assemble() ([]byte, error) {
	if c.State == Failed {
		return nil, c.err
	}
	return c.Builder.Assemble(), nil
}
