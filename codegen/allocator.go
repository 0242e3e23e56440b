package codegen

// numAllocatableRegisters is the size of the allocatable register set
// spec §3 describes for RegisterAllocator state: 16 slots, excluding
// the stack/base pointer and link register the backends reserve for
// themselves (mirroring the teacher's R10-R13 reservation in
// exec/internal/compile/backend_amd64.go).
const numAllocatableRegisters = 16

// registerSlot is the bookkeeping the spec requires per allocatable
// register: whether it holds a live value, when it was last used (for
// LRU spill selection), and which abstract value it holds.
type registerSlot struct {
	inUse    bool
	lastUsed uint64
	valueID  int
}

// RegisterAllocator implements the allocate-on-demand, LRU-spill
// policy of spec §4.6.
type RegisterAllocator struct {
	slots []registerSlot
	clock uint64

	// spillSlots maps a spilled valueID to the stack-frame slot it was
	// written to, so a later load can reconstitute it (spec §4.6:
	// "the allocator tracks the slot so future loads can reconstitute
	// it").
	spillSlots map[int]int
	nextSpill  int

	spillCount int
}

// NewRegisterAllocator returns an allocator with all slots free.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{
		slots:      make([]registerSlot, numAllocatableRegisters),
		spillSlots: make(map[int]int),
	}
}

// Spill describes a value that had to be evicted from a register to
// make room for a new allocation.
type Spill struct {
	ValueID    int
	FromSlot   int
	StackSlot  int
}

// Allocate assigns a register slot to valueID, evicting the
// least-recently-used occupant via Spill if every slot is in use.
// Returns the assigned slot index and, if an eviction was necessary,
// the Spill describing it.
func (a *RegisterAllocator) Allocate(valueID int) (slot int, spilled *Spill) {
	a.clock++
	for i := range a.slots {
		if !a.slots[i].inUse {
			a.slots[i] = registerSlot{inUse: true, lastUsed: a.clock, valueID: valueID}
			return i, nil
		}
	}

	victim := a.lruSlot()
	evictedValue := a.slots[victim].valueID
	stackSlot := a.nextSpill
	a.nextSpill++
	a.spillSlots[evictedValue] = stackSlot
	a.spillCount++

	a.slots[victim] = registerSlot{inUse: true, lastUsed: a.clock, valueID: valueID}
	return victim, &Spill{ValueID: evictedValue, FromSlot: victim, StackSlot: stackSlot}
}

func (a *RegisterAllocator) lruSlot() int {
	oldest := 0
	for i := 1; i < len(a.slots); i++ {
		if a.slots[i].lastUsed < a.slots[oldest].lastUsed {
			oldest = i
		}
	}
	return oldest
}

// Touch updates a slot's LRU timestamp without changing occupancy,
// e.g. when a value already in a register is reused.
func (a *RegisterAllocator) Touch(slot int) {
	a.clock++
	a.slots[slot].lastUsed = a.clock
}

// Free releases slot, making it available for future allocation.
func (a *RegisterAllocator) Free(slot int) {
	a.slots[slot] = registerSlot{}
}

// SpillSlotFor returns the stack-frame slot a previously spilled value
// was written to, and whether it was ever spilled.
func (a *RegisterAllocator) SpillSlotFor(valueID int) (int, bool) {
	slot, ok := a.spillSlots[valueID]
	return slot, ok
}

// SpillCount is the running count of evictions performed so far.
func (a *RegisterAllocator) SpillCount() int { return a.spillCount }
