package codegen

import "testing"

func TestAllocateFillsFreeSlotsFirst(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < numAllocatableRegisters; i++ {
		slot, spill := a.Allocate(i)
		if spill != nil {
			t.Fatalf("unexpected spill on allocation %d: %+v", i, spill)
		}
		if slot != i {
			t.Fatalf("got slot %d, want %d", slot, i)
		}
	}
}

func TestAllocateSpillsLRUWhenFull(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < numAllocatableRegisters; i++ {
		a.Allocate(i)
	}
	// Touch every slot except 0, so slot 0 becomes the LRU victim.
	for i := 1; i < numAllocatableRegisters; i++ {
		a.Touch(i)
	}

	slot, spill := a.Allocate(1000)
	if spill == nil {
		t.Fatal("expected a spill once all slots are occupied")
	}
	if slot != 0 || spill.ValueID != 0 {
		t.Fatalf("got slot=%d spill=%+v, want slot=0 spill.ValueID=0", slot, spill)
	}
	if a.SpillCount() != 1 {
		t.Fatalf("got SpillCount=%d, want 1", a.SpillCount())
	}
	if ss, ok := a.SpillSlotFor(0); !ok || ss != 0 {
		t.Fatalf("got SpillSlotFor(0)=(%d,%v), want (0,true)", ss, ok)
	}
}

func TestFreeReleasesSlot(t *testing.T) {
	a := NewRegisterAllocator()
	for i := 0; i < numAllocatableRegisters; i++ {
		a.Allocate(i)
	}
	a.Free(3)
	slot, spill := a.Allocate(999)
	if spill != nil {
		t.Fatalf("unexpected spill after Free: %+v", spill)
	}
	if slot != 3 {
		t.Fatalf("got slot %d, want 3 (the freed slot)", slot)
	}
}
