package simcollab

import "testing"

func TestHaltSignalRecordsCall(t *testing.T) {
	r := NewReference()
	r.HaltSignal(3, 2)
	if len(r.HaltCalls) != 1 || r.HaltCalls[0] != (HaltCall{Ctx: 3, HaltStyle: 2}) {
		t.Fatalf("unexpected HaltCalls: %+v", r.HaltCalls)
	}
}

func TestGoRecordsCall(t *testing.T) {
	r := NewReference()
	r.Go(1, 7, 100)
	if len(r.GoCalls) != 1 || r.GoCalls[0] != (GoCall{Ctx: 1, AppID: 7, StartCyc: 100}) {
		t.Fatalf("unexpected GoCalls: %+v", r.GoCalls)
	}
}

func TestAccessAddsOpTime(t *testing.T) {
	r := NewReference()
	if got := r.Access(10, 5); got != 15 {
		t.Fatalf("Access(10, 5) = %d, want 15", got)
	}
}

func TestRegisterBlockedAppHonorsDenyFlag(t *testing.T) {
	r := NewReference()
	if r.RegisterBlockedApp(0, 1) {
		t.Fatal("expected false by default")
	}
	r.DenyCacheRegister = true
	if !r.RegisterBlockedApp(0, 1) {
		t.Fatal("expected true once DenyCacheRegister is set")
	}
}

func TestAllocAssignsIncreasingSlotIDs(t *testing.T) {
	r := NewReference()
	s1, ok1 := r.Alloc(0)
	s2, ok2 := r.Alloc(0)
	if !ok1 || !ok2 || s1 == s2 {
		t.Fatalf("expected two distinct successful allocations, got %d,%v %d,%v", s1, ok1, s2, ok2)
	}
}

func TestAllocFailsWhenOutOfSlots(t *testing.T) {
	r := NewReference()
	r.InjectorOutOfSlots = true
	_, ok := r.Alloc(0)
	if ok {
		t.Fatal("expected Alloc to fail when InjectorOutOfSlots is set")
	}
}

func TestAtRenameFreesSlot(t *testing.T) {
	r := NewReference()
	slot, ok := r.Alloc(0)
	if !ok {
		t.Fatal("Alloc failed")
	}
	r.SetSpillFill(slot, 4, true, false)
	r.AtRename(0, slot)
	if _, exists := r.slots[slot]; exists {
		t.Fatal("expected slot to be removed after AtRename")
	}
}

func TestPushPopIsLIFO(t *testing.T) {
	r := NewReference()
	r.Push(0, 100)
	r.Push(0, 200)
	if got := r.Pop(0); got != 200 {
		t.Fatalf("Pop() = %d, want 200", got)
	}
	if got := r.Pop(0); got != 100 {
		t.Fatalf("Pop() = %d, want 100", got)
	}
}

func TestPopOnEmptyStackReturnsZero(t *testing.T) {
	r := NewReference()
	if got := r.Pop(0); got != 0 {
		t.Fatalf("Pop() on empty stack = %d, want 0", got)
	}
}

func TestGetPopulationIsAlwaysZero(t *testing.T) {
	r := NewReference()
	if got := r.GetPopulation(2, 5); got != 0 {
		t.Fatalf("GetPopulation() = %d, want 0", got)
	}
}
