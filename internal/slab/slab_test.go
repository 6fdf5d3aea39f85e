package slab

import "testing"

type thing struct {
	A uint32
	B string
}

func TestAllocFreeReuse(t *testing.T) {
	a := New[thing](2)

	x, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc 1 failed")
	}
	x.A = 42
	y, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc 2 failed")
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("expected exhaustion on third alloc")
	}

	a.Free(x)
	z, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc after free failed")
	}
	if z.A != 0 {
		t.Fatalf("reused item not zeroed: %+v", z)
	}
	_ = y
}

func TestFreeNilIsNoop(t *testing.T) {
	a := New[thing](1)
	a.Free(nil)
	if a.InUse() != 0 {
		t.Fatalf("InUse=%d want 0", a.InUse())
	}
}

func TestInUse(t *testing.T) {
	a := New[thing](3)
	x, _ := a.Alloc()
	_, _ = a.Alloc()
	if got := a.InUse(); got != 2 {
		t.Fatalf("InUse=%d want 2", got)
	}
	a.Free(x)
	if got := a.InUse(); got != 1 {
		t.Fatalf("InUse=%d want 1", got)
	}
}
