package uthreads

import "testing"

func TestRegistrySmallestFreeID(t *testing.T) {
	r := newRegistry(3)

	id, ok := r.smallestFreeID()
	if !ok || id != 0 {
		t.Fatalf("expected id 0 on empty registry, got %d, %v", id, ok)
	}

	r.insert(&TCB{id: 0})
	r.insert(&TCB{id: 2})

	id, ok = r.smallestFreeID()
	if !ok || id != 1 {
		t.Fatalf("expected smallest free id 1, got %d, %v", id, ok)
	}

	r.insert(&TCB{id: 1})
	_, ok = r.smallestFreeID()
	if ok {
		t.Fatal("expected registry at capacity to report no free id")
	}

	r.remove(1)
	id, ok = r.smallestFreeID()
	if !ok || id != 1 {
		t.Fatalf("expected id 1 free again after remove, got %d, %v", id, ok)
	}
}

func TestRegistryLookupAndLen(t *testing.T) {
	r := newRegistry(2)
	if r.len() != 0 {
		t.Fatalf("expected empty registry, got len %d", r.len())
	}

	t0 := &TCB{id: 0}
	r.insert(t0)
	if got, ok := r.lookup(0); !ok || got != t0 {
		t.Fatalf("lookup(0) = %v, %v; want %v, true", got, ok, t0)
	}
	if r.len() != 1 {
		t.Fatalf("expected len 1, got %d", r.len())
	}

	if _, ok := r.lookup(99); ok {
		t.Fatal("lookup of unknown id should report false")
	}
}
