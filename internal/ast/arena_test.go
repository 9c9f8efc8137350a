package ast

import (
	"bytes"
	"sync"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestArenaIndicesAreOneBased(t *testing.T) {
	a := NewArena[int](0)
	if a.Get(0) != nil {
		t.Fatalf("index 0 must be the empty slot")
	}
	first := a.Allocate(10)
	second := a.Allocate(20)
	if first != 1 || second != 2 {
		t.Fatalf("expected indices 1,2, got %d,%d", first, second)
	}
	if got := *a.Get(second); got != 20 {
		t.Fatalf("Get(2) = %d", got)
	}
	if a.Get(3) != nil {
		t.Fatalf("out of range index must return nil")
	}
}

func TestArenaPointersSurviveGrowth(t *testing.T) {
	a := NewArena[int](0)
	idx := a.Allocate(7)
	p := a.Get(idx)
	for i := range 4 * chunkSize {
		a.Allocate(i)
	}
	if p != a.Get(idx) {
		t.Fatalf("pointer to element moved after growth")
	}
	if *p != 7 {
		t.Fatalf("element changed: %d", *p)
	}
}

func TestArenaConcurrentAllocate(t *testing.T) {
	a := NewArena[uint32](0)
	const workers, per = 8, 500
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				idx := a.Allocate(uint32(w*per + i))
				if a.Get(idx) == nil {
					t.Errorf("allocated index %d not readable", idx)
				}
			}
		}()
	}
	wg.Wait()
	if a.Len() != workers*per {
		t.Fatalf("Len = %d, want %d", a.Len(), workers*per)
	}
	seen := make(map[uint32]bool)
	for _, v := range a.Slice() {
		if seen[v] {
			t.Fatalf("value %d stored twice", v)
		}
		seen[v] = true
	}
}

func TestArenaMsgpackKeepsIndices(t *testing.T) {
	a := NewArena[string](0)
	a.Allocate("a")
	a.Allocate("b")
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(a); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := NewArena[string](0)
	if err := msgpack.NewDecoder(&buf).Decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Len() != 2 || *b.Get(1) != "a" || *b.Get(2) != "b" {
		t.Fatalf("round trip lost data: %v", b.Slice())
	}
}
