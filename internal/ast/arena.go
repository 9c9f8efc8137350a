package ast

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrArenaExhausted is the panic value when an arena runs out of indices.
var ErrArenaExhausted = errors.New("ast: arena index space exhausted")

const (
	chunkBits = 10
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

// Arena is an append-only pool addressed by 1-based indices; 0 means "none".
// Storage is split into fixed-size chunks that are never reallocated, so a
// pointer returned by Get stays valid until the whole arena is dropped.
// Allocation and lookup are safe for concurrent use.
type Arena[T any] struct {
	mu     sync.RWMutex
	chunks [][]T
	n      uint32
}

// NewArena creates an arena; capHint sizes the chunk directory only.
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		chunks: make([][]T, 0, capHint/chunkSize+1),
	}
}

// Allocate appends value and returns its index (1-based).
func (a *Arena[T]) Allocate(value T) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.n == math.MaxUint32 {
		panic(ErrArenaExhausted)
	}
	ci := int(a.n >> chunkBits)
	if ci == len(a.chunks) {
		a.chunks = append(a.chunks, make([]T, 0, chunkSize))
	}
	a.chunks[ci] = append(a.chunks[ci], value)
	a.n++
	return a.n
}

// Get returns nil for index 0 and for indices past the end.
func (a *Arena[T]) Get(index uint32) *T {
	if index == 0 {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index > a.n {
		return nil
	}
	i := index - 1
	return &a.chunks[i>>chunkBits][i&chunkMask]
}

func (a *Arena[T]) Len() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.n
}

// Slice returns a flat copy of every element in allocation order.
func (a *Arena[T]) Slice() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]T, 0, a.n)
	for _, c := range a.chunks {
		out = append(out, c...)
	}
	return out
}

// EncodeMsgpack writes the arena as a flat array.
func (a *Arena[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(a.Slice())
}

// DecodeMsgpack replaces the arena contents; indices are preserved.
func (a *Arena[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	var items []T
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("arena decode: %w", err)
	}
	a.mu.Lock()
	a.chunks = nil
	a.n = 0
	a.mu.Unlock()
	for _, it := range items {
		a.Allocate(it)
	}
	return nil
}
