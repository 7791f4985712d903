// Package arenacache implements an index-addressed slab allocator.
//
// This replaces the raw-pointer "hole patching" design of the original
// cache: every reference into the arena is a Ref (an int32 slot index),
// never a pointer, so growing the backing slice can never invalidate a
// reference held anywhere else, including inside the slab itself. There
// is nothing left to patch after a grow.
package arenacache

import "sync"

// Nil is the zero-value-safe "no reference" sentinel. Slot 0 is reserved
// so a zero Ref is never confused with a real allocation.
const Nil int32 = 0

// Cache is a generic slab of T, addressed by Ref. Zero value is not
// usable; construct with New.
type Cache[T any] struct {
	mu   sync.Mutex
	slab []T
	free []int32
	ctor func(*T)
	dtor func(*T)
}

// New creates a Cache with initialCount pre-allocated slots. ctor is
// called on a slot's zero value when it is first handed out by Alloc
// (not on reuse from the free list, matching the original's
// constructor-only-on-first-touch semantics); dtor is called whenever a
// slot returns to the free list via Dealloc or ClearAll. Either may be
// nil.
func New[T any](initialCount int, ctor, dtor func(*T)) *Cache[T] {
	if initialCount < 1 {
		initialCount = 1
	}
	c := &Cache[T]{
		slab: make([]T, 1, initialCount+1), // slot 0 reserved as Nil
		ctor: ctor,
		dtor: dtor,
	}
	return c
}

// Lock acquires the cache's mutex. Callers performing a multi-step walk
// across the arena (the frontier's BST insert/lookup) must hold this
// across every Alloc/At call in the walk, since Alloc can grow the
// backing slice.
func (c *Cache[T]) Lock() { c.mu.Lock() }

// Unlock releases the cache's mutex.
func (c *Cache[T]) Unlock() { c.mu.Unlock() }

// Alloc returns a fresh slot's Ref and a pointer to it. The pointer is
// only valid until the next Alloc call grows the slab; callers that need
// to retain access across further allocations must re-derive the pointer
// via At.
func (c *Cache[T]) Alloc() (int32, *T) {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		obj := &c.slab[idx]
		return idx, obj
	}

	c.slab = append(c.slab, *new(T))
	idx := int32(len(c.slab) - 1)
	obj := &c.slab[idx]
	if c.ctor != nil {
		c.ctor(obj)
	}
	return idx, obj
}

// Dealloc returns a slot to the free list, running dtor first.
func (c *Cache[T]) Dealloc(ref int32) {
	if ref == Nil || int(ref) >= len(c.slab) {
		return
	}
	obj := &c.slab[ref]
	if c.dtor != nil {
		c.dtor(obj)
	}
	c.free = append(c.free, ref)
}

// ClearAll returns every assigned slot to the free list, running dtor on
// each, and resets NrUsed to 0. The backing slab capacity is retained.
// Slots are pushed in descending order so that later Allocs pop them
// back out in ascending slot order.
func (c *Cache[T]) ClearAll() {
	c.free = c.free[:0]
	for i := len(c.slab) - 1; i >= 1; i-- {
		if c.dtor != nil {
			c.dtor(&c.slab[i])
		}
		c.free = append(c.free, int32(i))
	}
}

// NrUsed returns the number of slots currently allocated and not on the
// free list.
func (c *Cache[T]) NrUsed() int {
	return len(c.slab) - 1 - len(c.free)
}

// At re-derives a pointer to ref from the current slab, or returns nil
// for Nil or an index past the end of the slab.
func (c *Cache[T]) At(ref int32) *T {
	if ref == Nil || int(ref) >= len(c.slab) {
		return nil
	}
	return &c.slab[ref]
}

// Valid reports whether ref is either Nil or an index within the slab;
// a slot on the free list still counts as valid.
func (c *Cache[T]) Valid(ref int32) bool {
	return ref == Nil || int(ref) < len(c.slab)
}

// Each visits every live slot in slab order (ascending slot index), not
// any order imposed by a structure built on top of the cache (a BST's
// key order, for instance). While slots are only handed out fresh or
// after ClearAll, slab order is the order Alloc handed them out; a slot
// reused after a single Dealloc keeps its old position. Stops early if
// visit returns false.
func (c *Cache[T]) Each(visit func(ref int32, obj *T) bool) {
	free := make(map[int32]bool, len(c.free))
	for _, r := range c.free {
		free[r] = true
	}
	for i := 1; i < len(c.slab); i++ {
		if free[int32(i)] {
			continue
		}
		if !visit(int32(i), &c.slab[i]) {
			return
		}
	}
}
