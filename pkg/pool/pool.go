// Package pool recycles the small per-solve objects of the equation
// assembler. Objects live in chunked slabs and are addressed by Handle;
// every checked-out slot carries the Owner that acquired it so an owner
// can give back everything it holds in one call.
package pool

import (
	"fmt"
	"sync/atomic"
)

const chunkSize = 64

type Handle int32

type Owner uint64

// NoOwner tags a free slot. It is never handed out by NextOwner.
const NoOwner Owner = 0

var ownerSeq atomic.Uint64

// NextOwner returns a process-wide unique owner tag.
func NextOwner() Owner {
	return Owner(ownerSeq.Add(1))
}

// Pool is not safe for concurrent use.
type Pool[T any] struct {
	chunks [][]T
	owners []Owner
	free   []Handle
	mark   int // slots below mark have been handed out at least once since Reset
}

func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{}
	p.grow(capacity)
	return p
}

func (p *Pool[T]) grow(n int) {
	for len(p.owners) < n {
		p.chunks = append(p.chunks, make([]T, chunkSize))
		p.owners = append(p.owners, make([]Owner, chunkSize)...)
	}
}

func (p *Pool[T]) slot(h Handle) *T {
	return &p.chunks[int(h)/chunkSize][int(h)%chunkSize]
}

// Acquire hands out a free slot tagged with owner. init re-initialises the
// recycled value; a nil init zeroes it. The returned pointer stays valid
// until the slot is released.
func (p *Pool[T]) Acquire(owner Owner, init func(*T)) (Handle, *T) {
	if owner == NoOwner {
		panic("pool: acquire without owner")
	}

	var h Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.mark == len(p.owners) {
			p.grow(p.mark + 1)
		}
		h = Handle(p.mark)
		p.mark++
	}

	p.owners[h] = owner
	v := p.slot(h)
	if init != nil {
		init(v)
	} else {
		var zero T
		*v = zero
	}
	return h, v
}

// Get resolves a checked-out handle.
func (p *Pool[T]) Get(h Handle) *T {
	if h < 0 || int(h) >= p.mark || p.owners[h] == NoOwner {
		panic(fmt.Sprintf("pool: handle %d is not checked out", h))
	}
	return p.slot(h)
}

// OwnerOf reports the owner of h, NoOwner when h is free.
func (p *Pool[T]) OwnerOf(h Handle) Owner {
	if h < 0 || int(h) >= len(p.owners) {
		return NoOwner
	}
	return p.owners[h]
}

// ReleaseAll returns every slot tagged with owner to the free list and
// reports how many were released.
func (p *Pool[T]) ReleaseAll(owner Owner) int {
	if owner == NoOwner {
		return 0
	}
	n := 0
	for i := 0; i < p.mark; i++ {
		if p.owners[i] == owner {
			p.owners[i] = NoOwner
			p.free = append(p.free, Handle(i))
			n++
		}
	}
	return n
}

// Reset frees every slot at once and drops the high-water mark.
func (p *Pool[T]) Reset() {
	for i := 0; i < p.mark; i++ {
		p.owners[i] = NoOwner
	}
	p.mark = 0
	p.free = p.free[:0]
}

// Owned counts the slots currently tagged with owner.
func (p *Pool[T]) Owned(owner Owner) int {
	n := 0
	for i := 0; i < p.mark; i++ {
		if p.owners[i] == owner {
			n++
		}
	}
	return n
}

// Free counts the slots that can be acquired without growing the slab.
func (p *Pool[T]) Free() int {
	return len(p.free) + len(p.owners) - p.mark
}

// Len counts the checked-out slots.
func (p *Pool[T]) Len() int {
	return p.mark - len(p.free)
}

// Cap is the number of allocated slots.
func (p *Pool[T]) Cap() int {
	return len(p.owners)
}
