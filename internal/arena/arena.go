// Package arena provides region-scoped storage for compilation-lifetime
// objects.
//
// Objects are stored in typed arenas and referenced through 1-based handles.
// Every arena belongs to a Region; releasing the region drops all storage at
// once. Handles and pointers obtained from a released region are invalid and
// any further access panics with ErrReleased.
package arena

import (
	"errors"
	"fmt"
	"sync/atomic"

	"fortio.org/safecast"
)

// ErrReleased is the panic value raised when a released region is accessed.
var ErrReleased = errors.New("arena: region released")

type releaser interface {
	release()
	live() int
}

// Region owns a group of arenas with a common lifetime.
type Region struct {
	released atomic.Bool
	arenas   []releaser
}

// NewRegion returns an empty live region.
func NewRegion() *Region {
	return &Region{arenas: make([]releaser, 0, 4)}
}

// Release frees every arena of the region. It is safe to call more than once.
func (r *Region) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	for _, a := range r.arenas {
		a.release()
	}
	r.arenas = nil
}

// Released reports whether the region has been released.
func (r *Region) Released() bool {
	return r == nil || r.released.Load()
}

// Arenas reports how many arenas are attached to the region.
func (r *Region) Arenas() int {
	if r.Released() {
		return 0
	}
	return len(r.arenas)
}

// Live reports the number of objects currently held by the region.
func (r *Region) Live() int {
	if r.Released() {
		return 0
	}
	total := 0
	for _, a := range r.arenas {
		total += a.live()
	}
	return total
}

func (r *Region) mustLive() {
	if r.Released() {
		panic(ErrReleased)
	}
}

// Handle references a value stored in an Arena[T]. Zero is the nil handle.
type Handle[T any] uint32

// IsValid reports whether h refers to an allocated slot.
func (h Handle[T]) IsValid() bool { return h != 0 }

// Arena stores values of a single type for the lifetime of its region.
// Values live in fixed-size chunks, so a pointer returned by Get stays valid
// across later allocations until the region is released.
type Arena[T any] struct {
	region    *Region
	chunkSize int
	chunks    [][]T
	n         int
}

const minChunk = 16

// NewArena creates an arena attached to r. capHint sizes the chunks and may
// be zero.
func NewArena[T any](r *Region, capHint uint) *Arena[T] {
	if r == nil {
		panic("arena: nil region")
	}
	r.mustLive()
	size := minChunk
	if capHint > minChunk {
		size = int(min(capHint, 1<<16))
	}
	a := &Arena[T]{region: r, chunkSize: size}
	r.arenas = append(r.arenas, a)
	return a
}

// Allocate stores value and returns its handle.
func (a *Arena[T]) Allocate(value T) Handle[T] {
	a.region.mustLive()
	last := len(a.chunks) - 1
	if last < 0 || len(a.chunks[last]) == cap(a.chunks[last]) {
		a.chunks = append(a.chunks, make([]T, 0, a.chunkSize))
		last++
	}
	a.chunks[last] = append(a.chunks[last], value)
	a.n++
	idx, err := safecast.Conv[uint32](a.n)
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	return Handle[T](idx)
}

// Get returns a pointer to the value behind h, or nil for an unknown handle.
// The pointer must not outlive the region.
func (a *Arena[T]) Get(h Handle[T]) *T {
	a.region.mustLive()
	if h == 0 || int(h) > a.n {
		return nil
	}
	i := int(h) - 1
	return &a.chunks[i/a.chunkSize][i%a.chunkSize]
}

// Len reports the number of allocated values.
func (a *Arena[T]) Len() int {
	if a.region.Released() {
		return 0
	}
	return a.n
}

// Each calls fn for every value in allocation order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle[T], *T) bool) {
	a.region.mustLive()
	h := Handle[T](0)
	for _, chunk := range a.chunks {
		for i := range chunk {
			h++
			if !fn(h, &chunk[i]) {
				return
			}
		}
	}
}

func (a *Arena[T]) release() {
	for _, chunk := range a.chunks {
		clear(chunk)
	}
	a.chunks = nil
	a.n = 0
}

func (a *Arena[T]) live() int { return a.n }
