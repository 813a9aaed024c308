// Package frame_ring owns N parallel copies of per-frame resources and hands them out in turn,
// waiting on a slot's fence before the slot is reused.
package frame_ring

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
)

// DefaultFrames is the number of frames kept in flight.
const DefaultFrames = 3

// Ring cycles through N slots of per-frame resources of type T. Acquire is the only blocking
// point: it waits for the GPU to finish the previous submission that used the slot, which bounds
// the CPU lead to N-1 frames.
type Ring[T any] struct {
	mu     *sync.Mutex
	values []T
	fences func(slot int) renderer.Fence
	next   int
	frame  uint64
}

// New creates a Ring of n slots.
//
// Parameters:
//   - n: the number of slots, at least 1
//   - fences: returns the fence guarding a slot, typically renderer.Renderer.Fence
//   - init: creates the resources of one slot
//   - release: frees the slots already created when init fails, may be nil
//
// Returns:
//   - *Ring[T]: the ring
//   - error: the first error returned by init
func New[T any](n int, fences func(slot int) renderer.Fence, init func(slot int) (T, error), release func(T)) (*Ring[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("frame ring: invalid slot count %d", n)
	}
	r := &Ring[T]{
		mu:     &sync.Mutex{},
		values: make([]T, n),
		fences: fences,
	}
	for i := range r.values {
		v, err := init(i)
		if err != nil {
			if release != nil {
				for _, created := range r.values[:i] {
					release(created)
				}
			}
			return nil, fmt.Errorf("frame ring: init slot %d: %w", i, err)
		}
		r.values[i] = v
	}
	return r, nil
}

// Acquire advances to the next slot and waits until its previous submission completed.
//
// Returns:
//   - int: the slot index
//   - T: the resources of the slot
//   - error: the fence error, e.g. renderer.ErrDeviceLost. The ring does not advance on error.
func (r *Ring[T]) Acquire() (int, T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.next
	if f := r.fences(slot); f != nil {
		if err := f.Wait(); err != nil {
			var zero T
			return slot, zero, fmt.Errorf("frame ring: wait slot %d: %w", slot, err)
		}
	}
	r.next = (slot + 1) % len(r.values)
	r.frame++
	return slot, r.values[slot], nil
}

// Busy reports whether the slot's previous submission is still running.
func (r *Ring[T]) Busy(slot int) bool {
	f := r.fences(slot)
	return f != nil && !f.Signaled()
}

// Next returns the slot the next Acquire will hand out.
func (r *Ring[T]) Next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Frame returns the number of successful Acquire calls.
func (r *Ring[T]) Frame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Len returns the number of slots.
func (r *Ring[T]) Len() int {
	return len(r.values)
}

// Each calls fn for every slot in order, e.g. to release or rebuild per-slot resources.
// It stops at the first error.
func (r *Ring[T]) Each(fn func(slot int, v T) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.values {
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

// Reset rewinds the ring to slot 0 without touching the slot values. Used after a device rebuild
// when every fence has been discarded.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
}
