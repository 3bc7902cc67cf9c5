// Package arena provides a fixed-capacity circular store of slots.
//
// Slots are handed out in strict rotation. Once the cursor has wrapped, the
// next slot to be handed out always holds the oldest value still in use, and
// its owner is asked to give it up before the slot is reused.
package arena

import "iter"

type slot[T any] struct {
	val  T
	used bool
}

// Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	next  int
	full  bool
	live  int
}

// New creates an arena with room for capacity values. It panics if
// capacity is not positive.
func New[T any](capacity int) *Arena[T] {
	if capacity <= 0 {
		panic("arena: capacity must be positive")
	}
	return &Arena[T]{slots: make([]slot[T], capacity)}
}

// Cap returns the number of slots.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Len returns the number of used slots.
func (a *Arena[T]) Len() int { return a.live }

// Full reports whether the cursor has wrapped at least once.
func (a *Arena[T]) Full() bool { return a.full }

// Reserve hands out the slot under the cursor and advances it. If the slot
// is still in use, evict is called with its index first; the slot is zeroed
// after evict returns.
func (a *Arena[T]) Reserve(evict func(slot int)) int {
	i := a.next
	if a.slots[i].used {
		if evict != nil {
			evict(i)
		}
		a.Release(i)
	}

	a.slots[i].used = true
	a.live++

	a.next++
	if a.next == len(a.slots) {
		a.next = 0
		a.full = true
	}
	return i
}

// At returns a pointer to the value held in slot i.
func (a *Arena[T]) At(i int) *T {
	return &a.slots[i].val
}

// Used reports whether slot i currently holds a value.
func (a *Arena[T]) Used(i int) bool {
	return a.slots[i].used
}

// Release frees slot i without moving the cursor. The slot keeps its
// position in the rotation.
func (a *Arena[T]) Release(i int) {
	if !a.slots[i].used {
		return
	}
	a.slots[i] = slot[T]{}
	a.live--
}

// Order yields the used slots from oldest to newest.
func (a *Arena[T]) Order() iter.Seq[int] {
	return func(yield func(int) bool) {
		if a.full {
			for i := a.next; i < len(a.slots); i++ {
				if a.slots[i].used && !yield(i) {
					return
				}
			}
		}
		for i := 0; i < a.next; i++ {
			if a.slots[i].used && !yield(i) {
				return
			}
		}
	}
}
