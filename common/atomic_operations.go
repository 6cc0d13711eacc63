package common

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

type Atomic[T any] interface {
	Store(x T)
	Load() T
	CompareAndSwap(old T, new T) (swapped bool)
}

type AtomicNumeric[T constraints.Integer] interface {
	Atomic[T]
	Add(n T) T
	And(n T) T
	Or(n T) T
}

// AtomicNumericValue is a generic Atomic/AtomicNumeric implementation for
// any integer-width type (enum ordinals, bitmasks, counters), wrapping a
// single atomic.Uint64 word the way sync/atomic's own concrete types each
// wrap one machine word.
type AtomicNumericValue[T constraints.Integer] struct {
	word atomic.Uint64
}

func (a *AtomicNumericValue[T]) Store(x T) { a.word.Store(uint64(x)) }
func (a *AtomicNumericValue[T]) Load() T   { return T(a.word.Load()) }
func (a *AtomicNumericValue[T]) CompareAndSwap(old, new T) bool {
	return a.word.CompareAndSwap(uint64(old), uint64(new))
}
func (a *AtomicNumericValue[T]) Add(n T) T { return T(a.word.Add(uint64(n))) }
func (a *AtomicNumericValue[T]) And(n T) T { return T(a.word.And(uint64(n))) }
func (a *AtomicNumericValue[T]) Or(n T) T  { return T(a.word.Or(uint64(n))) }

// AtomicMorph retries morph against a's current value under CAS until it
// wins, returning morph's second result from the winning attempt. Mirrors
// the compare-exchange retry loop JobManager.h uses for StealIdleThreads.
func AtomicMorph[T any, R any](a Atomic[T], morph func(T) (T, R)) R {
	for {
		old := a.Load()
		newVal, result := morph(old)
		if a.CompareAndSwap(old, newVal) {
			return result
		}
	}
}

func AtomicSubtract[T constraints.Integer](left AtomicNumeric[T], right T) T {
	return AtomicMorph[T, T](left, func(startVal T) (val T, res T) {
		out := startVal - right
		return out, out
	})
}
