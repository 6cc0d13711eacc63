package reflection

import "sync"

// DelegateIdentity is a dedicated typed identity key for a DynamicDelegate.
// The original C++ source bytewise-reinterpreted the delegate's user-data
// register as its own identity; per the rewrite's design note that trick is
// dropped in favor of an explicit (pointer, discriminator) pair so identity
// comparison never depends on a register's byte layout.
type DelegateIdentity struct {
	Pointer       uintptr
	Discriminator uint64
}

// DynamicDelegate bundles captured user-data with a type-erased callback.
type DynamicDelegate struct {
	UserData Register
	Callback DynamicFunction
	Identity DelegateIdentity
}

// NewDynamicDelegate builds a delegate bound to the given identity.
func NewDynamicDelegate(userData Register, callback DynamicFunction, identity DelegateIdentity) DynamicDelegate {
	return DynamicDelegate{UserData: userData, Callback: callback, Identity: identity}
}

// DynamicEvent is a multicast event: an ordered collection of delegates,
// deduplicated by identity unless explicitly told otherwise.
type DynamicEvent struct {
	mu        sync.RWMutex
	delegates []DynamicDelegate
}

// Emplace appends delegate, panicking if one with the same identity is
// already registered (component B: "must fail an assertion").
func (e *DynamicEvent) Emplace(delegate DynamicDelegate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.delegates {
		if existing.Identity == delegate.Identity {
			panic("reflection: duplicate delegate identity registered to DynamicEvent")
		}
	}
	e.delegates = append(e.delegates, delegate)
}

// EmplaceWithDuplicates appends delegate unconditionally.
func (e *DynamicEvent) EmplaceWithDuplicates(delegate DynamicDelegate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delegates = append(e.delegates, delegate)
}

// Remove removes the first delegate matching identity. Reports whether one
// was found.
func (e *DynamicEvent) Remove(identity DelegateIdentity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, d := range e.delegates {
		if d.Identity == identity {
			e.delegates = append(e.delegates[:i], e.delegates[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll removes every delegate matching identity, returning the count removed.
func (e *DynamicEvent) RemoveAll(identity DelegateIdentity) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.delegates[:0]
	removed := 0
	for _, d := range e.delegates {
		if d.Identity == identity {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	e.delegates = kept
	return removed
}

// Contains reports whether a delegate with identity is currently registered.
func (e *DynamicEvent) Contains(identity DelegateIdentity) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, d := range e.delegates {
		if d.Identity == identity {
			return true
		}
	}
	return false
}

// GetSize returns the number of registered delegates.
func (e *DynamicEvent) GetSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.delegates)
}

// Broadcast invokes every registered delegate in registration order,
// passing the delegate's own user-data in R0 and args in R1..R5.
//
// Resolves the open question left by the original source (copy-on-dispatch):
// the delegate list is snapshotted under the read lock before any callback
// runs, so a handler adding or removing delegates mid-broadcast never
// affects this broadcast's iteration.
func (e *DynamicEvent) Broadcast(args [RegisterCount - 1]Register) {
	snapshot := e.snapshot()
	for _, d := range snapshot {
		var regs Registers
		regs[0] = d.UserData
		copy(regs[1:], args[:])
		d.Callback.Invoke(&regs)
	}
}

// BroadcastTo invokes only the first delegate matching identity, returning
// whether one was found.
func (e *DynamicEvent) BroadcastTo(identity DelegateIdentity, args [RegisterCount - 1]Register) bool {
	snapshot := e.snapshot()
	for _, d := range snapshot {
		if d.Identity != identity {
			continue
		}
		var regs Registers
		regs[0] = d.UserData
		copy(regs[1:], args[:])
		d.Callback.Invoke(&regs)
		return true
	}
	return false
}

func (e *DynamicEvent) snapshot() []DynamicDelegate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]DynamicDelegate, len(e.delegates))
	copy(out, e.delegates)
	return out
}
