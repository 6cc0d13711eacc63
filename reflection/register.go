// Package reflection implements the engine's type-erased calling
// convention, dynamic function/delegate/event plumbing, and the
// process-wide registry that ties guids to registered types, functions
// and events.
package reflection

import "unsafe"

// RegisterCount is the number of argument registers in one calling frame.
const RegisterCount = 6

// ReturnRegisterCount is the number of registers a ReturnValue occupies.
const ReturnRegisterCount = 4

// Register is an opaque SIMD-sized calling-convention slot. A value that
// fits inline is copied byte-for-byte into it; a larger value is
// heap-boxed and the register instead holds a pointer to it.
type Register [16]byte

// Registers is the six-register calling frame passed to every type-erased
// invocation (component A).
type Registers [RegisterCount]Register

// ReturnValue is the four-register frame a type-erased call returns.
type ReturnValue [ReturnRegisterCount]Register

// LoadArgument boxes argument into a Register: inline for values that fit,
// heap-allocated (with the register holding the pointer) otherwise.
func LoadArgument[T any](argument T) Register {
	var r Register
	if unsafe.Sizeof(argument) <= unsafe.Sizeof(r) {
		*(*T)(unsafe.Pointer(&r)) = argument
	} else {
		boxed := new(T)
		*boxed = argument
		*(*unsafe.Pointer)(unsafe.Pointer(&r)) = unsafe.Pointer(boxed)
	}
	return r
}

// ExtractArgument reverses LoadArgument.
func ExtractArgument[T any](r Register) T {
	var zero T
	if unsafe.Sizeof(zero) <= unsafe.Sizeof(r) {
		return *(*T)(unsafe.Pointer(&r))
	}
	boxed := *(*unsafe.Pointer)(unsafe.Pointer(&r))
	return *(*T)(boxed)
}

// LoadDynamicArgument boxes an already-serialized byte view: inline when it
// fits a register, otherwise heap-copied with the register holding the
// pointer. Used when the caller only has an erased ByteView, not a typed
// Go value (e.g. forwarding a DynamicDelegate's captured user-data).
func LoadDynamicArgument(data []byte) Register {
	var r Register
	if len(data) <= len(r) {
		copy(r[:], data)
		return r
	}
	boxed := make([]byte, len(data))
	copy(boxed, data)
	*(*unsafe.Pointer)(unsafe.Pointer(&r)) = unsafe.Pointer(&boxed[0])
	return r
}

// ExtractArgumentIntoView copies the value held by r into target,
// dereferencing the boxed pointer if target is larger than one register.
func ExtractArgumentIntoView(r Register, target []byte) {
	if len(target) <= len(r) {
		copy(target, r[:len(target)])
		return
	}
	boxed := *(*unsafe.Pointer)(unsafe.Pointer(&r))
	src := unsafe.Slice((*byte)(boxed), len(target))
	copy(target, src)
}

// Set stores argument into register index. Panics if index is out of range.
func (r *Registers) Set(index int, v Register) {
	r[index] = v
}

// Get returns the register at index.
func (r Registers) Get(index int) Register {
	return r[index]
}
