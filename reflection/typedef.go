package reflection

import (
	"reflect"
	"unsafe"
)

// TypeDefinition is the type-erased vtable described in §3/§4.C: lifecycle,
// comparison, serialization and compression operations for any value.
// The original C++ source dispatches through a single manager-function
// switch over an Operation enum; the rewrite note in §9 prefers a
// trait-object per TypeDefinition instead, which is exactly what this
// interface is — each concrete type gets its own implementation and the
// switch disappears into a direct interface call.
type TypeDefinition interface {
	Size() uintptr
	Alignment() uintptr
	Name() string
	IsTriviallyCopyable() bool

	// Compare reports whether a equals b under this type's notion of equality.
	Compare(a, b interface{}) bool

	New() interface{}
	Copy(v interface{}) interface{}
	// Move hands ownership of v's resources to the returned value. For
	// ordinary GC'd Go values this is identical to Copy; it exists so
	// types wrapping external resources (file handles, platform timer
	// state) can implement real move semantics.
	Move(v interface{}) interface{}
	// Destroy releases any resources v holds. A no-op for plain data.
	Destroy(v interface{})

	Serialize(w SerializationWriter, v interface{}) error
	Deserialize(r SerializationReader) (interface{}, error)

	// CompressedSize reports a fixed bit width for this type, or ok=false
	// if the compressed size is dynamic (depends on the value).
	CompressedSize() (bits int, ok bool)
	Compress(w BitWriter, v interface{})
	Decompress(r BitReader) interface{}
}

// StoredTypeDefinition extends TypeDefinition for values placed inside
// small-buffer-optimized containers. The capacity-aware "Stored" operations
// let the caller probe how much room is required without committing to a
// construction: insufficient capacity makes the call return the required
// size without constructing. No type in this package implements it;
// DynamicTypeDefinition and NativeTypeDefinition implement only
// TypeDefinition.
type StoredTypeDefinition interface {
	TypeDefinition

	// TryDefaultConstructStored attempts to default-construct into buf.
	// If cap(buf) is insufficient, it returns the required size and false.
	TryDefaultConstructStored(buf []byte) (requiredSize int, ok bool)
	TryCopyConstructStored(buf []byte, v interface{}) (requiredSize int, ok bool)
	TryMoveConstructStored(buf []byte, v interface{}) (requiredSize int, ok bool)
	DestroyStored(buf []byte)
	CompareStored(a, b []byte) bool
}

// NativeTypeDefinition is a generic TypeDefinition for any concrete Go
// type T, derived mechanically the way a template instantiation derives
// one manager function per native type in the original source. Each call
// to NativeTypeDefinitionFor allocates a new value, so two definitions for
// the same T are distinct pointers; this package defines no equality
// between TypeDefinitions.
type NativeTypeDefinition[T any] struct {
	name string
}

// NativeTypeDefinitionFor returns a new TypeDefinition for T on each call.
func NativeTypeDefinitionFor[T any]() *NativeTypeDefinition[T] {
	var zero T
	t := reflect.TypeOf(zero)
	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	return &NativeTypeDefinition[T]{name: name}
}

func (d *NativeTypeDefinition[T]) Size() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func (d *NativeTypeDefinition[T]) Alignment() uintptr {
	var zero T
	return unsafe.Alignof(zero)
}

func (d *NativeTypeDefinition[T]) Name() string { return d.name }

func (d *NativeTypeDefinition[T]) IsTriviallyCopyable() bool {
	// An approximation by kind: pointers, interfaces, maps, slices,
	// channels, funcs and strings report false; every other kind reports
	// true, including structs and arrays whatever their fields or elements
	// hold. Callers needing precision should supply a dedicated
	// TypeDefinition instead of the generic native one.
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.String:
		return false
	default:
		return true
	}
}

func (d *NativeTypeDefinition[T]) Compare(a, b interface{}) bool {
	av, aok := a.(T)
	bv, bok := b.(T)
	if !aok || !bok {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func (d *NativeTypeDefinition[T]) New() interface{} {
	var zero T
	return zero
}

func (d *NativeTypeDefinition[T]) Copy(v interface{}) interface{} {
	return v
}

func (d *NativeTypeDefinition[T]) Move(v interface{}) interface{} {
	return v
}

func (d *NativeTypeDefinition[T]) Destroy(interface{}) {}

func (d *NativeTypeDefinition[T]) Serialize(w SerializationWriter, v interface{}) error {
	return w.WriteValue(d.name, v)
}

func (d *NativeTypeDefinition[T]) Deserialize(r SerializationReader) (interface{}, error) {
	v, ok := r.ReadValue(d.name)
	if !ok {
		var zero T
		return zero, nil
	}
	return v, nil
}

// stringLengthBits/stringByteBits are the fixed chunk widths Compress uses
// to self-describe a string's length and then pack its bytes one at a time:
// BitWriter/BitReader only deal in fixed uint64 chunks, so a variable-length
// value has to frame its own length rather than relying on CompressedSize,
// which is exactly why a string kind reports ok=false there.
const (
	stringLengthBits = 32
	stringByteBits   = 8
)

func (d *NativeTypeDefinition[T]) isStringKind() bool {
	var zero T
	t := reflect.TypeOf(zero)
	return t != nil && t.Kind() == reflect.String
}

// CompressedSize reports a fixed bit width for every native kind except
// string, whose encoded length depends on the value (ok=false, per the
// TypeDefinition interface's documented dynamic-size case).
func (d *NativeTypeDefinition[T]) CompressedSize() (int, bool) {
	if d.isStringKind() {
		return 0, false
	}
	return int(d.Size()) * 8, true
}

func (d *NativeTypeDefinition[T]) Compress(w BitWriter, v interface{}) {
	if d.isStringKind() {
		s, _ := v.(string)
		w.PackAndSkip(stringLengthBits, uint64(len(s)))
		for i := 0; i < len(s); i++ {
			w.PackAndSkip(stringByteBits, uint64(s[i]))
		}
		return
	}

	bits, _ := d.CompressedSize()
	value := interfaceToUint64(v)
	for remaining := bits; remaining > 0; {
		chunk := uint8(remaining)
		if chunk > 64 {
			chunk = 64
		}
		w.PackAndSkip(chunk, value)
		remaining -= int(chunk)
	}
}

func (d *NativeTypeDefinition[T]) Decompress(r BitReader) interface{} {
	if d.isStringKind() {
		n := int(r.UnpackAndSkip(stringLengthBits))
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(r.UnpackAndSkip(stringByteBits))
		}
		return string(buf)
	}

	bits, _ := d.CompressedSize()
	var value uint64
	for remaining := bits; remaining > 0; {
		chunk := uint8(remaining)
		if chunk > 64 {
			chunk = 64
		}
		value = r.UnpackAndSkip(chunk)
		remaining -= int(chunk)
	}
	return d.uint64ToValue(value)
}

func interfaceToUint64(v interface{}) uint64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// uint64ToValue converts a decompressed bit pattern back into a properly
// typed T rather than a bare uint64, so a caller type-asserting the
// Decompress result against T (e.g. a variant's active field) gets what it
// expects.
func (d *NativeTypeDefinition[T]) uint64ToValue(value uint64) interface{} {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return zero
	}
	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		rv.SetBool(value != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(int64(value))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv.SetUint(value)
	default:
		return zero
	}
	return rv.Interface()
}
