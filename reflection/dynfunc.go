package reflection

import (
	"reflect"
	"unsafe"
)

// DynamicInvoker is the type-erased calling signature every DynamicFunction
// reduces to: six argument registers in, four return registers out.
type DynamicInvoker func(regs *Registers) ReturnValue

// DynamicFunction wraps a function pointer under the uniform register
// calling convention (component A/B). Equality is by underlying function
// identity, mirroring the original's pointer-equality contract.
type DynamicFunction struct {
	invoke DynamicInvoker
	// identity is the reflect-derived code pointer of the wrapped
	// function, used for comparison since raw Go funcs aren't comparable.
	identity uintptr
}

// Equal reports whether two DynamicFunctions wrap the same underlying code.
func (f DynamicFunction) Equal(other DynamicFunction) bool {
	return f.identity == other.identity
}

// IsValid reports whether f wraps a callable.
func (f DynamicFunction) IsValid() bool {
	return f.invoke != nil
}

// Invoke calls the wrapped function with the given register frame.
func (f DynamicFunction) Invoke(regs *Registers) ReturnValue {
	return f.invoke(regs)
}

// MakeDynamicFunction erases fn (any func value) behind the register
// calling convention. Arguments are extracted from R0..R5 in order using
// fn's own parameter types; the result (if any) is boxed into the return
// registers. Panics if fn is not a func or takes more than RegisterCount
// arguments — this mirrors §4.A's "misuse is undefined behavior by
// contract": the reflection layer above this is responsible for only
// issuing well-typed invocations.
func MakeDynamicFunction(fn interface{}) DynamicFunction {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	if fnType.Kind() != reflect.Func {
		panic("reflection: MakeDynamicFunction requires a function value")
	}
	numIn := fnType.NumIn()
	if numIn > RegisterCount {
		panic("reflection: function takes more arguments than available registers")
	}

	invoke := func(regs *Registers) ReturnValue {
		args := make([]reflect.Value, numIn)
		for i := 0; i < numIn; i++ {
			args[i] = extractReflectArgument(regs[i], fnType.In(i))
		}
		results := fnValue.Call(args)
		var ret ReturnValue
		for i, result := range results {
			if i >= ReturnRegisterCount {
				break
			}
			ret[i] = loadReflectArgument(result)
		}
		return ret
	}

	return DynamicFunction{invoke: invoke, identity: fnValue.Pointer()}
}

// extractReflectArgument unboxes a Register into an addressable
// reflect.Value of type t, following the same inline-vs-boxed-pointer rule
// as ExtractArgument.
func extractReflectArgument(r Register, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	size := t.Size()
	if size <= uintptr(len(r)) {
		copyBytesIntoValue(out, r[:size])
	} else {
		ptr := ExtractArgument[uintptr](r)
		copyBytesIntoValue(out, addrToBytes(ptr, size))
	}
	return out
}

// loadReflectArgument boxes v into a Register, heap-allocating and boxing
// a pointer when v does not fit inline.
func loadReflectArgument(v reflect.Value) Register {
	var r Register
	size := v.Type().Size()
	if size <= uintptr(len(r)) {
		tmp := reflect.New(v.Type()).Elem()
		tmp.Set(v)
		copyValueIntoBytes(r[:size], tmp)
		return r
	}
	boxed := reflect.New(v.Type())
	boxed.Elem().Set(v)
	return LoadArgument[uintptr](uintptr(boxed.Pointer()))
}

func copyBytesIntoValue(v reflect.Value, data []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(v.UnsafeAddr())), len(data))
	copy(dst, data)
}

func copyValueIntoBytes(dst []byte, v reflect.Value) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(v.UnsafeAddr())), len(dst))
	copy(dst, src)
}

func addrToBytes(addr uintptr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}
