package reflection

import "testing"

func TestMakeDynamicFunctionRoundTrip(t *testing.T) {
	add := func(a, b int32) int32 { return a + b }
	fn := MakeDynamicFunction(add)
	if !fn.IsValid() {
		t.Fatal("expected valid function")
	}

	var regs Registers
	regs.Set(0, LoadArgument[int32](3))
	regs.Set(1, LoadArgument[int32](4))

	ret := fn.Invoke(&regs)
	if got := ExtractArgument[int32](ret[0]); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestMakeDynamicFunctionIdentity(t *testing.T) {
	add := func(a, b int32) int32 { return a + b }
	sub := func(a, b int32) int32 { return a - b }

	f1 := MakeDynamicFunction(add)
	f2 := MakeDynamicFunction(add)
	f3 := MakeDynamicFunction(sub)

	if !f1.Equal(f2) {
		t.Fatal("two wrappers of the same function should be equal")
	}
	if f1.Equal(f3) {
		t.Fatal("wrappers of different functions should not be equal")
	}
}

func TestMakeDynamicFunctionPanicsOnNonFunc(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-function argument")
		}
	}()
	MakeDynamicFunction(42)
}

func TestMakeDynamicFunctionLargeArgument(t *testing.T) {
	sumBig := func(p oversizedPayload) uint64 {
		var total uint64
		for _, v := range p.values {
			total += v
		}
		return total
	}
	fn := MakeDynamicFunction(sumBig)

	var regs Registers
	regs.Set(0, LoadArgument(oversizedPayload{values: [4]uint64{1, 2, 3, 4}}))

	ret := fn.Invoke(&regs)
	if got := ExtractArgument[uint64](ret[0]); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
}
