package reflection

import "testing"

func TestLoadExtractArgumentInline(t *testing.T) {
	r := LoadArgument[int32](42)
	if got := ExtractArgument[int32](r); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

// oversizedPayload is larger than a single Register and forces the
// heap-boxed path in LoadArgument/ExtractArgument.
type oversizedPayload struct {
	values [4]uint64
}

func TestLoadExtractArgumentBoxed(t *testing.T) {
	payload := oversizedPayload{values: [4]uint64{1, 2, 3, 4}}
	r := LoadArgument[oversizedPayload](payload)
	got := ExtractArgument[oversizedPayload](r)
	if got != payload {
		t.Fatalf("got %+v, want %+v", got, payload)
	}
}

func TestRegistersSetGet(t *testing.T) {
	var regs Registers
	regs.Set(0, LoadArgument[int64](7))
	regs.Set(5, LoadArgument[int64](99))

	if got := ExtractArgument[int64](regs.Get(0)); got != 7 {
		t.Fatalf("slot 0: got %d, want 7", got)
	}
	if got := ExtractArgument[int64](regs.Get(5)); got != 99 {
		t.Fatalf("slot 5: got %d, want 99", got)
	}
}
