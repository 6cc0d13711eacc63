package reflection

import "testing"

// bitBuffer is a minimal BitWriter/BitReader backed by a slice of values,
// each masked to the width it was packed with (the width itself is not
// stored), sufficient for round-trip testing Compress/Decompress
// without depending on any real wire collaborator.
type bitBuffer struct {
	chunks []uint64
	pos    int
}

func (b *bitBuffer) PackAndSkip(bits uint8, value uint64) {
	mask := uint64(1)<<uint(bits) - 1
	if bits == 64 {
		mask = ^uint64(0)
	}
	b.chunks = append(b.chunks, value&mask)
}

func (b *bitBuffer) UnpackAndSkip(bits uint8) uint64 {
	v := b.chunks[b.pos]
	b.pos++
	return v
}

func TestNativeTypeDefinitionCompressDecompressRoundTripsString(t *testing.T) {
	def := NativeTypeDefinitionFor[string]()

	if _, ok := def.CompressedSize(); ok {
		t.Fatal("string's CompressedSize must report dynamic (ok=false)")
	}

	buf := &bitBuffer{}
	def.Compress(buf, "hello")
	got := def.Decompress(buf)
	if got != "hello" {
		t.Fatalf("Decompress = %q, want %q", got, "hello")
	}
}

func TestNativeTypeDefinitionCompressDecompressRoundTripsEmptyString(t *testing.T) {
	def := NativeTypeDefinitionFor[string]()
	buf := &bitBuffer{}
	def.Compress(buf, "")
	got := def.Decompress(buf)
	if got != "" {
		t.Fatalf("Decompress = %q, want empty string", got)
	}
}

func TestNativeTypeDefinitionCompressDecompressRoundTripsBoolAndUint32(t *testing.T) {
	boolDef := NativeTypeDefinitionFor[bool]()
	buf := &bitBuffer{}
	boolDef.Compress(buf, true)
	if got := boolDef.Decompress(buf); got != true {
		t.Fatalf("bool Decompress = %v, want true", got)
	}

	u32Def := NativeTypeDefinitionFor[uint32]()
	buf = &bitBuffer{}
	u32Def.Compress(buf, uint32(42))
	if got := u32Def.Decompress(buf); got != uint32(42) {
		t.Fatalf("uint32 Decompress = %v, want 42", got)
	}
}

func TestVariantOfBoolUint32StringCompressDecompressRoundTrips(t *testing.T) {
	def := NewVariantType("Either", []DynamicPropertyInfo{
		{InternalName: "flag", TypeDefinition: NativeTypeDefinitionFor[bool]()},
		{InternalName: "count", TypeDefinition: NativeTypeDefinitionFor[uint32]()},
		{InternalName: "label", TypeDefinition: NativeTypeDefinitionFor[string]()},
	})

	var variant DynamicVariantValue
	def.SetVariantActive(&variant, 3, "a variant string")

	buf := &bitBuffer{}
	def.Compress(buf, variant)

	out := def.Decompress(buf).(DynamicVariantValue)
	if out.ActiveIndex != 3 {
		t.Fatalf("ActiveIndex = %d, want 3", out.ActiveIndex)
	}
	if out.Value != "a variant string" {
		t.Fatalf("Value = %v, want %q", out.Value, "a variant string")
	}
}
