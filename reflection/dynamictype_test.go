package reflection

import "testing"

func int32Property(name string) DynamicPropertyInfo {
	return DynamicPropertyInfo{InternalName: name, TypeDefinition: NativeTypeDefinitionFor[int32]()}
}

func byteProperty(name string) DynamicPropertyInfo {
	return DynamicPropertyInfo{InternalName: name, TypeDefinition: NativeTypeDefinitionFor[uint8]()}
}

func TestStructureLayoutAlignsFields(t *testing.T) {
	def := NewStructureType("TestStruct", []DynamicPropertyInfo{
		byteProperty("flag"),
		int32Property("value"),
	})

	// "flag" (1 byte) forces padding up to int32's 4-byte alignment before "value".
	if def.Alignment() != 4 {
		t.Fatalf("alignment = %d, want 4", def.Alignment())
	}
	if def.fields[0].OwnerByteOffset != 0 {
		t.Fatalf("flag offset = %d, want 0", def.fields[0].OwnerByteOffset)
	}
	if def.fields[1].OwnerByteOffset != 4 {
		t.Fatalf("value offset = %d, want 4", def.fields[1].OwnerByteOffset)
	}
	if def.fields[0].OffsetToNextProperty != 4 {
		t.Fatalf("flag OffsetToNextProperty = %d, want 4", def.fields[0].OffsetToNextProperty)
	}
	if def.fields[1].OffsetToNextProperty != 0 {
		t.Fatalf("last field OffsetToNextProperty = %d, want 0 sentinel", def.fields[1].OffsetToNextProperty)
	}
	if def.Size() != 8 {
		t.Fatalf("size = %d, want 8", def.Size())
	}
}

func TestStructureValueLifecycleAndEquality(t *testing.T) {
	def := NewStructureType("Point", []DynamicPropertyInfo{
		int32Property("x"),
		int32Property("y"),
	})

	a := def.New().(DynamicStructureValue)
	a["x"] = int32(1)
	a["y"] = int32(2)

	b := def.Copy(a).(DynamicStructureValue)
	if !def.Compare(a, b) {
		t.Fatal("copy must compare equal to original")
	}

	b["y"] = int32(3)
	if def.Compare(a, b) {
		t.Fatal("values differing in one field must not compare equal")
	}
}

func TestVariantActiveIndexSwitchDestroysPrevious(t *testing.T) {
	destroyed := 0
	tracking := &trackingTypeDefinition{NativeTypeDefinition: NativeTypeDefinitionFor[int32](), onDestroy: func() { destroyed++ }}

	def := NewVariantType("Either", []DynamicPropertyInfo{
		{InternalName: "a", TypeDefinition: tracking},
		{InternalName: "b", TypeDefinition: tracking},
	})

	variant := def.New().(DynamicVariantValue)
	if variant.ActiveIndex != 0 {
		t.Fatal("a fresh variant must be empty (active index 0)")
	}

	def.SetVariantActive(&variant, 1, int32(10))
	if variant.ActiveIndex != 1 || variant.Value.(int32) != 10 {
		t.Fatalf("got %+v, want active index 1 holding 10", variant)
	}

	def.SetVariantActive(&variant, 2, int32(20))
	if destroyed != 1 {
		t.Fatalf("switching active field must destroy the previous one exactly once, got %d", destroyed)
	}
	if variant.ActiveIndex != 2 || variant.Value.(int32) != 20 {
		t.Fatalf("got %+v, want active index 2 holding 20", variant)
	}
}

func TestVariantCompareRequiresSameActiveIndex(t *testing.T) {
	def := NewVariantType("Either", []DynamicPropertyInfo{
		int32Property("a"),
		int32Property("b"),
	})

	var x, y DynamicVariantValue
	def.SetVariantActive(&x, 1, int32(5))
	def.SetVariantActive(&y, 2, int32(5))

	if def.Compare(x, y) {
		t.Fatal("variants active on different fields must not compare equal even with equal payload")
	}

	var emptyA, emptyB DynamicVariantValue
	if !def.Compare(emptyA, emptyB) {
		t.Fatal("two empty variants must compare equal")
	}
}

// trackingTypeDefinition wraps NativeTypeDefinition to observe Destroy calls.
type trackingTypeDefinition struct {
	*NativeTypeDefinition[int32]
	onDestroy func()
}

func (t *trackingTypeDefinition) Destroy(v interface{}) {
	t.onDestroy()
}
