package reflection

import (
	"testing"

	"github.com/nginetech/enginekit/common"
)

// newTestUUID builds a deterministic, distinct UUID for test fixtures
// without pulling in the randomness of common.NewUUID.
func newTestUUID(t *testing.T, n uint32) common.UUID {
	t.Helper()
	return common.UUID{D1: n}
}

func TestRegistryFunctionIdentifierRoundTrip(t *testing.T) {
	r := NewRegistry()
	guid := newTestUUID(t, 1)
	fn := MakeDynamicFunction(func() {})

	id := r.RegisterFunction(guid, newTestUUID(t, 2), fn, 0)

	gotGuid, ok := r.FindFunctionGuid(id)
	if !ok || gotGuid != guid {
		t.Fatalf("FindFunctionGuid(%v) = %v, %v; want %v, true", id, gotGuid, ok, guid)
	}

	gotID, ok := r.FindFunctionIdentifier(guid)
	if !ok || gotID != id {
		t.Fatalf("FindFunctionIdentifier(%v) = %v, %v; want %v, true", guid, gotID, ok, id)
	}
}

func TestRegistryStaleIdentifierRejectedAfterDeregister(t *testing.T) {
	r := NewRegistry()
	guid := newTestUUID(t, 1)
	fn := MakeDynamicFunction(func() {})

	staleID := r.RegisterFunction(guid, newTestUUID(t, 2), fn, 0)
	r.DeregisterFunction(guid)

	if _, ok := r.FindFunctionGuid(staleID); ok {
		t.Fatal("expected stale identifier to be rejected after deregistration")
	}

	// Reusing the freed slot for a new guid must bump the generation, so
	// the old identifier still does not alias the new occupant.
	otherGuid := newTestUUID(t, 3)
	newID := r.RegisterFunction(otherGuid, newTestUUID(t, 4), fn, 0)

	if newID == staleID {
		t.Fatal("reused slot must not reuse the old identifier verbatim")
	}
	if gotGuid, ok := r.FindFunctionGuid(newID); !ok || gotGuid != otherGuid {
		t.Fatalf("FindFunctionGuid(newID) = %v, %v; want %v, true", gotGuid, ok, otherGuid)
	}
	if _, ok := r.FindFunctionGuid(staleID); ok {
		t.Fatal("stale identifier must still be rejected after slot reuse")
	}
}

func TestRegistryRegisterTypePanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	guid := newTestUUID(t, 1)
	def := NativeTypeDefinitionFor[int32]()
	iface := NewTypeInterface(guid, "int32", def)

	r.RegisterType(iface)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering a duplicate type guid")
		}
	}()
	r.RegisterType(iface)
}

func TestRegistryFindTypeMissReturnsError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.FindType(newTestUUID(t, 99)); err == nil {
		t.Fatal("expected error for unregistered guid")
	}
}

func TestRegistryFindTypeByName(t *testing.T) {
	r := NewRegistry()
	guid := newTestUUID(t, 2)
	def := NativeTypeDefinitionFor[int32]()
	iface := NewTypeInterface(guid, "int32", def)
	r.RegisterType(iface)

	found, err := r.FindTypeByName("int32")
	if err != nil {
		t.Fatalf("FindTypeByName: %v", err)
	}
	if found.Guid != guid {
		t.Fatalf("FindTypeByName returned guid %v, want %v", found.Guid, guid)
	}

	r.DeregisterType(guid)
	if _, err := r.FindTypeByName("int32"); err == nil {
		t.Fatal("expected error after deregistering the type")
	}
}
