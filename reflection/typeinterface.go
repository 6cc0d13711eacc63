package reflection

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"

	"github.com/nginetech/enginekit/common"
)

// PropertyFlags are per-DynamicPropertyInfo bits. Rendered via the real
// upstream enum.EnumHelper (as opposed to the engine's own EnumHelper
// fork used elsewhere in this module for JobStateFlags-style flags), so
// both generations of the same reflection-over-methods idiom get exercised.
type PropertyFlags uint32

var EPropertyFlags = PropertyFlags(0).None()

func (PropertyFlags) None() PropertyFlags      { return PropertyFlags(0) }
func (PropertyFlags) ReadOnly() PropertyFlags  { return PropertyFlags(1 << 0) }
func (PropertyFlags) Transient() PropertyFlags { return PropertyFlags(1 << 1) }
func (PropertyFlags) Hidden() PropertyFlags    { return PropertyFlags(1 << 2) }
// Sensitive marks a property whose value should never reach a log line
// verbatim; see common.LogSanitizer.
func (PropertyFlags) Sensitive() PropertyFlags { return PropertyFlags(1 << 3) }

func (f PropertyFlags) String() string {
	return enum.EnumHelper{}.StringIntegerFlags(uint64(f), reflect.TypeOf(f), 10, func(v interface{}) uint64 {
		return uint64(v.(PropertyFlags))
	})
}

// DynamicPropertyInfo describes one reflected field of a TypeInterface (§3).
type DynamicPropertyInfo struct {
	Guid                 common.UUID
	DisplayName          string
	InternalName         string
	Category             string
	Flags                PropertyFlags
	TypeGuid             common.UUID
	TypeDefinition       TypeDefinition
	OwnerByteOffset      uintptr
	OffsetToNextProperty uintptr
}

// TypeFlags are per-TypeInterface bits.
type TypeFlags uint32

func (TypeFlags) None() TypeFlags { return TypeFlags(0) }

// TypeInterface describes one registered type: its erased vtable plus the
// reflected properties/functions/events it exposes (§3).
type TypeInterface struct {
	Guid           common.UUID
	Name           string
	Description    string
	Flags          TypeFlags
	TypeDefinition TypeDefinition
	Parent         *TypeInterface

	properties []DynamicPropertyInfo
	functions  []common.UUID
	events     []common.UUID
}

// NewTypeInterface constructs a TypeInterface with no registered members yet.
func NewTypeInterface(guid common.UUID, name string, def TypeDefinition) *TypeInterface {
	return &TypeInterface{Guid: guid, Name: name, TypeDefinition: def}
}

// AddProperty appends a reflected property, computing OffsetToNextProperty
// on the previously-last property the way §4.E's layout algorithm expects:
// the last property's offset-to-next stays 0 as a sentinel until another
// property is appended after it.
func (t *TypeInterface) AddProperty(p DynamicPropertyInfo) {
	if n := len(t.properties); n > 0 {
		t.properties[n-1].OffsetToNextProperty = p.OwnerByteOffset - t.properties[n-1].OwnerByteOffset
	}
	t.properties = append(t.properties, p)
}

// IterateProperties calls fn for each property in declaration order,
// stopping early if fn returns false.
func (t *TypeInterface) IterateProperties(fn func(DynamicPropertyInfo) bool) {
	for _, p := range t.properties {
		if !fn(p) {
			return
		}
	}
}

func (t *TypeInterface) AddFunction(guid common.UUID) { t.functions = append(t.functions, guid) }
func (t *TypeInterface) AddEvent(guid common.UUID)    { t.events = append(t.events, guid) }

func (t *TypeInterface) IterateFunctions(fn func(common.UUID) bool) {
	for _, g := range t.functions {
		if !fn(g) {
			return
		}
	}
}

func (t *TypeInterface) IterateEvents(fn func(common.UUID) bool) {
	for _, g := range t.events {
		if !fn(g) {
			return
		}
	}
}
