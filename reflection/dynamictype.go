package reflection

import "math/bits"

// DynamicTypeKind selects whether a DynamicTypeDefinition lays its fields
// out as a Structure (all fields live simultaneously) or a Variant (at
// most one field lives at a time), per §3.
type DynamicTypeKind uint8

const (
	DynamicTypeStructure DynamicTypeKind = iota
	DynamicTypeVariant
)

// DynamicStructureValue is the runtime representation of an instance of a
// Structure DynamicTypeDefinition: every field is present simultaneously,
// keyed by its InternalName.
type DynamicStructureValue map[string]interface{}

// DynamicVariantValue is the runtime representation of an instance of a
// Variant DynamicTypeDefinition. ActiveIndex 0 means "empty"; ActiveIndex
// N selects fields[N-1] (§3: "Active-index 0 means none; values 1..N
// select field N−1").
type DynamicVariantValue struct {
	ActiveIndex uint32
	Value       interface{}
}

// DynamicTypeDefinition implements TypeDefinition for a runtime-declared
// aggregate or sum type whose layout is computed from its field list at
// construction time (component E). It does not implement the capacity-aware
// operations of StoredTypeDefinition.
type DynamicTypeDefinition struct {
	kind   DynamicTypeKind
	name   string
	fields []DynamicPropertyInfo

	size              uintptr
	alignment         uintptr
	activeIndexBytes  uintptr // Variant only: bytes used by the active-index prefix
}

// NewStructureType computes sequential layout for fields respecting each
// field's alignment (§4.E): m_alignment is the max field alignment; each
// field's offset advances to the next multiple of its own alignment, and
// OffsetToNextProperty is filled in as the gap to the next field (0 for
// the last field, used as a sentinel).
func NewStructureType(name string, fields []DynamicPropertyInfo) *DynamicTypeDefinition {
	alignment := uintptr(1)
	for _, f := range fields {
		if a := f.TypeDefinition.Alignment(); a > alignment {
			alignment = a
		}
	}

	offset := uintptr(0)
	laidOut := make([]DynamicPropertyInfo, len(fields))
	for i, f := range fields {
		fieldAlign := f.TypeDefinition.Alignment()
		if fieldAlign == 0 {
			fieldAlign = 1
		}
		offset = alignUp(offset, fieldAlign)
		f.OwnerByteOffset = offset
		laidOut[i] = f
		offset += f.TypeDefinition.Size()
	}
	for i := range laidOut {
		if i+1 < len(laidOut) {
			laidOut[i].OffsetToNextProperty = laidOut[i+1].OwnerByteOffset - laidOut[i].OwnerByteOffset
		} else {
			laidOut[i].OffsetToNextProperty = 0
		}
	}

	return &DynamicTypeDefinition{
		kind:      DynamicTypeStructure,
		name:      name,
		fields:    laidOut,
		size:      offset,
		alignment: alignment,
	}
}

// NewVariantType lays out the active-index prefix (sized to the smallest
// unsigned width able to index len(fields)+1 states, padded to the
// variant's alignment) followed by storage sized to the largest field.
func NewVariantType(name string, fields []DynamicPropertyInfo) *DynamicTypeDefinition {
	alignment := uintptr(1)
	storageSize := uintptr(0)
	for _, f := range fields {
		if a := f.TypeDefinition.Alignment(); a > alignment {
			alignment = a
		}
		if s := f.TypeDefinition.Size(); s > storageSize {
			storageSize = s
		}
	}

	indexBytes := uintptr(1)
	switch {
	case len(fields) >= 1<<24:
		indexBytes = 4
	case len(fields) >= 1<<16:
		indexBytes = 4
	case len(fields) >= 1<<8:
		indexBytes = 2
	}
	indexBytes = alignUp(indexBytes, alignment)

	return &DynamicTypeDefinition{
		kind:             DynamicTypeVariant,
		name:             name,
		fields:           fields,
		size:             indexBytes + storageSize,
		alignment:        alignment,
		activeIndexBytes: indexBytes,
	}
}

func alignUp(offset, alignment uintptr) uintptr {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

func (d *DynamicTypeDefinition) Size() uintptr      { return d.size }
func (d *DynamicTypeDefinition) Alignment() uintptr { return d.alignment }
func (d *DynamicTypeDefinition) Name() string       { return d.name }

func (d *DynamicTypeDefinition) IsTriviallyCopyable() bool {
	for _, f := range d.fields {
		if !f.TypeDefinition.IsTriviallyCopyable() {
			return false
		}
	}
	return true
}

func (d *DynamicTypeDefinition) New() interface{} {
	switch d.kind {
	case DynamicTypeStructure:
		v := make(DynamicStructureValue, len(d.fields))
		for _, f := range d.fields {
			v[f.InternalName] = f.TypeDefinition.New()
		}
		return v
	default:
		return DynamicVariantValue{}
	}
}

func (d *DynamicTypeDefinition) Copy(v interface{}) interface{} {
	switch d.kind {
	case DynamicTypeStructure:
		src := v.(DynamicStructureValue)
		out := make(DynamicStructureValue, len(src))
		for _, f := range d.fields {
			out[f.InternalName] = f.TypeDefinition.Copy(src[f.InternalName])
		}
		return out
	default:
		src := v.(DynamicVariantValue)
		if src.ActiveIndex == 0 {
			return DynamicVariantValue{}
		}
		field := d.fields[src.ActiveIndex-1]
		return DynamicVariantValue{ActiveIndex: src.ActiveIndex, Value: field.TypeDefinition.Copy(src.Value)}
	}
}

func (d *DynamicTypeDefinition) Move(v interface{}) interface{} { return d.Copy(v) }

func (d *DynamicTypeDefinition) Destroy(v interface{}) {
	switch d.kind {
	case DynamicTypeStructure:
		s := v.(DynamicStructureValue)
		for _, f := range d.fields {
			f.TypeDefinition.Destroy(s[f.InternalName])
		}
	default:
		variant := v.(DynamicVariantValue)
		if variant.ActiveIndex != 0 {
			d.fields[variant.ActiveIndex-1].TypeDefinition.Destroy(variant.Value)
		}
	}
}

// Compare implements AreEqual (§4.E): structures compare field-by-field;
// variants require identical active-index and, if non-zero, field equality.
func (d *DynamicTypeDefinition) Compare(a, b interface{}) bool {
	switch d.kind {
	case DynamicTypeStructure:
		as, bs := a.(DynamicStructureValue), b.(DynamicStructureValue)
		for _, f := range d.fields {
			if !f.TypeDefinition.Compare(as[f.InternalName], bs[f.InternalName]) {
				return false
			}
		}
		return true
	default:
		av, bv := a.(DynamicVariantValue), b.(DynamicVariantValue)
		if av.ActiveIndex != bv.ActiveIndex {
			return false
		}
		if av.ActiveIndex == 0 {
			return true
		}
		return d.fields[av.ActiveIndex-1].TypeDefinition.Compare(av.Value, bv.Value)
	}
}

// SetVariantActive assigns a new active field, destroying whatever the
// variant previously held first (§4.E: "must destroy the previously-held
// field in the same storage before constructing the new one").
func (d *DynamicTypeDefinition) SetVariantActive(current *DynamicVariantValue, index uint32, value interface{}) {
	if current.ActiveIndex != 0 {
		d.fields[current.ActiveIndex-1].TypeDefinition.Destroy(current.Value)
	}
	current.ActiveIndex = index
	current.Value = value
}

func (d *DynamicTypeDefinition) Serialize(w SerializationWriter, v interface{}) error {
	switch d.kind {
	case DynamicTypeStructure:
		s := v.(DynamicStructureValue)
		for _, f := range d.fields {
			scope, done := w.Scope(f.InternalName)
			if err := f.TypeDefinition.Serialize(scope, s[f.InternalName]); err != nil {
				done()
				return err
			}
			done()
		}
		return nil
	default:
		variant := v.(DynamicVariantValue)
		if err := w.WriteValue("activeIndex", variant.ActiveIndex); err != nil {
			return err
		}
		if variant.ActiveIndex == 0 {
			return nil
		}
		field := d.fields[variant.ActiveIndex-1]
		scope, done := w.Scope(field.InternalName)
		defer done()
		return field.TypeDefinition.Serialize(scope, variant.Value)
	}
}

func (d *DynamicTypeDefinition) Deserialize(r SerializationReader) (interface{}, error) {
	switch d.kind {
	case DynamicTypeStructure:
		out := make(DynamicStructureValue, len(d.fields))
		for _, f := range d.fields {
			scope, ok := r.Scope(f.InternalName)
			if !ok {
				out[f.InternalName] = f.TypeDefinition.New()
				continue
			}
			v, err := f.TypeDefinition.Deserialize(scope)
			if err != nil {
				return nil, err
			}
			out[f.InternalName] = v
		}
		return out, nil
	default:
		raw, ok := r.ReadValue("activeIndex")
		if !ok {
			return DynamicVariantValue{}, nil
		}
		activeIndex, _ := raw.(uint32)
		if activeIndex == 0 {
			return DynamicVariantValue{}, nil
		}
		field := d.fields[activeIndex-1]
		scope, ok := r.Scope(field.InternalName)
		if !ok {
			return DynamicVariantValue{ActiveIndex: activeIndex}, nil
		}
		v, err := field.TypeDefinition.Deserialize(scope)
		if err != nil {
			return nil, err
		}
		return DynamicVariantValue{ActiveIndex: activeIndex, Value: v}, nil
	}
}

// activeIndexBits returns ceil(log2(N+1)) for a variant of N fields.
func activeIndexBits(fieldCount int) int {
	if fieldCount == 0 {
		return 0
	}
	return bits.Len(uint(fieldCount))
}

func (d *DynamicTypeDefinition) CompressedSize() (int, bool) {
	switch d.kind {
	case DynamicTypeStructure:
		total := 0
		for _, f := range d.fields {
			fieldBits, ok := f.TypeDefinition.CompressedSize()
			if !ok {
				return 0, false
			}
			total += fieldBits
		}
		return total, true
	default:
		maxFieldBits := 0
		for _, f := range d.fields {
			fieldBits, ok := f.TypeDefinition.CompressedSize()
			if !ok {
				return 0, false
			}
			if fieldBits > maxFieldBits {
				maxFieldBits = fieldBits
			}
		}
		return activeIndexBits(len(d.fields)) + maxFieldBits, true
	}
}

func (d *DynamicTypeDefinition) Compress(w BitWriter, v interface{}) {
	switch d.kind {
	case DynamicTypeStructure:
		s := v.(DynamicStructureValue)
		for _, f := range d.fields {
			f.TypeDefinition.Compress(w, s[f.InternalName])
		}
	default:
		variant := v.(DynamicVariantValue)
		w.PackAndSkip(uint8(activeIndexBits(len(d.fields))), uint64(variant.ActiveIndex))
		if variant.ActiveIndex != 0 {
			d.fields[variant.ActiveIndex-1].TypeDefinition.Compress(w, variant.Value)
		}
	}
}

func (d *DynamicTypeDefinition) Decompress(r BitReader) interface{} {
	switch d.kind {
	case DynamicTypeStructure:
		out := make(DynamicStructureValue, len(d.fields))
		for _, f := range d.fields {
			out[f.InternalName] = f.TypeDefinition.Decompress(r)
		}
		return out
	default:
		activeIndex := uint32(r.UnpackAndSkip(uint8(activeIndexBits(len(d.fields)))))
		if activeIndex == 0 {
			return DynamicVariantValue{}
		}
		value := d.fields[activeIndex-1].TypeDefinition.Decompress(r)
		return DynamicVariantValue{ActiveIndex: activeIndex, Value: value}
	}
}
