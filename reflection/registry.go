package reflection

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/nginetech/enginekit/common"
)

// IterationResult lets a Registry iteration callback stop early.
type IterationResult uint8

var EIterationResult = IterationResult(0).Continue()

func (IterationResult) Continue() IterationResult { return IterationResult(0) }
func (IterationResult) Break() IterationResult    { return IterationResult(1) }

// FunctionIdentifier is a stable, salted handle to a registered function.
// The low 32 bits index a dense reverse-lookup slice; the high 32 bits are
// a generation salt that changes every time the slot is reused, so a
// stale identifier from before a deregistration never aliases the new
// occupant of its slot (§4.D: "stale identifiers refer to a distinct
// generation and reject lookups").
type FunctionIdentifier uint64

func makeFunctionIdentifier(index uint32, generation uint32) FunctionIdentifier {
	return FunctionIdentifier(uint64(generation)<<32 | uint64(index))
}

func (id FunctionIdentifier) index() uint32      { return uint32(id) }
func (id FunctionIdentifier) generation() uint32 { return uint32(id >> 32) }

// FunctionData is what the Registry stores per registered dynamic function.
type FunctionData struct {
	Function    DynamicFunction
	Flags       uint32
	OwningType  common.UUID
	Identifier  FunctionIdentifier
}

// FunctionInfo/EventInfo describe process-global (non-type-owned) functions
// and events, as distinct from FunctionData entries that belong to a type.
type FunctionInfo struct {
	Guid     common.UUID
	Name     string
	Function DynamicFunction
}

type EventInfo struct {
	Guid  common.UUID
	Name  string
	Event *DynamicEvent
}

type identifierSlot struct {
	guid       common.UUID
	generation uint32
	occupied   bool
}

// Registry is the process-wide map described in §3/§4.D: guid ↔
// type/function/event, plus the salted FunctionIdentifier allocator.
// There is exactly one Registry per process (see Global below); a
// constructible type exists mainly to make tests hermetic.
type Registry struct {
	mu sync.RWMutex

	types         map[common.UUID]*TypeInterface
	typeDefs      map[common.UUID]TypeDefinition
	functions     map[common.UUID]FunctionData
	functionInfos map[common.UUID]*FunctionInfo
	eventInfos    map[common.UUID]*EventInfo

	// identifierByGuid lets RegisterFunction return the existing identifier
	// when a guid that is still registered is registered again.
	// DeregisterFunction drops the entry, so registering the guid after
	// that allocates a fresh identifier.
	identifierByGuid map[common.UUID]FunctionIdentifier
	identifierSlots  []identifierSlot
	freeSlots        []uint32

	// nameToGuid is the name -> guid side index for FindTypeByName. It's
	// kept as a plain string map (common.SyncMap) rather than folded into
	// types, since a lookup by display name never needs the RWMutex
	// protecting the rest of the Registry's maps to be held simultaneously.
	nameToGuid *common.SyncMap
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:            make(map[common.UUID]*TypeInterface),
		typeDefs:         make(map[common.UUID]TypeDefinition),
		functions:        make(map[common.UUID]FunctionData),
		functionInfos:    make(map[common.UUID]*FunctionInfo),
		eventInfos:       make(map[common.UUID]*EventInfo),
		identifierByGuid: make(map[common.UUID]FunctionIdentifier),
		nameToGuid:       common.NewSyncMap(),
	}
}

var globalRegistry = NewRegistry()

// Global returns the single process-wide Registry (§9: "expose it as a
// single service; initialization order across translation units must be
// resolvable" — in Go, a package-level var initialized at import time
// already gives us that).
func Global() *Registry { return globalRegistry }

// RegisterType performs static (process-init-time) registration: it
// panics if guid is already registered, mirroring the original's
// programmer-error assertion.
func (r *Registry) RegisterType(t *TypeInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Guid]; exists {
		panic(fmt.Sprintf("reflection: type %s already registered", t.Guid))
	}
	r.types[t.Guid] = t
	r.typeDefs[t.Guid] = t.TypeDefinition
	if t.Name != "" {
		r.nameToGuid.Set(t.Name, t.Guid.String())
	}
}

// DeregisterType removes guid's registration, if present.
func (r *Registry) DeregisterType(guid common.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[guid]; ok && t.Name != "" {
		r.nameToGuid.Delete(t.Name)
	}
	delete(r.types, guid)
	delete(r.typeDefs, guid)
}

// FindTypeByName resolves a type by its display name, for callers that only
// have the name string (scripting, serialized data) rather than a guid.
func (r *Registry) FindTypeByName(name string) (*TypeInterface, error) {
	guidStr, ok := r.nameToGuid.Get(name)
	if !ok {
		return nil, errors.Errorf("reflection: no type registered with name %q", name)
	}
	guid, err := common.ParseUUID(guidStr)
	if err != nil {
		return nil, errors.Wrapf(err, "reflection: corrupt name index entry for %q", name)
	}
	return r.FindType(guid)
}

// FindType looks up a registered type under the shared lock.
func (r *Registry) FindType(guid common.UUID) (*TypeInterface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[guid]
	if !ok {
		return nil, errors.Errorf("reflection: no type registered for guid %s", guid)
	}
	return t, nil
}

// IterateTypes holds the shared lock for the whole iteration (§4.D).
func (r *Registry) IterateTypes(fn func(*TypeInterface) IterationResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.types {
		if fn(t) == EIterationResult.Break() {
			return
		}
	}
}

// RegisterFunction performs dynamic (runtime) registration: it both
// inserts the function and allocates a fresh FunctionIdentifier.
func (r *Registry) RegisterFunction(guid common.UUID, owningType common.UUID, fn DynamicFunction, flags uint32) FunctionIdentifier {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.allocateIdentifier(guid)
	r.functions[guid] = FunctionData{Function: fn, Flags: flags, OwningType: owningType, Identifier: id}
	return id
}

// DeregisterFunction removes guid from both the guid map and the
// identifier lookup, returning its identifier's slot to the salted
// allocator so later lookups of the stale identifier miss.
func (r *Registry) DeregisterFunction(guid common.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.functions[guid]
	if !ok {
		return
	}
	delete(r.functions, guid)
	delete(r.identifierByGuid, guid)
	r.freeIdentifier(data.Identifier)
}

// FindFunction looks up a registered function's data under the shared lock.
func (r *Registry) FindFunction(guid common.UUID) (FunctionData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.functions[guid]
	if !ok {
		return FunctionData{}, errors.Errorf("reflection: no function registered for guid %s", guid)
	}
	return data, nil
}

// FindFunctionGuid resolves an identifier back to its guid. A stale
// identifier (wrong generation, or an index never allocated) returns false.
func (r *Registry) FindFunctionGuid(id FunctionIdentifier) (common.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := id.index()
	if int(idx) >= len(r.identifierSlots) {
		return common.UUID{}, false
	}
	slot := r.identifierSlots[idx]
	if !slot.occupied || slot.generation != id.generation() {
		return common.UUID{}, false
	}
	return slot.guid, true
}

// FindFunctionIdentifier is the inverse of FindFunctionGuid.
func (r *Registry) FindFunctionIdentifier(guid common.UUID) (FunctionIdentifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identifierByGuid[guid]
	return id, ok
}

// IterateGlobalFunctions holds the shared lock for the whole iteration.
func (r *Registry) IterateGlobalFunctions(fn func(*FunctionInfo) IterationResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, info := range r.functionInfos {
		if fn(info) == EIterationResult.Break() {
			return
		}
	}
}

// RegisterGlobalFunction registers a process-global (not type-owned)
// function, asserting (panicking) on duplicate guid per static registration
// semantics.
func (r *Registry) RegisterGlobalFunction(info *FunctionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functionInfos[info.Guid]; exists {
		panic(fmt.Sprintf("reflection: global function %s already registered", info.Guid))
	}
	r.functionInfos[info.Guid] = info
}

// RegisterGlobalEvent registers a process-global event.
func (r *Registry) RegisterGlobalEvent(info *EventInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.eventInfos[info.Guid]; exists {
		panic(fmt.Sprintf("reflection: global event %s already registered", info.Guid))
	}
	r.eventInfos[info.Guid] = info
}

// IterateGlobalEvents holds the shared lock for the whole iteration.
func (r *Registry) IterateGlobalEvents(fn func(*EventInfo) IterationResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, info := range r.eventInfos {
		if fn(info) == EIterationResult.Break() {
			return
		}
	}
}

// allocateIdentifier must be called with mu held for writing.
func (r *Registry) allocateIdentifier(guid common.UUID) FunctionIdentifier {
	if id, ok := r.identifierByGuid[guid]; ok {
		return id
	}

	var idx uint32
	var generation uint32
	if n := len(r.freeSlots); n > 0 {
		idx = r.freeSlots[n-1]
		r.freeSlots = r.freeSlots[:n-1]
		generation = r.identifierSlots[idx].generation + 1
	} else {
		idx = uint32(len(r.identifierSlots))
		r.identifierSlots = append(r.identifierSlots, identifierSlot{})
		generation = 1
	}
	r.identifierSlots[idx] = identifierSlot{guid: guid, generation: generation, occupied: true}

	id := makeFunctionIdentifier(idx, generation)
	r.identifierByGuid[guid] = id
	return id
}

// freeIdentifier must be called with mu held for writing.
func (r *Registry) freeIdentifier(id FunctionIdentifier) {
	idx := id.index()
	if int(idx) >= len(r.identifierSlots) {
		return
	}
	r.identifierSlots[idx].occupied = false
	r.freeSlots = append(r.freeSlots, idx)
}
