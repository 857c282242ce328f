package ecs

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Composition is a numbered, immutable set of component types. Every live
// entity has exactly one composition at any time; IDs are assigned in
// first-use order and stay stable for the lifetime of the world.
type Composition struct {
	ID    int32
	Types []reflect.Type
}

type entityRecord struct {
	components map[reflect.Type]Component
}

// World owns entity allocation and per-entity component storage. Component
// types must be registered with a factory before they can be attached or
// created through transmutation.
type World struct {
	factories map[reflect.Type]func() Component
	typeIDs   map[reflect.Type]int
	typeOrder []reflect.Type

	entities map[Entity]*entityRecord
	nextID   Entity

	compositionIDs map[string]int32
	compositions   []Composition
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		factories:      make(map[reflect.Type]func() Component),
		typeIDs:        make(map[reflect.Type]int),
		entities:       make(map[Entity]*entityRecord),
		compositionIDs: make(map[string]int32),
	}
}

// RegisterComponent registers a component type via its factory. The factory
// must return a pointer to a fresh all-default instance. Registering the
// same type twice is a no-op.
func (w *World) RegisterComponent(factory func() Component) reflect.Type {
	t := reflect.TypeOf(factory())
	if _, ok := w.factories[t]; ok {
		return t
	}
	w.factories[t] = factory
	w.typeIDs[t] = len(w.typeOrder)
	w.typeOrder = append(w.typeOrder, t)
	return t
}

// Registered reports whether t has a factory.
func (w *World) Registered(t reflect.Type) bool {
	_, ok := w.factories[t]
	return ok
}

// Create allocates a new empty entity.
func (w *World) Create() Entity {
	e := w.nextID
	w.nextID++
	w.entities[e] = &entityRecord{components: make(map[reflect.Type]Component)}
	return e
}

// Delete removes an entity and its components.
func (w *World) Delete(e Entity) {
	delete(w.entities, e)
}

// Alive reports whether e refers to a live entity.
func (w *World) Alive(e Entity) bool {
	_, ok := w.entities[e]
	return ok
}

// Entities returns all live entities in ascending handle order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, len(w.entities))
	for e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Attach attaches c to e, replacing any component of the same type. The
// component's type must be registered.
func (w *World) Attach(e Entity, c Component) error {
	rec, ok := w.entities[e]
	if !ok {
		return fmt.Errorf("attach %T: %w", c, ErrUnknownEntity)
	}
	t := reflect.TypeOf(c)
	if _, ok := w.factories[t]; !ok {
		return fmt.Errorf("attach %s: %w", t, ErrUnregisteredType)
	}
	rec.components[t] = c
	return nil
}

// Get returns the component of type t attached to e, if any.
func (w *World) Get(e Entity, t reflect.Type) (Component, bool) {
	rec, ok := w.entities[e]
	if !ok {
		return nil, false
	}
	c, ok := rec.components[t]
	return c, ok
}

// Has reports whether e carries a component of type t.
func (w *World) Has(e Entity, t reflect.Type) bool {
	_, ok := w.Get(e, t)
	return ok
}

// Components returns e's components ordered by component registration, so
// the result is deterministic for a given entity state.
func (w *World) Components(e Entity) []Component {
	rec, ok := w.entities[e]
	if !ok {
		return nil
	}
	types := make([]reflect.Type, 0, len(rec.components))
	for t := range rec.components {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return w.typeIDs[types[i]] < w.typeIDs[types[j]] })
	out := make([]Component, len(types))
	for i, t := range types {
		out[i] = rec.components[t]
	}
	return out
}

// CompositionID returns the stable ID of e's current component-type set,
// assigning a fresh ID if this set has not been seen before.
func (w *World) CompositionID(e Entity) (int32, error) {
	rec, ok := w.entities[e]
	if !ok {
		return -1, fmt.Errorf("composition of %d: %w", e, ErrUnknownEntity)
	}
	types := make([]reflect.Type, 0, len(rec.components))
	for t := range rec.components {
		types = append(types, t)
	}
	return w.compositionOf(types), nil
}

// Compositions returns every composition observed so far.
func (w *World) Compositions() []Composition {
	out := make([]Composition, len(w.compositions))
	copy(out, w.compositions)
	return out
}

// CompositionTypes returns the component types of a known composition ID.
func (w *World) CompositionTypes(id int32) ([]reflect.Type, bool) {
	if id < 0 || int(id) >= len(w.compositions) {
		return nil, false
	}
	return w.compositions[id].Types, true
}

// Transmute atomically changes e's composition to exactly the given type
// set: components outside the set are detached, missing ones are created
// default-initialized through their factories.
func (w *World) Transmute(e Entity, types []reflect.Type) error {
	rec, ok := w.entities[e]
	if !ok {
		return fmt.Errorf("transmute %d: %w", e, ErrUnknownEntity)
	}
	target := make(map[reflect.Type]struct{}, len(types))
	for _, t := range types {
		if _, ok := w.factories[t]; !ok {
			return fmt.Errorf("transmute to %s: %w", t, ErrUnregisteredType)
		}
		target[t] = struct{}{}
	}
	for t := range rec.components {
		if _, keep := target[t]; !keep {
			delete(rec.components, t)
		}
	}
	for t := range target {
		if _, present := rec.components[t]; !present {
			rec.components[t] = w.factories[t]()
		}
	}
	return nil
}

// Edit opens an edit handle on e.
func (w *World) Edit(e Entity) (*Edit, error) {
	if _, ok := w.entities[e]; !ok {
		return nil, fmt.Errorf("edit %d: %w", e, ErrUnknownEntity)
	}
	return &Edit{world: w, entity: e}, nil
}

// New constructs a fresh default instance of a registered type without
// attaching it anywhere.
func (w *World) New(t reflect.Type) (Component, error) {
	factory, ok := w.factories[t]
	if !ok {
		return nil, fmt.Errorf("new %s: %w", t, ErrUnregisteredType)
	}
	return factory(), nil
}

// compositionOf maps a type set to its stable ID, creating one on first use.
// The signature is built from registration IDs so it is independent of map
// iteration order.
func (w *World) compositionOf(types []reflect.Type) int32 {
	ids := make([]int, len(types))
	for i, t := range types {
		ids[i] = w.typeIDs[t]
	}
	sort.Ints(ids)
	var sig strings.Builder
	for _, id := range ids {
		sig.WriteString(strconv.Itoa(id))
		sig.WriteByte(':')
	}
	key := sig.String()
	if id, ok := w.compositionIDs[key]; ok {
		return id
	}
	sorted := make([]reflect.Type, len(ids))
	for i, id := range ids {
		sorted[i] = w.typeOrder[id]
	}
	id := int32(len(w.compositions))
	w.compositionIDs[key] = id
	w.compositions = append(w.compositions, Composition{ID: id, Types: sorted})
	return id
}
