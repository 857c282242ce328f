package persist

import (
	"reflect"

	"github.com/driftsync/worldsave/internal/core/ecs"
)

// DefaultValueStore answers one question on the write path: does a given
// component instance equal its type's default. Components that do are
// elided from the record; transmutation recreates them on load. A fresh
// store is built per save session.
type DefaultValueStore struct {
	ids           *ComponentIdentifiers
	cache         map[reflect.Type]ecs.Component
	prototypes    map[reflect.Type]ecs.Component
	usePrototypes bool
}

// NewDefaultValueStore creates a store over the identifier registry.
func NewDefaultValueStore(ids *ComponentIdentifiers) *DefaultValueStore {
	return &DefaultValueStore{
		ids:        ids,
		cache:      make(map[reflect.Type]ecs.Component),
		prototypes: make(map[reflect.Type]ecs.Component),
	}
}

// SetUsePrototypes switches default comparison to registered prototype
// instances where one exists.
func (s *DefaultValueStore) SetUsePrototypes(use bool) {
	s.usePrototypes = use
	s.cache = make(map[reflect.Type]ecs.Component)
}

// RegisterPrototype installs a prototype exemplar for its component type.
func (s *DefaultValueStore) RegisterPrototype(c ecs.Component) {
	s.prototypes[reflect.TypeOf(c)] = c
	delete(s.cache, reflect.TypeOf(c))
}

// HasDefaultValues reports whether c's fields equal the cached default for
// its type. Unknown types are never considered default.
func (s *DefaultValueStore) HasDefaultValues(c ecs.Component) bool {
	t := reflect.TypeOf(c)
	def, ok := s.defaultFor(t)
	if !ok {
		return false
	}
	return shallowEqual(c, def)
}

func (s *DefaultValueStore) defaultFor(t reflect.Type) (ecs.Component, bool) {
	if def, ok := s.cache[t]; ok {
		return def, true
	}
	if s.usePrototypes {
		if proto, ok := s.prototypes[t]; ok {
			s.cache[t] = proto
			return proto, true
		}
	}
	factory, ok := s.ids.Factory(t)
	if !ok {
		return nil, false
	}
	def := factory()
	s.cache[t] = def
	return def, true
}

// shallowEqual compares the pointed-to field values of two component
// instances of the same type.
func shallowEqual(a, b ecs.Component) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Pointer {
		va = va.Elem()
	}
	if vb.Kind() == reflect.Pointer {
		vb = vb.Elem()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if va.Type().Comparable() {
		return va.Interface() == vb.Interface()
	}
	return reflect.DeepEqual(va.Interface(), vb.Interface())
}
