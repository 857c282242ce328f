package persist

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/driftsync/worldsave/internal/core/ecs"
)

// ArchetypeMapper maps the save-local composition IDs found in entity
// records to component type sets, and transmutes a freshly allocated entity
// to that composition in one step. The transmutation happens before any
// component payload is read, so elided default components exist by the time
// the record's explicit components are populated.
type ArchetypeMapper struct {
	world *ecs.World
	types map[int32][]reflect.Type
}

// NewArchetypeMapper creates a mapper bound to the storage engine.
func NewArchetypeMapper(world *ecs.World) *ArchetypeMapper {
	return &ArchetypeMapper{
		world: world,
		types: make(map[int32][]reflect.Type),
	}
}

// Put records the component types of one save-local composition ID.
func (m *ArchetypeMapper) Put(id int32, types []reflect.Type) {
	m.types[id] = types
}

// IDs returns the known composition IDs in ascending order.
func (m *ArchetypeMapper) IDs() []int32 {
	out := make([]int32, 0, len(m.types))
	for id := range m.types {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transmute sets e's composition to the set registered under id, leaving
// every slot default-initialized and ready for selective overwrite.
func (m *ArchetypeMapper) Transmute(e ecs.Entity, id int32) error {
	types, ok := m.types[id]
	if !ok {
		return fmt.Errorf("composition %d: %w", id, ErrUnknownComposition)
	}
	if err := m.world.Transmute(e, types); err != nil {
		return fmt.Errorf("composition %d: %w", id, err)
	}
	return nil
}
