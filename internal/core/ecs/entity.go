// Package ecs implements the in-memory entity/component storage engine:
// entity allocation, typed component attachment, tag and group registries,
// and archetype-style compositions with atomic transmutation.
package ecs

// Entity is a handle to a live entity. Handles are plain integers so a
// component field referencing another entity is just an Entity value; an
// unset reference holds NoEntity.
type Entity int32

// NoEntity marks an absent or unresolved entity reference.
const NoEntity Entity = -1

// Component is a typed data record attached to exactly one entity.
// Instances are pointers to flat structs.
type Component any

// ReferenceHolder is implemented by components whose fields reference other
// entities. References returns pointers to every such field so a resolution
// pass can rewrite them in place after a full graph load.
type ReferenceHolder interface {
	References() []*Entity
}
