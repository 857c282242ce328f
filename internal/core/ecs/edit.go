package ecs

import (
	"fmt"
	"reflect"
)

// Edit is an edit/creation handle bound to one entity. Component allocation
// during decoding is routed through Create so the instance always lands in
// the owning entity's storage instead of floating unattached.
type Edit struct {
	world  *World
	entity Entity
}

// Entity returns the entity this handle edits.
func (ed *Edit) Entity() Entity {
	return ed.entity
}

// Create returns the component of type t on the entity, creating and
// attaching a default instance if it is not present yet.
func (ed *Edit) Create(t reflect.Type) (Component, error) {
	if c, ok := ed.world.Get(ed.entity, t); ok {
		return c, nil
	}
	c, err := ed.world.New(t)
	if err != nil {
		return nil, err
	}
	if err := ed.world.Attach(ed.entity, c); err != nil {
		return nil, fmt.Errorf("edit create %s: %w", t, err)
	}
	return c, nil
}
