package ecs

import (
	"fmt"
	"sort"
)

// TagManager maps unique string tags to entities. A tag identifies at most
// one entity at a time; registering an existing tag against a different
// entity is rejected.
type TagManager struct {
	byTag    map[string]Entity
	byEntity map[Entity]string
}

// NewTagManager creates an empty tag registry.
func NewTagManager() *TagManager {
	return &TagManager{
		byTag:    make(map[string]Entity),
		byEntity: make(map[Entity]string),
	}
}

// Register binds tag to e.
func (m *TagManager) Register(tag string, e Entity) error {
	if current, ok := m.byTag[tag]; ok && current != e {
		return fmt.Errorf("register %q: %w", tag, ErrTagTaken)
	}
	if old, ok := m.byEntity[e]; ok {
		delete(m.byTag, old)
	}
	m.byTag[tag] = e
	m.byEntity[e] = tag
	return nil
}

// Unregister releases a tag.
func (m *TagManager) Unregister(tag string) {
	if e, ok := m.byTag[tag]; ok {
		delete(m.byEntity, e)
		delete(m.byTag, tag)
	}
}

// Entity returns the entity bound to tag.
func (m *TagManager) Entity(tag string) (Entity, bool) {
	e, ok := m.byTag[tag]
	return e, ok
}

// TagOf returns the tag bound to e, if any.
func (m *TagManager) TagOf(e Entity) (string, bool) {
	tag, ok := m.byEntity[e]
	return tag, ok
}

// Registered returns all live tags in sorted order.
func (m *TagManager) Registered() []string {
	out := make([]string, 0, len(m.byTag))
	for tag := range m.byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
