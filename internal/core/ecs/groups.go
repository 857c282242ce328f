package ecs

import "sort"

// GroupManager tracks many-to-many group membership. Membership is external
// to an entity's composition; zero groups is the common case.
type GroupManager struct {
	byGroup  map[string]map[Entity]struct{}
	byEntity map[Entity]map[string]struct{}
}

// NewGroupManager creates an empty group registry.
func NewGroupManager() *GroupManager {
	return &GroupManager{
		byGroup:  make(map[string]map[Entity]struct{}),
		byEntity: make(map[Entity]map[string]struct{}),
	}
}

// Add puts e into the named group.
func (m *GroupManager) Add(e Entity, group string) {
	if m.byGroup[group] == nil {
		m.byGroup[group] = make(map[Entity]struct{})
	}
	m.byGroup[group][e] = struct{}{}
	if m.byEntity[e] == nil {
		m.byEntity[e] = make(map[string]struct{})
	}
	m.byEntity[e][group] = struct{}{}
}

// Remove takes e out of the named group.
func (m *GroupManager) Remove(e Entity, group string) {
	delete(m.byGroup[group], e)
	delete(m.byEntity[e], group)
}

// GroupsOf returns the groups e belongs to, sorted.
func (m *GroupManager) GroupsOf(e Entity) []string {
	groups := m.byEntity[e]
	out := make([]string, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Entities returns the members of a group in ascending handle order.
func (m *GroupManager) Entities(group string) []Entity {
	members := m.byGroup[group]
	out := make([]Entity, 0, len(members))
	for e := range members {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
