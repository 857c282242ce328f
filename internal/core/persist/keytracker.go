package persist

import (
	"sort"

	"github.com/driftsync/worldsave/internal/core/ecs"
)

// SaveKey tags an entity with a save-file-scoped stable identifier. It is
// independent of the live tag registry and survives across saves; the type
// itself is registered transient because its value travels in the record's
// dedicated key slot.
type SaveKey struct {
	Key string
}

// KeyTracker collects save-key bindings during one load session.
type KeyTracker struct {
	byKey map[string]ecs.Entity
}

// NewKeyTracker creates an empty tracker.
func NewKeyTracker() *KeyTracker {
	return &KeyTracker{byKey: make(map[string]ecs.Entity)}
}

// Register binds key to e. Within one save file keys are unique.
func (t *KeyTracker) Register(key string, e ecs.Entity) {
	t.byKey[key] = e
}

// Entity returns the entity loaded under key.
func (t *KeyTracker) Entity(key string) (ecs.Entity, bool) {
	e, ok := t.byKey[key]
	return e, ok
}

// Keys returns all registered keys in sorted order.
func (t *KeyTracker) Keys() []string {
	out := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
