package persist

import (
	"reflect"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/internal/core/observability/log"
)

// ReferenceTracker records, during a load session, every component whose
// fields may still hold placeholder entity IDs. Once the full graph is in
// memory a single Resolve pass rewrites each placeholder to the live
// handle. A placeholder with no matching entity is a soft failure: the
// field is cleared and logged, the load continues.
type ReferenceTracker struct {
	tracked []ecs.ReferenceHolder
	logger  log.Log
}

// NewReferenceTracker creates an empty tracker.
func NewReferenceTracker(logger log.Log) *ReferenceTracker {
	return &ReferenceTracker{logger: logger}
}

// Reset drops all tracked components ahead of a new session.
func (t *ReferenceTracker) Reset() {
	t.tracked = t.tracked[:0]
}

// Track registers c if it can hold entity references.
func (t *ReferenceTracker) Track(c ecs.Component) {
	if holder, ok := c.(ecs.ReferenceHolder); ok {
		t.tracked = append(t.tracked, holder)
	}
}

// Resolve rewrites every tracked reference field through translate, which
// maps a saved entity ID to its live handle. It returns the number of
// placeholders that could not be resolved.
func (t *ReferenceTracker) Resolve(translate func(ecs.Entity) (ecs.Entity, bool)) int {
	unresolved := 0
	for _, holder := range t.tracked {
		for _, field := range holder.References() {
			if *field == ecs.NoEntity {
				continue
			}
			live, ok := translate(*field)
			if !ok {
				unresolved++
				t.logger.Warn("unresolved entity reference",
					log.Int32("saved_id", int32(*field)),
					log.String("component", reflect.TypeOf(holder).String()))
				*field = ecs.NoEntity
				continue
			}
			*field = live
		}
	}
	return unresolved
}
