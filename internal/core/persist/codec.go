package persist

import (
	"fmt"
	"reflect"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/pkg/stream"
)

// Encoder is handed to component codecs on the write path. Entity-typed
// fields must go through WriteEntity so the serializer's re-entrancy guard
// applies and a nested entity is recorded as a bare ID, never expanded.
type Encoder struct {
	serializer *EntitySerializer
	w          *stream.Writer
}

// Stream returns the underlying primitive writer.
func (e *Encoder) Stream() *stream.Writer {
	return e.w
}

// WriteEntity writes an entity reference. Inside an entity record this
// always degrades to the raw ID, which is what breaks reference cycles.
func (e *Encoder) WriteEntity(ref ecs.Entity) error {
	return e.serializer.Write(e.w, ref)
}

// Decoder is the read-path dual of Encoder. It also carries the owning
// entity's edit handle so any component instance a codec materializes is
// allocated into that entity's storage slot.
type Decoder struct {
	serializer *EntitySerializer
	r          *stream.Reader
	edit       *ecs.Edit
}

// Stream returns the underlying primitive reader.
func (d *Decoder) Stream() *stream.Reader {
	return d.r
}

// ReadEntity reads an entity reference. The result is a placeholder handle
// carrying the saved ID; the reference tracker rewrites it to a live handle
// once the whole graph is loaded.
func (d *Decoder) ReadEntity() (ecs.Entity, error) {
	return d.serializer.Read(d.r)
}

// Create materializes a component of type t on the entity currently being
// decoded, reusing the attached instance when transmutation already
// created it.
func (d *Decoder) Create(t reflect.Type) (ecs.Component, error) {
	if d.edit == nil {
		return nil, fmt.Errorf("create %s: no entity under decode", t)
	}
	return d.edit.Create(t)
}
