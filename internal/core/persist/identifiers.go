// Package persist implements graph-aware entity serialization: a compact
// binary format that records each entity's composition, tags, groups and
// non-default components, and restores the full graph (cross-entity
// references and reference cycles included) from a single forward-only
// stream.
package persist

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/driftsync/worldsave/internal/core/ecs"
)

// ComponentCodec encodes and decodes one component type's field data.
// Codecs are registered per stable type name, so payload dispatch is a
// table lookup rather than reflection over field sets.
type ComponentCodec interface {
	Encode(enc *Encoder, c ecs.Component) error
	Decode(dec *Decoder, c ecs.Component) error
}

// CodecFuncs adapts a pair of functions to a ComponentCodec.
type CodecFuncs struct {
	EncodeFunc func(enc *Encoder, c ecs.Component) error
	DecodeFunc func(dec *Decoder, c ecs.Component) error
}

func (f CodecFuncs) Encode(enc *Encoder, c ecs.Component) error { return f.EncodeFunc(enc, c) }
func (f CodecFuncs) Decode(dec *Decoder, c ecs.Component) error { return f.DecodeFunc(dec, c) }

type registration struct {
	name      string
	typ       reflect.Type
	factory   func() ecs.Component
	codec     ComponentCodec
	transient bool
}

// RegisterOption configures a component registration.
type RegisterOption func(*registration)

// Transient marks the type as never persisted, regardless of field values.
func Transient() RegisterOption {
	return func(r *registration) { r.transient = true }
}

// ComponentIdentifiers is the bidirectional mapping between component types
// and their stable string names. Writer and reader processes must populate
// it compatibly for a save to round-trip; a name missing on read is fatal.
type ComponentIdentifiers struct {
	byName map[string]*registration
	byType map[reflect.Type]*registration
}

// NewComponentIdentifiers creates a registry pre-populated with the SaveKey
// type. SaveKey is transient: its value travels in the record's dedicated
// key slot, never as a component payload.
func NewComponentIdentifiers() *ComponentIdentifiers {
	ids := &ComponentIdentifiers{
		byName: make(map[string]*registration),
		byType: make(map[reflect.Type]*registration),
	}
	if _, err := ids.Register("SaveKey", func() ecs.Component { return &SaveKey{} }, nil, Transient()); err != nil {
		panic(err)
	}
	return ids
}

// Register binds a stable name to the component type produced by factory,
// together with its payload codec. Transient types may pass a nil codec.
func (ids *ComponentIdentifiers) Register(name string, factory func() ecs.Component, codec ComponentCodec, opts ...RegisterOption) (reflect.Type, error) {
	reg := &registration{
		name:    name,
		typ:     reflect.TypeOf(factory()),
		factory: factory,
		codec:   codec,
	}
	for _, opt := range opts {
		opt(reg)
	}
	if existing, ok := ids.byName[name]; ok && existing.typ != reg.typ {
		return nil, fmt.Errorf("identifier %q already bound to %s", name, existing.typ)
	}
	if !reg.transient && reg.codec == nil {
		return nil, fmt.Errorf("identifier %q: persistent type %s needs a codec", name, reg.typ)
	}
	ids.byName[name] = reg
	ids.byType[reg.typ] = reg
	return reg.typ, nil
}

// NameFor returns the stable name of t.
func (ids *ComponentIdentifiers) NameFor(t reflect.Type) (string, bool) {
	reg, ok := ids.byType[t]
	if !ok {
		return "", false
	}
	return reg.name, true
}

// TypeFor returns the component type registered under name.
func (ids *ComponentIdentifiers) TypeFor(name string) (reflect.Type, bool) {
	reg, ok := ids.byName[name]
	if !ok {
		return nil, false
	}
	return reg.typ, true
}

// Transient reports whether t is excluded from persistence.
func (ids *ComponentIdentifiers) Transient(t reflect.Type) bool {
	reg, ok := ids.byType[t]
	return ok && reg.transient
}

// CodecFor returns the payload codec registered for t.
func (ids *ComponentIdentifiers) CodecFor(t reflect.Type) (ComponentCodec, bool) {
	reg, ok := ids.byType[t]
	if !ok || reg.codec == nil {
		return nil, false
	}
	return reg.codec, true
}

// Factory returns the default-instance factory for t.
func (ids *ComponentIdentifiers) Factory(t reflect.Type) (func() ecs.Component, bool) {
	reg, ok := ids.byType[t]
	if !ok {
		return nil, false
	}
	return reg.factory, true
}

// Names returns every registered name in sorted order.
func (ids *ComponentIdentifiers) Names() []string {
	out := make([]string, 0, len(ids.byName))
	for name := range ids.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterWith registers every known factory with the storage engine so
// transmutation and edit-time creation can instantiate all types.
func (ids *ComponentIdentifiers) RegisterWith(world *ecs.World) {
	for _, reg := range ids.byName {
		world.RegisterComponent(reg.factory)
	}
}
