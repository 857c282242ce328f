package persist

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/internal/core/observability/log"
	"github.com/driftsync/worldsave/pkg/stream"
)

var saveKeyType = reflect.TypeOf(&SaveKey{})

// EntitySerializer writes and reads one entity record at a time. An
// instance carries session state (the re-entrancy guard, the key tracker,
// the archetype mapper) and must not be shared across concurrent save or
// load sessions; use a fresh instance per session.
type EntitySerializer struct {
	world    *ecs.World
	tags     *ecs.TagManager
	groups   *ecs.GroupManager
	ids      *ComponentIdentifiers
	defaults *DefaultValueStore
	refs     *ReferenceTracker
	logger   log.Log

	keys   *KeyTracker
	mapper *ArchetypeMapper

	// set while a top-level entity record is being written or read; a
	// nested entity reference reached through a component field sees it
	// and degrades to a bare ID
	serializing bool
}

// NewEntitySerializer wires a serializer to its collaborators. tags and
// groups may be nil when the world runs without those registries.
func NewEntitySerializer(world *ecs.World, tags *ecs.TagManager, groups *ecs.GroupManager,
	ids *ComponentIdentifiers, defaults *DefaultValueStore, refs *ReferenceTracker, logger log.Log) *EntitySerializer {
	return &EntitySerializer{
		world:    world,
		tags:     tags,
		groups:   groups,
		ids:      ids,
		defaults: defaults,
		refs:     refs,
		logger:   logger,
	}
}

// PreLoad readies the serializer for a load session: fresh key tracker,
// fresh reference state, and the save's archetype mapper.
func (s *EntitySerializer) PreLoad(mapper *ArchetypeMapper) {
	s.keys = NewKeyTracker()
	s.mapper = mapper
	s.refs.Reset()
	s.serializing = false
}

// Keys returns the save-key bindings collected by the current load session.
func (s *EntitySerializer) Keys() *KeyTracker {
	return s.keys
}

type namedComponent struct {
	name string
	c    ecs.Component
}

// Write emits one self-describing entity record: composition ID, live tag,
// save key, groups, then the sorted persist-worthy components. Called while
// a record is already open (through an entity-typed component field) it
// writes only the raw entity ID.
func (s *EntitySerializer) Write(w *stream.Writer, e ecs.Entity) error {
	if s.serializing {
		return w.WriteInt32(int32(e))
	}
	s.serializing = true
	defer func() { s.serializing = false }()

	named, err := s.namedComponents(e)
	if err != nil {
		return err
	}

	cid, err := s.world.CompositionID(e)
	if err != nil {
		return fmt.Errorf("entity %d: %w", e, err)
	}
	if cid < 0 {
		return fmt.Errorf("entity %d: %w", e, ErrMissingComposition)
	}
	if err := w.WriteInt32(cid); err != nil {
		return err
	}

	var liveTag *string
	if s.tags != nil {
		if tag, ok := s.tags.TagOf(e); ok {
			liveTag = &tag
		}
	}
	if err := w.WriteString(liveTag); err != nil {
		return err
	}

	var saveKey *string
	if c, ok := s.world.Get(e, saveKeyType); ok {
		key := c.(*SaveKey).Key
		saveKey = &key
	}
	if err := w.WriteString(saveKey); err != nil {
		return err
	}

	if err := s.writeGroups(w, e); err != nil {
		return err
	}

	worthy := named[:0]
	for _, nc := range named {
		t := reflect.TypeOf(nc.c)
		if s.ids.Transient(t) || s.defaults.HasDefaultValues(nc.c) {
			continue
		}
		worthy = append(worthy, nc)
	}
	if err := w.WriteInt32(int32(len(worthy))); err != nil {
		return err
	}

	enc := &Encoder{serializer: s, w: w}
	for _, nc := range worthy {
		if err := w.WriteString(&nc.name); err != nil {
			return err
		}
		codec, ok := s.ids.CodecFor(reflect.TypeOf(nc.c))
		if !ok {
			return fmt.Errorf("%s: %w", nc.name, ErrUnregisteredComponent)
		}
		if err := codec.Encode(enc, nc.c); err != nil {
			return fmt.Errorf("encode %s: %w", nc.name, err)
		}
	}
	return nil
}

// namedComponents fetches e's components and sorts them by registered name,
// the stable ordering that makes identical entity states byte-identical on
// the wire. Any component without a registered name is a hard error.
func (s *EntitySerializer) namedComponents(e ecs.Entity) ([]namedComponent, error) {
	comps := s.world.Components(e)
	named := make([]namedComponent, 0, len(comps))
	for _, c := range comps {
		name, ok := s.ids.NameFor(reflect.TypeOf(c))
		if !ok {
			return nil, fmt.Errorf("%T: %w", c, ErrUnregisteredComponent)
		}
		named = append(named, namedComponent{name: name, c: c})
	}
	sort.Slice(named, func(i, j int) bool { return named[i].name < named[j].name })
	return named, nil
}

func (s *EntitySerializer) writeGroups(w *stream.Writer, e ecs.Entity) error {
	if s.groups == nil {
		return w.WriteInt32(0)
	}
	groups := s.groups.GroupsOf(e)
	if err := w.WriteInt32(int32(len(groups))); err != nil {
		return err
	}
	for _, g := range groups {
		if err := w.WriteString(&g); err != nil {
			return err
		}
	}
	return nil
}

// Read is the dual of Write: it allocates an entity, restores tag, save
// key and groups, transmutes to the record's composition, then populates
// the explicit components through the entity's edit handle. Called while a
// record is already open it reads a bare ID and returns it as a placeholder
// handle for the reference tracker to resolve later.
func (s *EntitySerializer) Read(r *stream.Reader) (ecs.Entity, error) {
	if s.serializing {
		id, err := r.ReadInt32()
		if err != nil {
			return ecs.NoEntity, err
		}
		return ecs.Entity(id), nil
	}
	s.serializing = true
	defer func() { s.serializing = false }()

	e := s.world.Create()

	cid, err := r.ReadInt32()
	if err != nil {
		return ecs.NoEntity, err
	}
	tag, err := r.ReadString()
	if err != nil {
		return ecs.NoEntity, err
	}
	if tag != nil && s.tags != nil {
		if err := s.tags.Register(*tag, e); err != nil {
			return ecs.NoEntity, fmt.Errorf("restore tag: %w", err)
		}
	}
	saveKey, err := r.ReadString()
	if err != nil {
		return ecs.NoEntity, err
	}
	if saveKey != nil && s.keys != nil {
		s.keys.Register(*saveKey, e)
	}
	groupCount, err := r.ReadInt32()
	if err != nil {
		return ecs.NoEntity, err
	}
	if groupCount < 0 {
		return ecs.NoEntity, fmt.Errorf("group count %d: %w", groupCount, ErrCorruptRecord)
	}
	for i := int32(0); i < groupCount; i++ {
		name, err := r.ReadString()
		if err != nil {
			return ecs.NoEntity, err
		}
		if name == nil {
			return ecs.NoEntity, fmt.Errorf("group name: %w", ErrCorruptRecord)
		}
		if s.groups != nil {
			s.groups.Add(e, *name)
		}
	}

	count, err := r.ReadInt32()
	if err != nil {
		return ecs.NoEntity, err
	}
	if count < 0 {
		return ecs.NoEntity, fmt.Errorf("component count %d: %w", count, ErrCorruptRecord)
	}
	if cid >= 0 {
		if s.mapper == nil {
			return ecs.NoEntity, fmt.Errorf("composition %d: %w", cid, ErrUnknownComposition)
		}
		if err := s.mapper.Transmute(e, cid); err != nil {
			return ecs.NoEntity, err
		}
	}

	edit, err := s.world.Edit(e)
	if err != nil {
		return ecs.NoEntity, err
	}
	// attach after transmutation so the key component survives it
	if saveKey != nil {
		c, err := edit.Create(saveKeyType)
		if err != nil {
			return ecs.NoEntity, fmt.Errorf("restore save key: %w", err)
		}
		c.(*SaveKey).Key = *saveKey
	}

	dec := &Decoder{serializer: s, r: r, edit: edit}
	for i := int32(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return ecs.NoEntity, err
		}
		if name == nil {
			return ecs.NoEntity, fmt.Errorf("component name: %w", ErrCorruptRecord)
		}
		t, ok := s.ids.TypeFor(*name)
		if !ok {
			return ecs.NoEntity, fmt.Errorf("%q: %w", *name, ErrUnknownComponentType)
		}
		codec, ok := s.ids.CodecFor(t)
		if !ok {
			return ecs.NoEntity, fmt.Errorf("%q: %w", *name, ErrUnknownComponentType)
		}
		c, err := edit.Create(t)
		if err != nil {
			return ecs.NoEntity, fmt.Errorf("create %q: %w", *name, err)
		}
		if err := codec.Decode(dec, c); err != nil {
			return ecs.NoEntity, fmt.Errorf("decode %q: %w", *name, err)
		}
		s.refs.Track(c)
	}
	return e, nil
}
