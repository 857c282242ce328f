package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/internal/core/observability/log"
	"github.com/driftsync/worldsave/pkg/generic"
	"github.com/driftsync/worldsave/pkg/stream"
)

var bufPool = generic.NewPool(func() *bytes.Buffer {
	return new(bytes.Buffer)
}).WithReset(func(b *bytes.Buffer) *bytes.Buffer {
	b.Reset()
	return b
})

// Manager drives whole-world save and load sessions. Each call builds a
// fresh EntitySerializer, default store and reference tracker, so a Manager
// may be reused sequentially; concurrent sessions need separate Managers.
type Manager struct {
	world      *ecs.World
	tags       *ecs.TagManager
	groups     *ecs.GroupManager
	ids        *ComponentIdentifiers
	cfg        Config
	logger     log.Log
	prototypes []ecs.Component
}

// NewManager wires a manager to its collaborators. tags and groups may be
// nil.
func NewManager(world *ecs.World, tags *ecs.TagManager, groups *ecs.GroupManager,
	ids *ComponentIdentifiers, cfg Config, logger log.Log) *Manager {
	ids.RegisterWith(world)
	return &Manager{
		world:  world,
		tags:   tags,
		groups: groups,
		ids:    ids,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterPrototype installs a prototype exemplar consulted for
// default-value elision when UsePrototypes is enabled.
func (m *Manager) RegisterPrototype(c ecs.Component) {
	m.prototypes = append(m.prototypes, c)
}

// LoadResult is what a successful load session produces.
type LoadResult struct {
	Entities   []ecs.Entity
	Keys       *KeyTracker
	Meta       Metadata
	Unresolved int
}

// Save serializes every live entity to w. Any failure aborts the whole
// session; nothing is checkpointed.
func (m *Manager) Save(w io.Writer) error {
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	sw := stream.NewWriter(buf)
	session := uuid.New()
	if err := m.writeHeader(sw, session); err != nil {
		return err
	}

	entities := m.world.Entities()
	if err := m.writeCompositionTable(sw, entities); err != nil {
		return err
	}
	if err := sw.WriteInt32(int32(len(entities))); err != nil {
		return err
	}

	defaults := NewDefaultValueStore(m.ids)
	defaults.SetUsePrototypes(m.cfg.UsePrototypes)
	for _, p := range m.prototypes {
		defaults.RegisterPrototype(p)
	}
	refs := NewReferenceTracker(m.logger)
	serializer := NewEntitySerializer(m.world, m.tags, m.groups, m.ids, defaults, refs, m.logger)

	for _, e := range entities {
		if err := sw.WriteInt32(int32(e)); err != nil {
			return err
		}
		if err := serializer.Write(sw, e); err != nil {
			return fmt.Errorf("save entity %d: %w", e, err)
		}
	}

	sum := xxhash.Sum64(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("flush save: %w", err)
	}
	var trailer [8]byte
	binary.BigEndian.PutUint64(trailer[:], sum)
	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}

	m.logger.Info("world saved",
		log.String("session", session.String()),
		log.Int("entities", len(entities)))
	return nil
}

// SaveBytes serializes the world into a fresh byte slice.
func (m *Manager) SaveBytes() ([]byte, error) {
	var out bytes.Buffer
	if err := m.Save(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (m *Manager) writeHeader(sw *stream.Writer, session uuid.UUID) error {
	if err := sw.WriteRaw([]byte(saveMagic)); err != nil {
		return err
	}
	if err := sw.WriteUint64(formatVersion); err != nil {
		return err
	}
	if err := sw.WriteRaw(session[:]); err != nil {
		return err
	}
	if err := sw.WriteInt64(time.Now().Unix()); err != nil {
		return err
	}
	names := m.ids.Names()
	if err := sw.WriteInt32(int32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := sw.WriteString(&name); err != nil {
			return err
		}
	}
	return nil
}

// writeCompositionTable emits every composition in use, keyed by its ID.
// Transient types are left out of the table so a reloaded entity does not
// regain components that were never persisted.
func (m *Manager) writeCompositionTable(sw *stream.Writer, entities []ecs.Entity) error {
	seen := make(map[int32][]string)
	order := make([]int32, 0, 8)
	for _, e := range entities {
		cid, err := m.world.CompositionID(e)
		if err != nil {
			return fmt.Errorf("entity %d: %w", e, err)
		}
		if _, ok := seen[cid]; ok {
			continue
		}
		names, err := m.persistentNames(cid)
		if err != nil {
			return err
		}
		seen[cid] = names
		order = append(order, cid)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	if err := sw.WriteInt32(int32(len(order))); err != nil {
		return err
	}
	for _, cid := range order {
		if err := sw.WriteInt32(cid); err != nil {
			return err
		}
		names := seen[cid]
		if err := sw.WriteInt32(int32(len(names))); err != nil {
			return err
		}
		for _, name := range names {
			if err := sw.WriteString(&name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) persistentNames(cid int32) ([]string, error) {
	types, ok := m.world.CompositionTypes(cid)
	if !ok {
		return nil, fmt.Errorf("composition %d: %w", cid, ErrMissingComposition)
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		if m.ids.Transient(t) {
			continue
		}
		name, ok := m.ids.NameFor(t)
		if !ok {
			return nil, fmt.Errorf("%s: %w", t, ErrUnregisteredComponent)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load consumes one save stream from r, reconstructing every entity record
// in stream order, then resolves cross-entity references and verifies the
// trailing checksum.
func (m *Manager) Load(r io.Reader) (*LoadResult, error) {
	digest := xxhash.New()
	sr := stream.NewReader(io.TeeReader(r, digest))

	meta, err := m.readHeader(sr)
	if err != nil {
		return nil, err
	}
	mapper, err := m.readCompositionTable(sr)
	if err != nil {
		return nil, err
	}

	entityCount, err := sr.ReadInt32()
	if err != nil {
		return nil, err
	}
	if entityCount < 0 {
		return nil, fmt.Errorf("entity count %d: %w", entityCount, ErrBadHeader)
	}
	meta.Entities = int(entityCount)

	defaults := NewDefaultValueStore(m.ids)
	refs := NewReferenceTracker(m.logger)
	serializer := NewEntitySerializer(m.world, m.tags, m.groups, m.ids, defaults, refs, m.logger)
	serializer.PreLoad(mapper)

	// the count is untrusted until the checksum passes, so cap the
	// preallocation hint and let the slices grow to the real size
	hint := int(entityCount)
	if hint > 1<<16 {
		hint = 1 << 16
	}
	translations := make(map[ecs.Entity]ecs.Entity, hint)
	loaded := make([]ecs.Entity, 0, hint)
	for i := int32(0); i < entityCount; i++ {
		savedID, err := sr.ReadInt32()
		if err != nil {
			return nil, err
		}
		e, err := serializer.Read(sr)
		if err != nil {
			return nil, fmt.Errorf("load entity record %d: %w", i, err)
		}
		translations[ecs.Entity(savedID)] = e
		loaded = append(loaded, e)
	}

	computed := digest.Sum64()
	var trailer [8]byte
	if err := sr.ReadRaw(trailer[:]); err != nil {
		return nil, fmt.Errorf("read checksum: %w", err)
	}
	if m.cfg.VerifyChecksum && binary.BigEndian.Uint64(trailer[:]) != computed {
		return nil, ErrChecksumMismatch
	}

	unresolved := refs.Resolve(func(saved ecs.Entity) (ecs.Entity, bool) {
		live, ok := translations[saved]
		return live, ok
	})

	m.logger.Info("world loaded",
		log.String("session", meta.Session.String()),
		log.Int("entities", len(loaded)),
		log.Int("unresolved_refs", unresolved))

	return &LoadResult{
		Entities:   loaded,
		Keys:       serializer.Keys(),
		Meta:       meta,
		Unresolved: unresolved,
	}, nil
}

func (m *Manager) readHeader(sr *stream.Reader) (Metadata, error) {
	var meta Metadata

	var magic [4]byte
	if err := sr.ReadRaw(magic[:]); err != nil {
		return meta, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != saveMagic {
		return meta, fmt.Errorf("magic %q: %w", magic, ErrBadHeader)
	}
	version, err := sr.ReadUint64()
	if err != nil {
		return meta, err
	}
	if version != formatVersion {
		return meta, fmt.Errorf("version %d: %w", version, ErrUnsupportedVersion)
	}
	var rawSession [16]byte
	if err := sr.ReadRaw(rawSession[:]); err != nil {
		return meta, err
	}
	session, err := uuid.FromBytes(rawSession[:])
	if err != nil {
		return meta, fmt.Errorf("session id: %w", err)
	}
	created, err := sr.ReadInt64()
	if err != nil {
		return meta, err
	}
	meta.Session = session
	meta.CreatedAt = time.Unix(created, 0).UTC()

	nameCount, err := sr.ReadInt32()
	if err != nil {
		return meta, err
	}
	if nameCount < 0 {
		return meta, fmt.Errorf("identifier count %d: %w", nameCount, ErrBadHeader)
	}
	for i := int32(0); i < nameCount; i++ {
		name, err := sr.ReadString()
		if err != nil {
			return meta, err
		}
		if name == nil {
			return meta, fmt.Errorf("identifier table: %w", ErrBadHeader)
		}
		if _, ok := m.ids.TypeFor(*name); !ok {
			return meta, fmt.Errorf("%q: %w", *name, ErrUnknownComponentType)
		}
	}
	return meta, nil
}

func (m *Manager) readCompositionTable(sr *stream.Reader) (*ArchetypeMapper, error) {
	mapper := NewArchetypeMapper(m.world)
	count, err := sr.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("composition count %d: %w", count, ErrBadHeader)
	}
	for i := int32(0); i < count; i++ {
		cid, err := sr.ReadInt32()
		if err != nil {
			return nil, err
		}
		nameCount, err := sr.ReadInt32()
		if err != nil {
			return nil, err
		}
		if nameCount < 0 {
			return nil, fmt.Errorf("composition %d name count %d: %w", cid, nameCount, ErrBadHeader)
		}
		types := make([]reflect.Type, 0, nameCount)
		for j := int32(0); j < nameCount; j++ {
			name, err := sr.ReadString()
			if err != nil {
				return nil, err
			}
			if name == nil {
				return nil, fmt.Errorf("composition table: %w", ErrBadHeader)
			}
			t, ok := m.ids.TypeFor(*name)
			if !ok {
				return nil, fmt.Errorf("%q: %w", *name, ErrUnknownComponentType)
			}
			types = append(types, t)
		}
		mapper.Put(cid, types)
	}
	return mapper, nil
}
