package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/internal/core/observability/log"
)

// Test component set: a value component, a second value component to
// exercise ordering, a reference-holding component and a transient one.

type testPosition struct{ X, Y float64 }

type testVelocity struct{ DX, DY float64 }

type testOwner struct{ Target ecs.Entity }

func (o *testOwner) References() []*ecs.Entity { return []*ecs.Entity{&o.Target} }

type testScratch struct{ N int32 }

// testShield is owned by testLoadout: it never serializes on its own, the
// loadout payload carries it and rebuilds it into the entity's storage slot
// on decode.
type testShield struct{ HP int32 }

type testLoadout struct {
	Capacity int32
	Shield   *testShield
}

func newTestIdentifiers(t *testing.T) *ComponentIdentifiers {
	t.Helper()
	ids := NewComponentIdentifiers()

	_, err := ids.Register("Position",
		func() ecs.Component { return &testPosition{} },
		CodecFuncs{
			EncodeFunc: func(enc *Encoder, c ecs.Component) error {
				p := c.(*testPosition)
				if err := enc.Stream().WriteFloat64(p.X); err != nil {
					return err
				}
				return enc.Stream().WriteFloat64(p.Y)
			},
			DecodeFunc: func(dec *Decoder, c ecs.Component) error {
				p := c.(*testPosition)
				var err error
				if p.X, err = dec.Stream().ReadFloat64(); err != nil {
					return err
				}
				p.Y, err = dec.Stream().ReadFloat64()
				return err
			},
		})
	require.NoError(t, err)

	_, err = ids.Register("Velocity",
		func() ecs.Component { return &testVelocity{} },
		CodecFuncs{
			EncodeFunc: func(enc *Encoder, c ecs.Component) error {
				v := c.(*testVelocity)
				if err := enc.Stream().WriteFloat64(v.DX); err != nil {
					return err
				}
				return enc.Stream().WriteFloat64(v.DY)
			},
			DecodeFunc: func(dec *Decoder, c ecs.Component) error {
				v := c.(*testVelocity)
				var err error
				if v.DX, err = dec.Stream().ReadFloat64(); err != nil {
					return err
				}
				v.DY, err = dec.Stream().ReadFloat64()
				return err
			},
		})
	require.NoError(t, err)

	_, err = ids.Register("Owner",
		func() ecs.Component { return &testOwner{Target: ecs.NoEntity} },
		CodecFuncs{
			EncodeFunc: func(enc *Encoder, c ecs.Component) error {
				return enc.WriteEntity(c.(*testOwner).Target)
			},
			DecodeFunc: func(dec *Decoder, c ecs.Component) error {
				target, err := dec.ReadEntity()
				if err != nil {
					return err
				}
				c.(*testOwner).Target = target
				return nil
			},
		})
	require.NoError(t, err)

	_, err = ids.Register("Scratch",
		func() ecs.Component { return &testScratch{} },
		nil, Transient())
	require.NoError(t, err)

	shieldType, err := ids.Register("Shield",
		func() ecs.Component { return &testShield{} },
		nil, Transient())
	require.NoError(t, err)

	_, err = ids.Register("Loadout",
		func() ecs.Component { return &testLoadout{} },
		CodecFuncs{
			EncodeFunc: func(enc *Encoder, c ecs.Component) error {
				l := c.(*testLoadout)
				if err := enc.Stream().WriteInt32(l.Capacity); err != nil {
					return err
				}
				if err := enc.Stream().WriteBool(l.Shield != nil); err != nil {
					return err
				}
				if l.Shield == nil {
					return nil
				}
				return enc.Stream().WriteInt32(l.Shield.HP)
			},
			DecodeFunc: func(dec *Decoder, c ecs.Component) error {
				l := c.(*testLoadout)
				var err error
				if l.Capacity, err = dec.Stream().ReadInt32(); err != nil {
					return err
				}
				has, err := dec.Stream().ReadBool()
				if err != nil {
					return err
				}
				if !has {
					return nil
				}
				shield, err := dec.Create(shieldType)
				if err != nil {
					return err
				}
				l.Shield = shield.(*testShield)
				l.Shield.HP, err = dec.Stream().ReadInt32()
				return err
			},
		})
	require.NoError(t, err)

	return ids
}

type fixture struct {
	world   *ecs.World
	tags    *ecs.TagManager
	groups  *ecs.GroupManager
	ids     *ComponentIdentifiers
	manager *Manager
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	world := ecs.NewWorld()
	tags := ecs.NewTagManager()
	groups := ecs.NewGroupManager()
	ids := newTestIdentifiers(t)
	manager := NewManager(world, tags, groups, ids, cfg, log.Nop())
	return &fixture{
		world:   world,
		tags:    tags,
		groups:  groups,
		ids:     ids,
		manager: manager,
	}
}

// newSerializer builds a standalone serializer over the fixture for tests
// that inspect single records instead of whole save streams.
func (f *fixture) newSerializer() *EntitySerializer {
	defaults := NewDefaultValueStore(f.ids)
	refs := NewReferenceTracker(log.Nop())
	return NewEntitySerializer(f.world, f.tags, f.groups, f.ids, defaults, refs, log.Nop())
}
