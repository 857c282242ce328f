package persist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/worldsave/internal/core/ecs"
	"github.com/driftsync/worldsave/pkg/stream"
)

// readRecordHeader consumes the fixed leading fields of one entity record
// and returns the explicit component count.
func readRecordHeader(t *testing.T, r *stream.Reader) (cid int32, tag, key *string, groups []string, count int32) {
	t.Helper()
	var err error
	cid, err = r.ReadInt32()
	require.NoError(t, err)
	tag, err = r.ReadString()
	require.NoError(t, err)
	key, err = r.ReadString()
	require.NoError(t, err)
	groupCount, err := r.ReadInt32()
	require.NoError(t, err)
	for i := int32(0); i < groupCount; i++ {
		g, err := r.ReadString()
		require.NoError(t, err)
		require.NotNil(t, g)
		groups = append(groups, *g)
	}
	count, err = r.ReadInt32()
	require.NoError(t, err)
	return cid, tag, key, groups, count
}

func TestWrite_ElidesDefaultComponents(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.world.Create()
	require.NoError(t, f.world.Attach(e, &testPosition{}))
	require.NoError(t, f.world.Attach(e, &testVelocity{DX: 5}))

	var buf bytes.Buffer
	require.NoError(t, f.newSerializer().Write(stream.NewWriter(&buf), e))

	r := stream.NewReader(&buf)
	cid, tag, key, groups, count := readRecordHeader(t, r)
	assert.GreaterOrEqual(t, cid, int32(0))
	assert.Nil(t, tag)
	assert.Nil(t, key)
	assert.Empty(t, groups)
	require.Equal(t, int32(1), count, "default-valued Position must be elided")

	name, err := r.ReadString()
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "Velocity", *name)
}

func TestWrite_SkipsTransientComponents(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.world.Create()
	require.NoError(t, f.world.Attach(e, &testScratch{N: 7}))
	require.NoError(t, f.world.Attach(e, &testVelocity{DX: 1}))

	var buf bytes.Buffer
	require.NoError(t, f.newSerializer().Write(stream.NewWriter(&buf), e))

	r := stream.NewReader(&buf)
	_, _, _, _, count := readRecordHeader(t, r)
	require.Equal(t, int32(1), count, "transient Scratch must never be emitted")

	name, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Velocity", *name)
}

func TestWrite_TagKeyAndGroups(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.world.Create()
	require.NoError(t, f.world.Attach(e, &testVelocity{DX: 5}))
	require.NoError(t, f.world.Attach(e, &SaveKey{Key: "hero"}))
	require.NoError(t, f.tags.Register("player", e))
	f.groups.Add(e, "party")

	var buf bytes.Buffer
	require.NoError(t, f.newSerializer().Write(stream.NewWriter(&buf), e))

	r := stream.NewReader(&buf)
	_, tag, key, groups, count := readRecordHeader(t, r)
	require.NotNil(t, tag)
	assert.Equal(t, "player", *tag)
	require.NotNil(t, key)
	assert.Equal(t, "hero", *key)
	assert.Equal(t, []string{"party"}, groups)
	assert.Equal(t, int32(1), count, "SaveKey travels in the key slot, not as a component")
}

func TestWrite_StableByteOrdering(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	e := f.world.Create()
	require.NoError(t, f.world.Attach(e, &testVelocity{DX: 2, DY: 3}))
	require.NoError(t, f.world.Attach(e, &testPosition{X: 1}))
	require.NoError(t, f.world.Attach(e, &testOwner{Target: 9}))

	write := func() []byte {
		var buf bytes.Buffer
		require.NoError(t, f.newSerializer().Write(stream.NewWriter(&buf), e))
		return buf.Bytes()
	}

	first := write()
	second := write()
	assert.Equal(t, first, second, "same entity state must serialize byte-identically")
}

func TestWrite_UnregisteredComponentFails(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	type rogue struct{ V int }
	f.world.RegisterComponent(func() ecs.Component { return &rogue{} })

	e := f.world.Create()
	require.NoError(t, f.world.Attach(e, &rogue{V: 1}))

	var buf bytes.Buffer
	err := f.newSerializer().Write(stream.NewWriter(&buf), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnregisteredComponent)
}

func TestRead_RejectsNegativeCounts(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	corrupt := func(build func(w *stream.Writer)) error {
		var buf bytes.Buffer
		build(stream.NewWriter(&buf))
		_, err := f.newSerializer().Read(stream.NewReader(&buf))
		return err
	}

	err := corrupt(func(w *stream.Writer) {
		require.NoError(t, w.WriteInt32(-1))
		require.NoError(t, w.WriteString(nil))
		require.NoError(t, w.WriteString(nil))
		require.NoError(t, w.WriteInt32(-3))
	})
	assert.ErrorIs(t, err, ErrCorruptRecord, "negative group count")

	err = corrupt(func(w *stream.Writer) {
		require.NoError(t, w.WriteInt32(-1))
		require.NoError(t, w.WriteString(nil))
		require.NoError(t, w.WriteString(nil))
		require.NoError(t, w.WriteInt32(0))
		require.NoError(t, w.WriteInt32(-5))
	})
	assert.ErrorIs(t, err, ErrCorruptRecord, "negative component count")
}

func TestRead_RejectsOversizedTagLength(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	require.NoError(t, w.WriteInt32(-1))
	// length prefix of the tag string, far past any plausible save
	require.NoError(t, w.WriteUint64(1<<62))

	_, err := f.newSerializer().Read(stream.NewReader(&buf))
	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrLengthOverflow)
}

func TestWrite_NestedReferenceIsBareID(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	a := f.world.Create()
	b := f.world.Create()
	require.NoError(t, f.world.Attach(a, &testOwner{Target: b}))

	var buf bytes.Buffer
	require.NoError(t, f.newSerializer().Write(stream.NewWriter(&buf), a))

	r := stream.NewReader(&buf)
	_, _, _, _, count := readRecordHeader(t, r)
	require.Equal(t, int32(1), count)

	name, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Owner", *name)

	// payload is exactly the referenced entity's raw ID, no nested record
	id, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(b), id)

	_, err = r.ReadInt32()
	assert.Error(t, err, "nothing may follow the bare reference ID")
}
