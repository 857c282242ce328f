package persist

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer serializes writes so each job's output stays intact even
// though jobs run on separate goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestSaveAll(t *testing.T) {
	first := newFixture(t, DefaultConfig())
	e := first.world.Create()
	require.NoError(t, first.world.Attach(e, &testVelocity{DX: 1}))

	second := newFixture(t, DefaultConfig())
	e = second.world.Create()
	require.NoError(t, second.world.Attach(e, &testPosition{X: 2}))

	outFirst := &lockedBuffer{}
	outSecond := &lockedBuffer{}
	err := SaveAll(context.Background(), []SaveJob{
		{Name: "alpha", Manager: first.manager, Out: outFirst},
		{Name: "beta", Manager: second.manager, Out: outSecond},
	})
	require.NoError(t, err)

	restoredFirst := newFixture(t, DefaultConfig())
	result, err := restoredFirst.manager.Load(bytes.NewReader(outFirst.buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)

	restoredSecond := newFixture(t, DefaultConfig())
	result, err = restoredSecond.manager.Load(bytes.NewReader(outSecond.buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)
}

func TestSaveAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t, DefaultConfig())
	err := SaveAll(ctx, []SaveJob{
		{Name: "alpha", Manager: f.manager, Out: &bytes.Buffer{}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
