package stream

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestStream_Integers(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	values := []int32{0, 1, -1, 42, -420, math.MaxInt32, math.MinInt32}
	for _, v := range values {
		require.NoError(t, w.WriteInt32(v))
	}

	r := NewReader(&buf)
	for _, v := range values {
		got, err := r.ReadInt32()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestStream_Strings(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteString(str("player")))
	require.NoError(t, w.WriteString(nil))
	require.NoError(t, w.WriteString(str("")))

	r := NewReader(&buf)

	got, err := r.ReadString()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "player", *got)

	got, err = r.ReadString()
	require.NoError(t, err)
	assert.Nil(t, got, "null marker must round-trip as nil")

	got, err = r.ReadString()
	require.NoError(t, err)
	require.NotNil(t, got, "empty string is distinct from the null marker")
	assert.Equal(t, "", *got)
}

func TestStream_FloatsAndBools(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteFloat64(3.5))
	require.NoError(t, w.WriteFloat64(-0.25))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteBool(false))

	r := NewReader(&buf)

	f, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)
	f, err = r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -0.25, f)

	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)
	b, err = r.ReadBool()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestStream_TruncatedString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteString(str("truncated payload")))

	short := buf.Bytes()[:4]
	r := NewReader(bytes.NewReader(short))

	_, err := r.ReadString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestStream_OversizedStringLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(1<<62))

	r := NewReader(&buf)
	_, err := r.ReadString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthOverflow),
		"a corrupt length prefix must fail cleanly, not allocate")
}

func TestStream_OversizedByteLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(MaxLen+1))

	r := NewReader(&buf)
	_, err := r.ReadBytes()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthOverflow))
}

func TestStream_TruncatedFloat(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}))
	_, err := r.ReadFloat64()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
