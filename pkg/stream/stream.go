// Package stream implements the primitive wire codec used by the save
// format: zig-zag varints, nullable length-prefixed strings and fixed-width
// floats over a forward-only byte stream. There is no seeking and no
// lookahead; every value is self-delimiting.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxLen caps the length prefix of strings and byte slices. A prefix above
// it is treated as corruption rather than an allocation request.
const MaxLen = 64 << 20

// ErrLengthOverflow reports a length prefix beyond MaxLen.
var ErrLengthOverflow = errors.New("length prefix out of range")

// Writer encodes primitives onto an io.Writer.
type Writer struct {
	w   io.Writer
	buf [binary.MaxVarintLen64]byte
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteInt32 writes a zig-zag encoded 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteInt64(int64(v))
}

// WriteInt64 writes a zig-zag encoded 64-bit integer.
func (w *Writer) WriteInt64(v int64) error {
	n := binary.PutVarint(w.buf[:], v)
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		return fmt.Errorf("write varint: %w", err)
	}
	return nil
}

// WriteUint64 writes an unsigned varint.
func (w *Writer) WriteUint64(v uint64) error {
	n := binary.PutUvarint(w.buf[:], v)
	if _, err := w.w.Write(w.buf[:n]); err != nil {
		return fmt.Errorf("write uvarint: %w", err)
	}
	return nil
}

// WriteBool writes a single 0/1 byte.
func (w *Writer) WriteBool(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	if _, err := w.w.Write([]byte{b}); err != nil {
		return fmt.Errorf("write bool: %w", err)
	}
	return nil
}

// WriteFloat64 writes a fixed 8-byte IEEE 754 value.
func (w *Writer) WriteFloat64(v float64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	if _, err := w.w.Write(b[:]); err != nil {
		return fmt.Errorf("write float64: %w", err)
	}
	return nil
}

// WriteString writes a nullable string. A nil marker is encoded as length
// tag 0; a present string is encoded as len+1 followed by its bytes, so the
// empty string stays distinct from absence.
func (w *Writer) WriteString(s *string) error {
	if s == nil {
		return w.WriteUint64(0)
	}
	if err := w.WriteUint64(uint64(len(*s)) + 1); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, *s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// WriteBytes writes a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.WriteUint64(uint64(len(b))); err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("write bytes: %w", err)
	}
	return nil
}

// WriteRaw writes b without a length prefix.
func (w *Writer) WriteRaw(b []byte) error {
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("write raw: %w", err)
	}
	return nil
}

// Reader decodes primitives from an io.Reader. A truncated stream surfaces
// as a wrapped io.ErrUnexpectedEOF from whichever read hit the end.
type Reader struct {
	r io.ByteReader
	f io.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(interface {
		io.ByteReader
		io.Reader
	})
	if ok {
		return &Reader{r: br, f: br}
	}
	return &Reader{r: &byteReader{r: r}, f: r}
}

type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.one[:]); err != nil {
		return 0, err
	}
	return b.one[0], nil
}

// ReadInt32 reads a zig-zag encoded 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("varint %d overflows int32", v)
	}
	return int32(v), nil
}

// ReadInt64 reads a zig-zag encoded 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := binary.ReadVarint(r.r)
	if err != nil {
		return 0, fmt.Errorf("read varint: %w", eof(err))
	}
	return v, nil
}

// ReadUint64 reads an unsigned varint.
func (r *Reader) ReadUint64() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		return 0, fmt.Errorf("read uvarint: %w", eof(err))
	}
	return v, nil
}

// ReadBool reads a single 0/1 byte.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("read bool: %w", eof(err))
	}
	return b != 0, nil
}

// ReadFloat64 reads a fixed 8-byte IEEE 754 value.
func (r *Reader) ReadFloat64() (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.f, b[:]); err != nil {
		return 0, fmt.Errorf("read float64: %w", eof(err))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

// ReadString reads a nullable string; nil means the null marker was present.
func (r *Reader) ReadString() (*string, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n-1 > MaxLen {
		return nil, fmt.Errorf("string length %d: %w", n-1, ErrLengthOverflow)
	}
	b := make([]byte, n-1)
	if _, err := io.ReadFull(r.f, b); err != nil {
		return nil, fmt.Errorf("read string: %w", eof(err))
	}
	s := string(b)
	return &s, nil
}

// ReadBytes reads a length-prefixed byte slice.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > MaxLen {
		return nil, fmt.Errorf("byte length %d: %w", n, ErrLengthOverflow)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.f, b); err != nil {
		return nil, fmt.Errorf("read bytes: %w", eof(err))
	}
	return b, nil
}

// ReadRaw reads exactly len(b) bytes into b.
func (r *Reader) ReadRaw(b []byte) error {
	if _, err := io.ReadFull(r.f, b); err != nil {
		return fmt.Errorf("read raw: %w", eof(err))
	}
	return nil
}

// eof normalizes a bare EOF in the middle of a value to ErrUnexpectedEOF so
// truncation is distinguishable from a clean end of stream.
func eof(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
