package serialization

import (
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"uint16", AppendUint16(nil, 0x0102), []byte{0x02, 0x01}},
		{"uint32", AppendUint32(nil, 42), []byte{42, 0, 0, 0}},
		{"uint64", AppendUint64(nil, 1), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"float32", AppendFloat32(nil, 1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"float64", AppendFloat64(nil, 1), []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"true", AppendBool(nil, true), []byte{0x01}},
		{"false", AppendBool(nil, false), []byte{0x00}},
		{"string", AppendString(nil, "ok"), []byte{2, 0, 0, 0, 'o', 'k'}},
		{"empty string", AppendString(nil, ""), []byte{0, 0, 0, 0}},
		{"appends", AppendUint16([]byte{0xff}, 1), []byte{0xff, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	var buf []byte
	buf = append(buf, 7)
	buf = AppendUint16(buf, 65535)
	buf = AppendUint32(buf, math.MaxUint32)
	buf = AppendUint64(buf, 1<<63)
	buf = AppendFloat32(buf, 3.5)
	buf = AppendFloat64(buf, -2.25)
	buf = AppendBool(buf, true)
	buf = AppendString(buf, "héllo")

	c := NewCursor(buf)

	b, err := c.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)

	u16, err := c.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), u16)

	u32, err := c.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), u32)

	u64, err := c.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63), u64)

	f32, err := c.Float32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := c.Float64()
	require.NoError(t, err)
	assert.Equal(t, -2.25, f64)

	ok, err := c.Bool()
	require.NoError(t, err)
	assert.True(t, ok)

	s, err := c.String()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	assert.Zero(t, c.Remaining(), "cursor should be drained")
}

func TestCursorInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(c *Cursor) error
	}{
		{"byte", nil, func(c *Cursor) error { _, err := c.Byte(); return err }},
		{"uint16", []byte{1}, func(c *Cursor) error { _, err := c.Uint16(); return err }},
		{"uint32", []byte{1, 2, 3}, func(c *Cursor) error { _, err := c.Uint32(); return err }},
		{"uint64", []byte{1, 2, 3, 4, 5, 6, 7}, func(c *Cursor) error { _, err := c.Uint64(); return err }},
		{"float64", []byte{1, 2, 3, 4}, func(c *Cursor) error { _, err := c.Float64(); return err }},
		{"string length", []byte{5, 0}, func(c *Cursor) error { _, err := c.String(); return err }},
		{"string content", []byte{5, 0, 0, 0, 'a'}, func(c *Cursor) error { _, err := c.String(); return err }},
		{"huge string length", []byte{0xff, 0xff, 0xff, 0xff}, func(c *Cursor) error { _, err := c.String(); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.data)
			err := tt.read(c)
			require.ErrorIs(t, err, ErrInsufficientData)
			assert.Zero(t, c.Pos(), "failed read must not advance")
		})
	}
}

func TestCursorReset(t *testing.T) {
	c := NewCursor([]byte{1})
	_, err := c.Byte()
	require.NoError(t, err)

	c.Reset([]byte{9, 8})
	assert.Zero(t, c.Pos())
	assert.Equal(t, 2, c.Len())

	p, err := c.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte(9), p)
	assert.Zero(t, c.Pos(), "Peek must not advance")
}

func TestGOBSerializerKeepsDynamicType(t *testing.T) {
	type point struct{ X, Y int }
	gob.Register(point{})

	var s Serializer = GOBSerializer{}
	data, err := s.Serialize(point{X: 1, Y: 2})
	require.NoError(t, err)

	v, err := s.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, v)
}
