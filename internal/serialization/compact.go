package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned by Cursor when a fixed-width read would run past the end of the buffer.
var ErrInsufficientData = errors.New("insufficient data")

// AppendUint16 appends v as 2 bytes little-endian.
func AppendUint16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

// AppendUint32 appends v as 4 bytes little-endian.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendUint64 appends v as 8 bytes little-endian.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// AppendFloat32 appends the IEEE-754 bits of v.
func AppendFloat32(dst []byte, v float32) []byte {
	return AppendUint32(dst, math.Float32bits(v))
}

// AppendFloat64 appends the IEEE-754 bits of v.
func AppendFloat64(dst []byte, v float64) []byte {
	return AppendUint64(dst, math.Float64bits(v))
}

// AppendBool appends [1 byte: 0x00=false, 0x01=true].
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 0x01)
	}
	return append(dst, 0x00)
}

// AppendString appends [4-byte length][UTF-8 bytes].
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// Cursor reads fixed-width little-endian values from a byte slice.
// Every read is bounds-checked; a failed read leaves the position unchanged.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Reset repositions the cursor at the start of data.
func (c *Cursor) Reset(data []byte) {
	c.data = data
	c.pos = 0
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total length of the underlying buffer.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

func (c *Cursor) take(n int, what string) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, fmt.Errorf("%w for %s: need %d bytes at offset %d, have %d",
			ErrInsufficientData, what, n, c.pos, c.Remaining())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Byte reads one byte.
func (c *Cursor) Byte() (byte, error) {
	b, err := c.take(1, "byte")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Peek returns the next byte without consuming it.
func (c *Cursor) Peek() (byte, error) {
	if c.Remaining() < 1 {
		return 0, fmt.Errorf("%w for byte: at offset %d", ErrInsufficientData, c.pos)
	}
	return c.data[c.pos], nil
}

func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.take(2, "uint16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.take(4, "uint32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.take(8, "uint64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) Float32() (float32, error) {
	u, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func (c *Cursor) Float64() (float64, error) {
	u, err := c.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// Bool reads one byte; only 0x01 is true.
func (c *Cursor) Bool() (bool, error) {
	b, err := c.take(1, "bool")
	if err != nil {
		return false, err
	}
	return b[0] == 0x01, nil
}

// String reads a 4-byte length followed by that many bytes.
func (c *Cursor) String() (string, error) {
	start := c.pos
	n, err := c.Uint32()
	if err != nil {
		return "", fmt.Errorf("%w for string length at offset %d", ErrInsufficientData, start)
	}
	if uint64(n) > uint64(c.Remaining()) {
		c.pos = start
		return "", fmt.Errorf("%w for string content: need %d bytes at offset %d, have %d",
			ErrInsufficientData, n, start+4, len(c.data)-start-4)
	}
	b, _ := c.take(int(n), "string content")
	return string(b), nil
}
