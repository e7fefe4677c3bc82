package binx

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/hengadev/binx/internal/serialization"
)

// Reader decodes frames from a byte slice, mirroring Writer exactly.
// A Reader must not be used from more than one goroutine at a time.
type Reader struct {
	cur  serialization.Cursor
	opts *options
}

// NewReader returns a reader positioned at the start of data.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	r := &Reader{opts: o}
	r.cur.Reset(data)
	return r, nil
}

// Reset points the reader at a new buffer.
func (r *Reader) Reset(data []byte) {
	r.cur.Reset(data)
}

// Offset returns the position of the next unread byte.
func (r *Reader) Offset() int { return r.cur.Pos() }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return r.cur.Remaining() }

// More reports whether another frame may follow.
func (r *Reader) More() bool { return r.cur.Remaining() > 0 }

// Read consumes one complete frame and returns its value.
func (r *Reader) Read() (any, error) {
	start := time.Now()
	begin := r.cur.Pos()

	v, err := r.readFrame()

	size := r.cur.Pos() - begin
	elapsed := time.Since(start)
	r.opts.hook.OnFrameDecoded(size, elapsed, err)
	if err != nil {
		r.opts.logger.Warn("frame decode failed", "offset", begin, "error", err)
		return nil, err
	}
	r.opts.logger.Debug("frame decoded", "bytes", size, "duration", elapsed)
	return v, nil
}

func (r *Reader) readFrame() (any, error) {
	if r.cur.Remaining() == 0 {
		return nil, &ParseError{Offset: r.cur.Pos(), Detail: "read over end of input", Err: ErrTruncated}
	}
	if err := r.expect(TagStart); err != nil {
		return nil, err
	}
	v, err := r.ReadObject()
	if err != nil {
		return nil, err
	}
	if err := r.expect(TagEnd); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Reader) expect(want Tag) error {
	off := r.cur.Pos()
	b, err := r.cur.Byte()
	if err != nil {
		return &ParseError{Offset: off, Detail: "missing " + want.String(), Err: fmt.Errorf("%w: %w", ErrTruncated, err)}
	}
	if got := Tag(b); got != want {
		return &ParseError{Offset: off, Tag: got, Detail: "expected " + want.String(), Err: ErrBadTag}
	}
	return nil
}

// ReadObject consumes a single value. Custom decoders call it for nested values.
func (r *Reader) ReadObject() (any, error) {
	off := r.cur.Pos()
	b, err := r.cur.Byte()
	if err != nil {
		return nil, &ParseError{Offset: off, Detail: "missing tag", Err: fmt.Errorf("%w: %w", ErrTruncated, err)}
	}
	tag := Tag(b)
	v, err := r.readPayload(tag)
	if err != nil {
		return nil, wrapParseError(off, tag, "", err)
	}
	return v, nil
}

// wrapParseError attaches position information to err unless it already carries some.
func wrapParseError(off int, tag Tag, detail string, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Offset: off, Tag: tag, Detail: detail, Err: err}
}

func (r *Reader) readPayload(tag Tag) (any, error) {
	switch tag {
	case TagNull:
		return nil, nil
	case TagByte:
		return r.ReadByte()
	case TagShort:
		return r.ReadShort()
	case TagInt:
		return r.ReadInt()
	case TagLong:
		return r.ReadLong()
	case TagFloat:
		return r.ReadFloat()
	case TagDouble:
		return r.ReadDouble()
	case TagBoolean:
		return r.ReadBoolean()
	case TagChar:
		return r.ReadChar()
	case TagString:
		return r.ReadString()
	case TagEnum:
		return r.readEnum()
	case TagArray:
		return r.readArray()
	case TagFSerializable:
		return r.readSelfDescribing()
	case TagObject:
		return r.readComposite()
	case TagReserved:
		return r.readReserved()
	case TagSerializable:
		return r.readBlob()
	}
	return nil, fmt.Errorf("%w: %s cannot start a value", ErrBadTag, tag)
}

func (r *Reader) readEnum() (any, error) {
	off := r.cur.Pos()
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	t, err := r.resolveType(name)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagEnum, Detail: "enum type", Err: err}
	}
	ti, ok := types.lookupType(t)
	if !ok || ti.enum == nil {
		return nil, &ParseError{Offset: off, Tag: TagEnum, Detail: fmt.Sprintf("%q is not an enum", name), Err: ErrTypeNotFound}
	}
	constOff := r.cur.Pos()
	constName, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	v, ok := ti.enum.byName[constName]
	if !ok {
		return nil, &ParseError{Offset: constOff, Tag: TagEnum, Detail: fmt.Sprintf("%s.%s", name, constName), Err: ErrUnknownConstant}
	}
	return v.Interface(), nil
}

func (r *Reader) readArray() (any, error) {
	off := r.cur.Pos()
	elemName, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	et, err := r.resolveElem(elemName)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagArray, Detail: "element type", Err: err}
	}
	n, err := r.readCount(1)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(et), n, n)
	for i := range n {
		elemOff := r.cur.Pos()
		v, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		ev, err := convertValue(v, et)
		if err != nil {
			return nil, &ParseError{Offset: elemOff, Tag: TagArray, Detail: fmt.Sprintf("element %d", i), Err: err}
		}
		out.Index(i).Set(ev)
	}
	return out.Interface(), nil
}

func (r *Reader) readSelfDescribing() (any, error) {
	off := r.cur.Pos()
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	valOff := r.cur.Pos()
	v, err := r.ReadObject()
	if err != nil {
		return nil, err
	}
	fields, ok := v.(map[string]any)
	if !ok || fields == nil {
		return nil, &ParseError{Offset: valOff, Tag: TagFSerializable, Detail: fmt.Sprintf("%s payload is %T", name, v), Err: ErrNotMapping}
	}
	t, err := r.resolveType(name)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagFSerializable, Err: err}
	}
	obj, err := reconstruct(t, fields)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagFSerializable, Detail: "reconstruct " + name, Err: err}
	}
	return obj, nil
}

// minFieldSize is a FIELD tag, a 4-byte name length and a one-byte value.
const minFieldSize = 6

func (r *Reader) readComposite() (any, error) {
	off := r.cur.Pos()
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	t, err := r.resolveType(name)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagObject, Err: err}
	}
	base := t
	if t.Kind() == reflect.Pointer {
		base = t.Elem()
	}
	table, err := fieldsFor(base)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagObject, Detail: name, Err: err}
	}
	n, err := r.readCount(minFieldSize)
	if err != nil {
		return nil, err
	}

	ptr := reflect.New(base)
	for range n {
		if err := r.readField(name, table, ptr); err != nil {
			return nil, err
		}
	}
	if t.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

func (r *Reader) readField(owner string, table *fieldTable, ptr reflect.Value) error {
	off := r.cur.Pos()
	if err := r.expect(TagField); err != nil {
		return err
	}
	fieldName, err := r.ReadString()
	if err != nil {
		return err
	}
	f, ok := table.lookup(fieldName)
	if !ok {
		return &ParseError{Offset: off, Tag: TagField, Detail: owner + "." + fieldName, Err: ErrUnknownField}
	}
	v, err := r.ReadObject()
	if err != nil {
		return err
	}
	if err := f.set(ptr, v); err != nil {
		return &ParseError{Offset: off, Tag: TagField, Detail: owner + "." + fieldName, Err: err}
	}
	return nil
}

func (r *Reader) readReserved() (any, error) {
	off := r.cur.Pos()
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	// registry names win over universe names for RESERVED payloads
	t, ok := builtins().typeOf(name)
	if !ok && r.opts.registry != nil {
		t, ok = r.opts.registry.typeOf(name)
	}
	if !ok {
		if t, err = r.resolveType(name); err != nil {
			return nil, &ParseError{Offset: off, Tag: TagReserved, Err: err}
		}
	}
	e, ok := builtins().lookup(t)
	if !ok && r.opts.registry != nil {
		e, ok = r.opts.registry.lookup(t)
	}
	if !ok {
		return nil, &ParseError{Offset: off, Tag: TagReserved, Detail: fmt.Sprintf("%q (%s)", name, t), Err: ErrNoDecoder}
	}
	v, err := e.codec.Decode(t, r)
	if err != nil {
		return nil, wrapParseError(off, TagReserved, "decode "+name, err)
	}
	return v, nil
}

func (r *Reader) readBlob() (any, error) {
	off := r.cur.Pos()
	v, err := r.ReadObject()
	if err != nil {
		return nil, err
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, &ParseError{Offset: off, Tag: TagSerializable, Detail: fmt.Sprintf("payload is %T", v), Err: ErrTypeMismatch}
	}
	obj, err := r.opts.blob.Unmarshal(data)
	if err != nil {
		return nil, &ParseError{Offset: off, Tag: TagSerializable, Detail: "opaque decoding", Err: err}
	}
	return obj, nil
}

// readCount reads an element count and checks that the input can hold that many
// elements of at least minSize bytes before anything is allocated.
func (r *Reader) readCount(minSize int) (int, error) {
	off := r.cur.Pos()
	n, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &ParseError{Offset: off, Detail: fmt.Sprintf("negative count %d", n), Err: ErrTruncated}
	}
	if int64(n)*int64(minSize) > int64(r.cur.Remaining()) {
		return 0, &ParseError{Offset: off, Detail: fmt.Sprintf("count %d exceeds remaining %d bytes", n, r.cur.Remaining()), Err: ErrTruncated}
	}
	return int(n), nil
}

func (r *Reader) truncated(off int, err error) error {
	return &ParseError{Offset: off, Err: fmt.Errorf("%w: %w", ErrTruncated, err)}
}

// Raw helpers. They read a payload without a tag and are meant for custom decoders.

func (r *Reader) ReadByte() (byte, error) {
	off := r.cur.Pos()
	b, err := r.cur.Byte()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return b, nil
}

func (r *Reader) ReadShort() (int16, error) {
	off := r.cur.Pos()
	v, err := r.cur.Uint16()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return int16(v), nil
}

func (r *Reader) ReadInt() (int32, error) {
	off := r.cur.Pos()
	v, err := r.cur.Uint32()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return int32(v), nil
}

func (r *Reader) ReadLong() (int64, error) {
	off := r.cur.Pos()
	v, err := r.cur.Uint64()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return int64(v), nil
}

func (r *Reader) ReadFloat() (float32, error) {
	off := r.cur.Pos()
	v, err := r.cur.Float32()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return v, nil
}

func (r *Reader) ReadDouble() (float64, error) {
	off := r.cur.Pos()
	v, err := r.cur.Float64()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return v, nil
}

// ReadBoolean reads one byte; only 1 is true.
func (r *Reader) ReadBoolean() (bool, error) {
	off := r.cur.Pos()
	v, err := r.cur.Bool()
	if err != nil {
		return false, r.truncated(off, err)
	}
	return v, nil
}

func (r *Reader) ReadChar() (Char, error) {
	off := r.cur.Pos()
	v, err := r.cur.Uint16()
	if err != nil {
		return 0, r.truncated(off, err)
	}
	return Char(v), nil
}

func (r *Reader) ReadString() (string, error) {
	off := r.cur.Pos()
	s, err := r.cur.String()
	if err != nil {
		return "", r.truncated(off, err)
	}
	return s, nil
}
