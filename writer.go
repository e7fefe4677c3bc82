package binx

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/hengadev/binx/internal/serialization"
)

// Writer encodes value graphs into frames appended to an in-memory buffer.
// A Writer must not be used from more than one goroutine at a time.
type Writer struct {
	buf  []byte
	opts *options
}

// NewWriter returns an empty writer.
func NewWriter(opts ...Option) (*Writer, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Writer{opts: o}, nil
}

// Write appends one complete frame holding v. On error nothing is appended.
func (w *Writer) Write(v any) error {
	start := time.Now()
	mark := len(w.buf)

	w.buf = append(w.buf, byte(TagStart))
	err := w.writeValue(v)
	if err == nil {
		w.buf = append(w.buf, byte(TagEnd))
	} else {
		w.buf = w.buf[:mark]
	}

	size := len(w.buf) - mark
	elapsed := time.Since(start)
	w.opts.hook.OnFrameEncoded(size, elapsed, err)
	if err != nil {
		w.opts.logger.Debug("frame encode failed", "type", fmt.Sprintf("%T", v), "error", err)
		return err
	}
	w.opts.logger.Debug("frame encoded", "bytes", size, "duration", elapsed)
	return nil
}

// WriteObject appends a single value without frame markers. Custom encoders call it for
// nested values. On error nothing is appended.
func (w *Writer) WriteObject(v any) error {
	mark := len(w.buf)
	if err := w.writeValue(v); err != nil {
		w.buf = w.buf[:mark]
		return err
	}
	return nil
}

// Bytes returns a copy of everything written so far.
func (w *Writer) Bytes() []byte {
	return slices.Clone(w.buf)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset discards the buffered bytes so the writer can be reused.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

func (w *Writer) tag(t Tag) {
	w.buf = append(w.buf, byte(t))
}

func (w *Writer) writeValue(v any) error {
	switch x := v.(type) {
	case nil:
		w.tag(TagNull)
		return nil
	case uint8:
		w.tag(TagByte)
		return w.WriteByte(x)
	case int16:
		w.tag(TagShort)
		return w.WriteShort(x)
	case int32:
		w.tag(TagInt)
		return w.WriteInt(x)
	case int64:
		w.tag(TagLong)
		return w.WriteLong(x)
	case float32:
		w.tag(TagFloat)
		return w.WriteFloat(x)
	case float64:
		w.tag(TagDouble)
		return w.WriteDouble(x)
	case bool:
		w.tag(TagBoolean)
		return w.WriteBoolean(x)
	case Char:
		w.tag(TagChar)
		return w.WriteChar(x)
	case string:
		w.tag(TagString)
		return w.WriteString(x)
	}

	rv := reflect.ValueOf(v)
	if nillable(rv.Type()) && rv.IsNil() {
		w.tag(TagNull)
		return nil
	}
	t := rv.Type()
	ti, known := types.lookupType(t)

	if known && ti.enum != nil {
		return w.writeEnum(ti, rv)
	}

	// Named slice and array types with a codec of their own skip the ARRAY form, and so
	// does any array whose element type has no wire name.
	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && !(t.Name() != "" && w.hasCodec(t)) {
		if elemName, ok := typeName(t.Elem(), w.opts.registry); ok {
			return w.writeArray(rv, elemName)
		}
	}

	if known {
		if f, ok := asFlattener(rv); ok {
			if m := f.Flatten(); m != nil {
				w.tag(TagFSerializable)
				if err := w.WriteString(ti.name); err != nil {
					return err
				}
				return w.writeValue(m)
			}
			return w.writeFields(ti, rv)
		}
		if ti.fields != nil {
			return w.writeFields(ti, rv)
		}
	}

	if e, ok := builtins().lookup(t); ok {
		return w.writeReserved(e, v)
	}
	if w.opts.registry != nil {
		if e, ok := w.opts.registry.lookup(t); ok {
			return w.writeReserved(e, v)
		}
	}

	if w.opts.blob.Supports(t) {
		data, err := w.opts.blob.Marshal(v)
		if err != nil {
			return fmt.Errorf("binx: opaque encoding of %s: %w", t, err)
		}
		w.tag(TagSerializable)
		return w.writeValue(data)
	}

	return newNotSupportedTypeError(t)
}

func (w *Writer) writeEnum(ti *typeInfo, rv reflect.Value) error {
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	constName, ok := ti.enum.byValue[rv.Interface()]
	if !ok {
		return fmt.Errorf("%w: %v of %s", ErrUndeclaredConstant, rv.Interface(), ti.name)
	}
	w.tag(TagEnum)
	if err := w.WriteString(ti.name); err != nil {
		return err
	}
	return w.WriteString(constName)
}

// hasCodec reports whether t is handled by a registry or the blob codec.
func (w *Writer) hasCodec(t reflect.Type) bool {
	if _, ok := builtins().lookup(t); ok {
		return true
	}
	if w.opts.registry != nil {
		if _, ok := w.opts.registry.lookup(t); ok {
			return true
		}
	}
	return w.opts.blob.Supports(t)
}

func (w *Writer) writeArray(rv reflect.Value, elemName string) error {
	n := rv.Len()
	if n > math.MaxInt32 {
		return fmt.Errorf("%w: array of %d elements", ErrNotSupportedType, n)
	}
	w.tag(TagArray)
	if err := w.WriteString(elemName); err != nil {
		return err
	}
	if err := w.WriteInt(int32(n)); err != nil {
		return err
	}
	for i := range n {
		if err := w.writeValue(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFields(ti *typeInfo, rv reflect.Value) error {
	ptr := rv
	if rv.Kind() != reflect.Pointer {
		ptr = reflect.New(rv.Type())
		ptr.Elem().Set(rv)
	}
	var fields []fieldDesc
	if ti.fields != nil {
		fields = ti.fields.fields
	}

	w.tag(TagObject)
	if err := w.WriteString(ti.name); err != nil {
		return err
	}
	if err := w.WriteInt(int32(len(fields))); err != nil {
		return err
	}
	for _, f := range fields {
		w.tag(TagField)
		if err := w.WriteString(f.name); err != nil {
			return err
		}
		if err := w.writeValue(f.get(ptr)); err != nil {
			return fmt.Errorf("field %s.%s: %w", ti.name, f.name, err)
		}
	}
	return nil
}

func (w *Writer) writeReserved(e *registryEntry, v any) error {
	w.tag(TagReserved)
	if err := w.WriteString(e.name); err != nil {
		return err
	}
	return e.codec.Encode(v, w)
}

// Raw helpers. They write a payload without a tag and are meant for custom encoders.

func (w *Writer) WriteByte(c byte) error {
	w.buf = append(w.buf, c)
	return nil
}

func (w *Writer) WriteShort(v int16) error {
	w.buf = serialization.AppendUint16(w.buf, uint16(v))
	return nil
}

func (w *Writer) WriteInt(v int32) error {
	w.buf = serialization.AppendUint32(w.buf, uint32(v))
	return nil
}

func (w *Writer) WriteLong(v int64) error {
	w.buf = serialization.AppendUint64(w.buf, uint64(v))
	return nil
}

func (w *Writer) WriteFloat(v float32) error {
	w.buf = serialization.AppendFloat32(w.buf, v)
	return nil
}

func (w *Writer) WriteDouble(v float64) error {
	w.buf = serialization.AppendFloat64(w.buf, v)
	return nil
}

func (w *Writer) WriteBoolean(v bool) error {
	w.buf = serialization.AppendBool(w.buf, v)
	return nil
}

func (w *Writer) WriteChar(v Char) error {
	w.buf = serialization.AppendUint16(w.buf, uint16(v))
	return nil
}

// WriteString writes a 4-byte length followed by the UTF-8 bytes of s.
func (w *Writer) WriteString(s string) error {
	if len(s) > math.MaxInt32 {
		return fmt.Errorf("%w: string of %d bytes", ErrNotSupportedType, len(s))
	}
	w.buf = serialization.AppendString(w.buf, s)
	return nil
}
