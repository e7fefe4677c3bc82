package binx

// Marshal encodes v as a single frame.
func Marshal(v any, opts ...Option) ([]byte, error) {
	w, err := NewWriter(opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Write(v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Unmarshal decodes data holding exactly one frame.
func Unmarshal(data []byte, opts ...Option) (any, error) {
	r, err := NewReader(data, opts...)
	if err != nil {
		return nil, err
	}
	v, err := r.Read()
	if err != nil {
		return nil, err
	}
	if r.More() {
		return nil, &ParseError{Offset: r.Offset(), Detail: "trailing bytes after frame", Err: ErrBadTag}
	}
	return v, nil
}

// UnmarshalAs decodes a single frame and converts the result to T.
func UnmarshalAs[T any](data []byte, opts ...Option) (T, error) {
	var zero T
	v, err := Unmarshal(data, opts...)
	if err != nil {
		return zero, err
	}
	out, err := As[T](v)
	if err != nil {
		return zero, &ParseError{Detail: "result", Err: err}
	}
	return out, nil
}
