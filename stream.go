package binx

import (
	"errors"
	"fmt"
	"io"
)

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// StreamWriter encodes a single frame into a sink. The payload is built in memory first;
// only then is it written, flushed and the sink closed. A StreamWriter is single-use.
type StreamWriter struct {
	sink   io.WriteCloser
	w      *Writer
	closed bool
}

// NewStreamWriter wraps sink. Options are those of NewWriter.
func NewStreamWriter(sink io.WriteCloser, opts ...Option) (*StreamWriter, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidConfiguration)
	}
	w, err := NewWriter(opts...)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{sink: sink, w: w}, nil
}

// Write encodes v, then writes, flushes and closes the sink. An encoding error leaves the
// sink untouched and open. Once the sink has been handed the payload it is closed even if
// writing or flushing failed.
func (s *StreamWriter) Write(v any) error {
	if s.closed {
		return newResourceError("write", ErrSinkClosed)
	}
	if err := s.w.Write(v); err != nil {
		return err
	}
	data := s.w.Bytes()
	s.w.Reset()
	s.closed = true

	var errs []error
	if _, err := s.sink.Write(data); err != nil {
		errs = append(errs, newResourceError("write", err))
	} else if f, ok := s.sink.(Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, newResourceError("flush", err))
		}
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, newResourceError("close", err))
	}
	return errors.Join(errs...)
}

// WriteTo encodes v into sink and closes it.
func WriteTo(sink io.WriteCloser, v any, opts ...Option) error {
	sw, err := NewStreamWriter(sink, opts...)
	if err != nil {
		return err
	}
	return sw.Write(v)
}

// ReadFrom drains src, closes it when it is an io.Closer, and returns a Reader over the
// bytes. At most the configured maximum frame size is accepted.
func ReadFrom(src io.Reader, opts ...Option) (*Reader, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidConfiguration)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(io.LimitReader(src, o.maxFrameSize+1))
	var closeErr error
	if c, ok := src.(io.Closer); ok {
		closeErr = c.Close()
	}
	switch {
	case readErr != nil:
		return nil, errors.Join(newResourceError("read", readErr), wrapClose(closeErr))
	case int64(len(data)) > o.maxFrameSize:
		return nil, errors.Join(
			newResourceError("read", fmt.Errorf("input exceeds %d bytes", o.maxFrameSize)),
			wrapClose(closeErr))
	case closeErr != nil:
		return nil, newResourceError("close", closeErr)
	}

	r := &Reader{opts: o}
	r.cur.Reset(data)
	return r, nil
}

func wrapClose(err error) error {
	if err == nil {
		return nil
	}
	return newResourceError("close", err)
}
