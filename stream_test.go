package binx

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSink records what the stream adapters do to it.
type mockSink struct {
	bytes.Buffer
	writeErr error
	flushErr error
	closeErr error
	flushed  int
	closed   int
}

func (m *mockSink) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.Buffer.Write(p)
}

func (m *mockSink) Flush() error {
	m.flushed++
	return m.flushErr
}

func (m *mockSink) Close() error {
	m.closed++
	return m.closeErr
}

// mockSource is a closable reader.
type mockSource struct {
	io.Reader
	closeErr error
	closed   int
}

func (m *mockSource) Close() error {
	m.closed++
	return m.closeErr
}

func TestStreamWriter(t *testing.T) {
	t.Run("writes, flushes and closes once", func(t *testing.T) {
		sink := &mockSink{}
		sw, err := NewStreamWriter(sink)
		require.NoError(t, err)

		require.NoError(t, sw.Write(int32(42)))
		assert.Equal(t, []byte{0x01, 0x06, 42, 0, 0, 0, 0x02}, sink.Bytes())
		assert.Equal(t, 1, sink.flushed)
		assert.Equal(t, 1, sink.closed)

		err = sw.Write(int32(43))
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
		assert.ErrorIs(t, err, ErrSinkClosed)
		assert.Equal(t, 1, sink.closed)
	})

	t.Run("encoding error leaves the sink open and untouched", func(t *testing.T) {
		sink := &mockSink{}
		sw, err := NewStreamWriter(sink)
		require.NoError(t, err)

		err = sw.Write(uint32(1))
		require.Error(t, err)
		assert.True(t, IsProgrammingError(err))
		assert.Zero(t, sink.Len())
		assert.Zero(t, sink.closed)

		require.NoError(t, sw.Write("retry"))
		assert.Equal(t, 1, sink.closed)
	})

	t.Run("write failure still closes", func(t *testing.T) {
		sink := &mockSink{writeErr: errors.New("disk full"), closeErr: errors.New("close failed")}
		err := WriteTo(sink, "x")
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
		assert.Contains(t, err.Error(), "disk full")
		assert.Contains(t, err.Error(), "close failed")
		assert.Zero(t, sink.flushed)
		assert.Equal(t, 1, sink.closed)
	})

	t.Run("flush failure", func(t *testing.T) {
		sink := &mockSink{flushErr: errors.New("flush failed")}
		err := WriteTo(sink, "x")
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
		assert.Equal(t, 1, sink.closed)
	})

	t.Run("nil sink", func(t *testing.T) {
		_, err := NewStreamWriter(nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestReadFrom(t *testing.T) {
	data, err := Marshal([]string{"a", "b"})
	require.NoError(t, err)

	t.Run("drains and closes the source", func(t *testing.T) {
		src := &mockSource{Reader: bytes.NewReader(data)}
		r, err := ReadFrom(src)
		require.NoError(t, err)
		assert.Equal(t, 1, src.closed)

		v, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("plain readers are not closed", func(t *testing.T) {
		r, err := ReadFrom(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, len(data), r.Remaining())
	})

	t.Run("close failure", func(t *testing.T) {
		src := &mockSource{Reader: bytes.NewReader(data), closeErr: errors.New("close failed")}
		_, err := ReadFrom(src)
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
	})

	t.Run("read failure", func(t *testing.T) {
		src := &mockSource{Reader: io.MultiReader(bytes.NewReader(data[:2]), &failingReader{})}
		_, err := ReadFrom(src)
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
		assert.Equal(t, 1, src.closed)
	})

	t.Run("input above the frame limit", func(t *testing.T) {
		_, err := ReadFrom(strings.NewReader(strings.Repeat("x", 65)), WithMaxFrameSize(64))
		require.Error(t, err)
		assert.True(t, IsResourceError(err))
	})

	t.Run("input at the frame limit", func(t *testing.T) {
		r, err := ReadFrom(bytes.NewReader(data), WithMaxFrameSize(int64(len(data))))
		require.NoError(t, err)
		assert.True(t, r.More())
	})

	t.Run("registry option reaches the reader", func(t *testing.T) {
		opt := WithRegistry(celsiusRegistry())
		payload, err := Marshal(celsius(12), opt)
		require.NoError(t, err)

		r, err := ReadFrom(bytes.NewReader(payload), opt)
		require.NoError(t, err)
		v, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, celsius(12), v)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStreamRoundTripThroughPipe(t *testing.T) {
	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		errc <- WriteTo(pw, map[string]any{"k": []int64{1, 2}})
	}()

	r, err := ReadFrom(pr)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	v, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": []int64{1, 2}}, v)
}
