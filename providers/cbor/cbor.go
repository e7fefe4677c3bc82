// Package cbor provides a CBOR opaque-payload codec for binx.
//
// Importing the package registers Default under the name "cbor", which makes it
// selectable with binx.WithBlobCodecName or the BINX_BLOB_CODEC setting. Each accepted
// type is bound to a CBOR tag number so the payload carries its own type and decodes
// back to the registered Go type.
package cbor

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/hengadev/binx"
)

// Name is the codec name registered with binx.
const Name = "cbor"

// MinTagNumber is the lowest tag number Register accepts. Lower numbers are assigned
// by the CBOR standard.
const MinTagNumber = 256

// Codec is a binx.BlobCodec backed by canonical CBOR.
type Codec struct {
	mu    sync.RWMutex
	tags  cbor.TagSet
	types map[reflect.Type]uint64
	enc   cbor.EncMode
	dec   cbor.DecMode
}

// New returns a codec with no registered types.
func New() *Codec {
	c := &Codec{
		tags:  cbor.NewTagSet(),
		types: make(map[reflect.Type]uint64),
	}
	if err := c.rebuild(); err != nil {
		// canonical options with an empty tag set are always valid
		panic(err)
	}
	return c
}

// Default is the codec registered under Name.
var Default = New()

func init() {
	binx.RegisterBlobCodec(Name, Default)
}

// Register accepts values of the dynamic type of sample and tags them with tagNum.
// Registering the same type with the same number twice is a no-op.
func (c *Codec) Register(sample any, tagNum uint64) error {
	if sample == nil {
		return fmt.Errorf("%w: nil cbor sample", binx.ErrInvalidRegistration)
	}
	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Pointer || t.Name() == "" {
		return fmt.Errorf("%w: cbor type %s must be a named non-pointer type", binx.ErrInvalidRegistration, t)
	}
	if tagNum < MinTagNumber {
		return fmt.Errorf("%w: cbor tag %d is below %d", binx.ErrInvalidRegistration, tagNum, MinTagNumber)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.types[t]; ok {
		if existing == tagNum {
			return nil
		}
		return fmt.Errorf("%w: %s already uses cbor tag %d", binx.ErrInvalidRegistration, t, existing)
	}
	opts := cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired}
	if err := c.tags.Add(opts, t, tagNum); err != nil {
		return fmt.Errorf("%w: %w", binx.ErrInvalidRegistration, err)
	}
	c.types[t] = tagNum
	return c.rebuild()
}

// rebuild recreates the modes so they see the current tag set. Callers hold mu.
func (c *Codec) rebuild() error {
	enc, err := cbor.CanonicalEncOptions().EncModeWithTags(c.tags)
	if err != nil {
		return fmt.Errorf("cbor encode mode: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecModeWithTags(c.tags)
	if err != nil {
		return fmt.Errorf("cbor decode mode: %w", err)
	}
	c.enc, c.dec = enc, dec
	return nil
}

func (c *Codec) Supports(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[t]
	return ok
}

func (c *Codec) Marshal(v any) ([]byte, error) {
	c.mu.RLock()
	enc := c.enc
	c.mu.RUnlock()
	return enc.Marshal(v)
}

// Unmarshal decodes a tagged payload into the Go type registered for its tag.
func (c *Codec) Unmarshal(data []byte) (any, error) {
	c.mu.RLock()
	dec := c.dec
	c.mu.RUnlock()

	var v any
	if err := dec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil || !c.Supports(reflect.TypeOf(v)) {
		return nil, fmt.Errorf("%w: cbor payload decoded to unregistered %T", binx.ErrTypeMismatch, v)
	}
	return v, nil
}

// Register adds sample to Default.
func Register(sample any, tagNum uint64) error {
	return Default.Register(sample, tagNum)
}

var _ binx.BlobCodec = (*Codec)(nil)
