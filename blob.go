package binx

import (
	"encoding/gob"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/hengadev/binx/internal/serialization"
	"github.com/samber/lo"
)

// BlobCodec is the last-resort encoding for values no other rule covers. The payload is
// opaque to binx and travels as a byte array under the SERIALIZABLE tag.
type BlobCodec interface {
	// Supports reports whether values of type t may be handed to Marshal.
	Supports(t reflect.Type) bool
	Marshal(v any) ([]byte, error)
	// Unmarshal rebuilds the value, including its dynamic type.
	Unmarshal(data []byte) (any, error)
}

// GobBlobCodec is the default BlobCodec. It only accepts types announced with Register
// and delegates the payload to encoding/gob.
type GobBlobCodec struct {
	mu    sync.RWMutex
	types map[reflect.Type]struct{}
	ser   serialization.Serializer
}

// NewGobBlobCodec returns a gob codec with no registered types.
func NewGobBlobCodec() *GobBlobCodec {
	return &GobBlobCodec{
		types: make(map[reflect.Type]struct{}),
		ser:   serialization.GOBSerializer{},
	}
}

// Register allows values of the dynamic type of sample to fall back to gob.
func (c *GobBlobCodec) Register(sample any) error {
	if sample == nil {
		return fmt.Errorf("%w: nil opaque sample", ErrInvalidRegistration)
	}
	t := reflect.TypeOf(sample)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.types[t]; ok {
		return nil
	}
	if err := registerGob(sample); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}
	c.types[t] = struct{}{}
	return nil
}

// gob.Register panics on conflicting names.
func registerGob(sample any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gob register %T: %v", sample, r)
		}
	}()
	gob.Register(sample)
	return nil
}

func (c *GobBlobCodec) Supports(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[t]
	return ok
}

func (c *GobBlobCodec) Marshal(v any) ([]byte, error) {
	return c.ser.Serialize(v)
}

func (c *GobBlobCodec) Unmarshal(data []byte) (any, error) {
	return c.ser.Deserialize(data)
}

var defaultGob = NewGobBlobCodec()

// RegisterOpaque lets values of the dynamic type of sample use the default gob fallback.
func RegisterOpaque(sample any) error {
	return defaultGob.Register(sample)
}

// BlobCodecGob is the name the default codec is known by.
const BlobCodecGob = "gob"

var (
	blobCodecsMu sync.RWMutex
	blobCodecs   = map[string]BlobCodec{BlobCodecGob: defaultGob}
)

// RegisterBlobCodec makes codec selectable by name from configuration. Provider packages
// call it from init.
func RegisterBlobCodec(name string, codec BlobCodec) {
	blobCodecsMu.Lock()
	defer blobCodecsMu.Unlock()
	if codec == nil {
		panic("binx: RegisterBlobCodec codec is nil")
	}
	if _, dup := blobCodecs[name]; dup {
		panic("binx: RegisterBlobCodec called twice for codec " + name)
	}
	blobCodecs[name] = codec
}

// LookupBlobCodec returns the codec registered under name.
func LookupBlobCodec(name string) (BlobCodec, error) {
	blobCodecsMu.RLock()
	defer blobCodecsMu.RUnlock()
	codec, ok := blobCodecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown blob codec %q (have %v)", ErrInvalidConfiguration, name, blobCodecNames())
	}
	return codec, nil
}

func blobCodecNames() []string {
	names := lo.Keys(blobCodecs)
	sort.Strings(names)
	return names
}

// BlobCodecs lists the registered codec names, sorted.
func BlobCodecs() []string {
	blobCodecsMu.RLock()
	defer blobCodecsMu.RUnlock()
	return blobCodecNames()
}
