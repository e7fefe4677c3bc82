package binx

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// EncodeFunc writes the payload of v after the RESERVED tag and type name.
type EncodeFunc func(v any, w *Writer) error

// DecodeFunc reads back a payload written by the matching EncodeFunc. t is the
// resolved type the frame named.
type DecodeFunc func(t reflect.Type, r *Reader) (any, error)

// Codec pairs the encoder and decoder of a registered type.
type Codec struct {
	Encode EncodeFunc
	Decode DecodeFunc
}

type registryEntry struct {
	name  string
	typ   reflect.Type
	codec Codec
}

// Registry maps exact Go types to codecs. The package keeps a built-in registry that is
// always consulted first; callers hand their own to a Writer or Reader with WithRegistry.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*registryEntry
	byName map[string]*registryEntry
}

// NewRegistry returns an empty caller registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*registryEntry),
		byName: make(map[string]*registryEntry),
	}
}

// Register binds the dynamic type of sample to codec under name. Types the built-in
// registry covers may be registered, but the built-in codec is always used for them.
func (r *Registry) Register(name string, sample any, codec Codec) error {
	if err := validateName(name); err != nil {
		return err
	}
	if sample == nil {
		return fmt.Errorf("%w: nil sample for %q", ErrInvalidRegistration, name)
	}
	if codec.Encode == nil || codec.Decode == nil {
		return fmt.Errorf("%w: codec for %q needs both Encode and Decode", ErrInvalidRegistration, name)
	}
	if ti, ok := types.lookupName(name); ok {
		return fmt.Errorf("%w: name %q already names %s in the type universe", ErrInvalidRegistration, name, ti.typ)
	}
	return r.add(name, codec, reflect.TypeOf(sample))
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, sample any, codec Codec) *Registry {
	if err := r.Register(name, sample, codec); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(name string, codec Codec, ts ...reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: name %q already registered", ErrInvalidRegistration, name)
	}
	for _, t := range ts {
		if existing, ok := r.byType[t]; ok {
			return fmt.Errorf("%w: type %s already registered as %q", ErrInvalidRegistration, t, existing.name)
		}
	}
	entry := &registryEntry{name: name, typ: ts[0], codec: codec}
	r.byName[name] = entry
	for _, t := range ts {
		r.byType[t] = entry
	}
	return nil
}

// Names lists the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.byName)
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(t reflect.Type) (*registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[t]
	return e, ok
}

func (r *Registry) nameOf(t reflect.Type) (string, bool) {
	if e, ok := r.lookup(t); ok {
		return e.name, true
	}
	return "", false
}

func (r *Registry) typeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byName[name]; ok {
		return e.typ, true
	}
	return nil, false
}

var (
	builtinOnce     sync.Once
	builtinRegistry *Registry
)

// builtins returns the process-wide registry, filled on first use and never mutated
// afterwards. Its decoders resolve nested names through builtins, so it cannot be a
// package-level initializer.
func builtins() *Registry {
	builtinOnce.Do(func() {
		builtinRegistry = newBuiltinRegistry()
	})
	return builtinRegistry
}

func newBuiltinRegistry() *Registry {
	r := NewRegistry()
	lo.Must0(r.add(NameType, Codec{Encode: encodeType, Decode: decodeType},
		typeOfType, reflect.TypeOf(reflect.TypeOf(0))))
	lo.Must0(r.add(NameMap, Codec{Encode: encodeMap, Decode: decodeMap}, typeOfMap))
	return r
}

// Type descriptors travel as their wire name.
func encodeType(v any, w *Writer) error {
	t := v.(reflect.Type)
	name, ok := typeName(t, w.opts.registry)
	if !ok {
		return newNotSupportedTypeError(t)
	}
	return w.WriteString(name)
}

func decodeType(_ reflect.Type, r *Reader) (any, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	t, err := r.resolveElem(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Mappings are written as a count followed by key/value pairs in key order, so equal
// maps always produce equal bytes.
func encodeMap(v any, w *Writer) error {
	m := v.(map[string]any)
	if len(m) > math.MaxInt32 {
		return fmt.Errorf("%w: mapping with %d entries", ErrNotSupportedType, len(m))
	}
	keys := lo.Keys(m)
	sort.Strings(keys)
	if err := w.WriteInt(int32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteObject(m[k]); err != nil {
			return err
		}
	}
	return nil
}

// minEntrySize is a 4-byte key length plus a one-byte value.
const minEntrySize = 5

func decodeMap(_ reflect.Type, r *Reader) (any, error) {
	n, err := r.readCount(minEntrySize)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, n)
	for range n {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
