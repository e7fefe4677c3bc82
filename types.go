package binx

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hengadev/errsx"
	"github.com/samber/lo"
)

// Char is a 16-bit code unit, encoded with the CHAR tag.
type Char uint16

// Names of the primitive kinds as they appear on the wire.
const (
	NameByte    = "byte"
	NameShort   = "short"
	NameInt     = "int"
	NameLong    = "long"
	NameFloat   = "float"
	NameDouble  = "double"
	NameBoolean = "boolean"
	NameChar    = "char"

	NameString = "string"
	NameAny    = "any"
	NameMap    = "map"
	NameType   = "type"
)

var (
	typeOfAny  = reflect.TypeOf((*any)(nil)).Elem()
	typeOfMap  = reflect.TypeOf(map[string]any(nil))
	typeOfType = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	typeOfChar = reflect.TypeOf(Char(0))
)

var primitiveTypes = map[string]reflect.Type{
	NameByte:    reflect.TypeOf(uint8(0)),
	NameShort:   reflect.TypeOf(int16(0)),
	NameInt:     reflect.TypeOf(int32(0)),
	NameLong:    reflect.TypeOf(int64(0)),
	NameFloat:   reflect.TypeOf(float32(0)),
	NameDouble:  reflect.TypeOf(float64(0)),
	NameBoolean: reflect.TypeOf(false),
	NameChar:    typeOfChar,
}

var primitiveNames = lo.Invert(primitiveTypes)

// reservedNames cannot be claimed by RegisterType or Registry.Register.
var reservedNames = map[string]bool{
	NameByte: true, NameShort: true, NameInt: true, NameLong: true,
	NameFloat: true, NameDouble: true, NameBoolean: true, NameChar: true,
	NameString: true, NameAny: true, NameMap: true, NameType: true,
}

type typeInfo struct {
	name        string
	typ         reflect.Type // registered form, decides what the reader produces
	fields      *fieldTable
	enum        *enumTable
	reconstruct func(map[string]any) (any, error)
}

// base returns the non-pointer form of the registered type.
func (ti *typeInfo) base() reflect.Type {
	if ti.typ.Kind() == reflect.Pointer {
		return ti.typ.Elem()
	}
	return ti.typ
}

// universe maps wire names to Go types. It replaces runtime class lookup: a type is
// only reachable by name once it has been registered.
type universe struct {
	mu     sync.RWMutex
	byName map[string]*typeInfo
	byType map[reflect.Type]*typeInfo
}

var types = newUniverse()

func newUniverse() *universe {
	u := &universe{
		byName: make(map[string]*typeInfo),
		byType: make(map[reflect.Type]*typeInfo),
	}
	u.byName[NameString] = &typeInfo{name: NameString, typ: reflect.TypeOf("")}
	u.byName[NameAny] = &typeInfo{name: NameAny, typ: typeOfAny}
	return u
}

func (u *universe) add(ti *typeInfo) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.byName[ti.name]; ok {
		if existing.typ == ti.typ {
			return nil
		}
		return fmt.Errorf("%w: name %q already registered for %s", ErrInvalidRegistration, ti.name, existing.typ)
	}
	base := ti.base()
	for _, t := range []reflect.Type{base, reflect.PointerTo(base)} {
		if existing, ok := u.byType[t]; ok {
			return fmt.Errorf("%w: type %s already registered as %q", ErrInvalidRegistration, t, existing.name)
		}
	}
	u.byName[ti.name] = ti
	u.byType[base] = ti
	u.byType[reflect.PointerTo(base)] = ti
	return nil
}

func (u *universe) lookupName(name string) (*typeInfo, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ti, ok := u.byName[name]
	return ti, ok
}

func (u *universe) lookupType(t reflect.Type) (*typeInfo, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ti, ok := u.byType[t]
	return ti, ok
}

func (u *universe) names() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	names := lo.Keys(u.byName)
	sort.Strings(names)
	return names
}

// TypeOption customises a RegisterType call.
type TypeOption func(*typeInfo) error

// WithReconstruct sets the factory used to rebuild a self-describing value from its mapping.
// It takes precedence over a Reconstruct method on the type.
func WithReconstruct(fn func(map[string]any) (any, error)) TypeOption {
	return func(ti *typeInfo) error {
		if fn == nil {
			return fmt.Errorf("%w: nil reconstruct function", ErrInvalidRegistration)
		}
		ti.reconstruct = fn
		return nil
	}
}

// RegisterType makes the dynamic type of sample reachable under name. Passing a pointer
// sample makes the reader produce pointers; passing a value makes it produce values.
// Struct types get a field table built once from their exported fields, honouring the
// `binx:"-"` (transient) and `binx:"alias"` tags.
func RegisterType(name string, sample any, opts ...TypeOption) error {
	if sample == nil {
		return fmt.Errorf("%w: nil sample for %q", ErrInvalidRegistration, name)
	}
	if err := validateName(name); err != nil {
		return err
	}
	ti := &typeInfo{name: name, typ: reflect.TypeOf(sample)}
	if ti.base().Kind() == reflect.Pointer {
		return fmt.Errorf("%w: %s is a pointer to a pointer", ErrInvalidRegistration, ti.typ)
	}
	for _, opt := range opts {
		if err := opt(ti); err != nil {
			return err
		}
	}
	if ti.base().Kind() == reflect.Struct {
		fields, err := reflectFieldTable(ti.base())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRegistration, name, err)
		}
		ti.fields = fields
	}
	return types.add(ti)
}

// MustRegisterType is like RegisterType but panics on error. It is meant for init functions.
func MustRegisterType(name string, sample any, opts ...TypeOption) {
	if err := RegisterType(name, sample, opts...); err != nil {
		panic(err)
	}
}

// RegisterComposite registers T under name with an explicit field table, avoiding reflection
// on the hot path. The reader produces *T. Code generated by binx-gen calls this.
func RegisterComposite[T any](name string, fields ...Field[T]) error {
	if err := validateName(name); err != nil {
		return err
	}
	var zero T
	base := reflect.TypeOf(&zero).Elem()
	if base.Kind() == reflect.Pointer || base.Kind() == reflect.Interface {
		return fmt.Errorf("%w: composite %q must be a concrete non-pointer type, got %s", ErrInvalidRegistration, name, base)
	}
	table, err := compositeFieldTable(fields)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRegistration, name, err)
	}
	return types.add(&typeInfo{name: name, typ: reflect.PointerTo(base), fields: table})
}

type enumTable struct {
	byName  map[string]reflect.Value
	byValue map[any]string
}

// RegisterEnum registers T as an enumeration with the given named constants.
// Values of T are written as their constant name.
func RegisterEnum[T comparable](name string, constants map[string]T) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(constants) == 0 {
		return fmt.Errorf("%w: enum %q declares no constants", ErrInvalidRegistration, name)
	}
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	if typ.Kind() == reflect.Interface || typ.Kind() == reflect.Pointer {
		return fmt.Errorf("%w: enum %q must be a concrete value type, got %s", ErrInvalidRegistration, name, typ)
	}
	if _, ok := primitiveNames[typ]; ok || typ.Kind() == reflect.String && typ.PkgPath() == "" {
		return fmt.Errorf("%w: enum %q cannot use the built-in type %s", ErrInvalidRegistration, name, typ)
	}

	table := &enumTable{
		byName:  make(map[string]reflect.Value, len(constants)),
		byValue: make(map[any]string, len(constants)),
	}
	var errs errsx.Map
	for _, constName := range lo.Keys(constants) {
		v := constants[constName]
		if constName == "" {
			errs.Set("constant name", fmt.Errorf("empty name for value %v", v))
			continue
		}
		if other, dup := table.byValue[v]; dup {
			errs.Set(constName, fmt.Errorf("value %v already declared as %q", v, other))
			continue
		}
		table.byName[constName] = reflect.ValueOf(v)
		table.byValue[v] = constName
	}
	if !errs.IsEmpty() {
		return fmt.Errorf("%w: enum %s: %w", ErrInvalidRegistration, name, errs.AsError())
	}
	return types.add(&typeInfo{name: name, typ: typ, enum: table})
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty type name", ErrInvalidRegistration)
	case reservedNames[name]:
		return fmt.Errorf("%w: %q is a reserved name", ErrInvalidRegistration, name)
	case strings.HasPrefix(name, "["), strings.HasPrefix(name, "*"):
		return fmt.Errorf("%w: %q cannot start with %q", ErrInvalidRegistration, name, name[:1])
	}
	return nil
}

// RegisteredNames lists every name in the type universe, sorted.
func RegisteredNames() []string {
	return types.names()
}

// TypeName returns the wire name of t: a primitive name, a built-in name, a registered
// name, or a slice/array name built from its element ("[]int", "[4]byte"). A pointer to
// a type registered in value form is named "*name".
func TypeName(t reflect.Type) (string, bool) {
	return typeName(t, nil)
}

func typeName(t reflect.Type, reg *Registry) (string, bool) {
	if t == nil {
		return "", false
	}
	if name, ok := primitiveNames[t]; ok {
		return name, true
	}
	switch t {
	case reflect.TypeOf(""):
		return NameString, true
	case typeOfAny:
		return NameAny, true
	}
	if name, ok := builtins().nameOf(t); ok {
		return name, true
	}
	if ti, ok := types.lookupType(t); ok {
		if t.Kind() == reflect.Pointer && ti.typ.Kind() != reflect.Pointer {
			// the bare name decodes to the value form; keep element nil-ability
			return "*" + ti.name, true
		}
		return ti.name, true
	}
	if reg != nil {
		if name, ok := reg.nameOf(t); ok {
			return name, true
		}
	}
	switch t.Kind() {
	case reflect.Slice:
		if elem, ok := typeName(t.Elem(), reg); ok {
			return "[]" + elem, true
		}
	case reflect.Array:
		if elem, ok := typeName(t.Elem(), reg); ok {
			return "[" + strconv.Itoa(t.Len()) + "]" + elem, true
		}
	}
	return "", false
}
