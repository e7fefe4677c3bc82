package binx

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/hengadev/errsx"
)

// StructTag is the struct tag key read by RegisterType and binx-gen.
const StructTag = "binx"

// TagTransient marks a field that is never persisted.
const TagTransient = "-"

// Field describes one persisted field of a composite T for RegisterComposite.
// Get reads the field from an instance; Set assigns a decoded value to it.
type Field[T any] struct {
	Name string
	Get  func(*T) any
	Set  func(*T, any) error
}

type fieldDesc struct {
	name string
	get  func(ptr reflect.Value) any
	set  func(ptr reflect.Value, v any) error
}

// fieldTable is the per-type list of persisted fields in declaration order.
type fieldTable struct {
	fields []fieldDesc
	index  map[string]int
}

func (ft *fieldTable) lookup(name string) (fieldDesc, bool) {
	i, ok := ft.index[name]
	if !ok {
		return fieldDesc{}, false
	}
	return ft.fields[i], true
}

func (ft *fieldTable) names() []string {
	names := make([]string, len(ft.fields))
	for i, f := range ft.fields {
		names[i] = f.name
	}
	return names
}

// FieldNames returns the persisted field names of a registered type in declaration order.
func FieldNames(name string) ([]string, error) {
	ti, ok := types.lookupName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
	}
	if ti.fields == nil {
		return nil, nil
	}
	return ti.fields.names(), nil
}

// ParseFieldTag splits a binx struct tag into the persisted name and the transient flag.
// An empty alias keeps the Go field name.
func ParseFieldTag(goName, tag string) (name string, transient bool) {
	tag = strings.TrimSpace(tag)
	if tag == TagTransient {
		return "", true
	}
	alias, _, _ := strings.Cut(tag, ",")
	if alias = strings.TrimSpace(alias); alias != "" {
		return alias, false
	}
	return goName, false
}

func reflectFieldTable(t reflect.Type) (*fieldTable, error) {
	table := &fieldTable{index: make(map[string]int)}
	var errs errsx.Map
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, transient := ParseFieldTag(sf.Name, sf.Tag.Get(StructTag))
		if transient {
			continue
		}
		if prev, dup := table.index[name]; dup {
			errs.Set(sf.Name, fmt.Errorf("persisted name %q already used by field %d", name, prev))
			continue
		}
		index, ftype := sf.Index, sf.Type
		table.index[name] = len(table.fields)
		table.fields = append(table.fields, fieldDesc{
			name: name,
			get: func(ptr reflect.Value) any {
				return ptr.Elem().FieldByIndex(index).Interface()
			},
			set: func(ptr reflect.Value, v any) error {
				rv, err := convertValue(v, ftype)
				if err != nil {
					return err
				}
				ptr.Elem().FieldByIndex(index).Set(rv)
				return nil
			},
		})
	}
	if !errs.IsEmpty() {
		return nil, errs.AsError()
	}
	return table, nil
}

func compositeFieldTable[T any](fields []Field[T]) (*fieldTable, error) {
	table := &fieldTable{index: make(map[string]int, len(fields))}
	var errs errsx.Map
	for i, f := range fields {
		key := f.Name
		if key == "" {
			key = fmt.Sprintf("field %d", i)
		}
		switch {
		case f.Name == "":
			errs.Set(key, fmt.Errorf("empty field name"))
			continue
		case f.Get == nil || f.Set == nil:
			errs.Set(key, fmt.Errorf("missing accessor"))
			continue
		}
		if _, dup := table.index[f.Name]; dup {
			errs.Set(key, fmt.Errorf("duplicate field name"))
			continue
		}
		get, set := f.Get, f.Set
		table.index[f.Name] = len(table.fields)
		table.fields = append(table.fields, fieldDesc{
			name: f.Name,
			get: func(ptr reflect.Value) any {
				return get(ptr.Interface().(*T))
			},
			set: func(ptr reflect.Value, v any) error {
				return set(ptr.Interface().(*T), v)
			},
		})
	}
	if !errs.IsEmpty() {
		return nil, errs.AsError()
	}
	return table, nil
}

// adhocTables caches field tables of struct types that reach the reader through a custom
// Resolver without having been registered.
var adhocTables sync.Map // reflect.Type -> *fieldTable

// fieldsFor returns the field table for the non-pointer struct type t.
func fieldsFor(t reflect.Type) (*fieldTable, error) {
	if ti, ok := types.lookupType(t); ok && ti.fields != nil {
		return ti.fields, nil
	}
	if t.Kind() != reflect.Struct {
		return &fieldTable{index: map[string]int{}}, nil
	}
	if cached, ok := adhocTables.Load(t); ok {
		return cached.(*fieldTable), nil
	}
	table, err := reflectFieldTable(t)
	if err != nil {
		return nil, err
	}
	actual, _ := adhocTables.LoadOrStore(t, table)
	return actual.(*fieldTable), nil
}
