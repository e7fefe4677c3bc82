package binx

import (
	"fmt"
	"reflect"
)

// Flattener is implemented by types that describe themselves as a mapping.
// Returning nil makes the writer fall back to the field walk.
type Flattener interface {
	Flatten() map[string]any
}

// Reconstructor rebuilds a value in place from the mapping its Flatten produced.
// It is called on a freshly allocated zero instance.
type Reconstructor interface {
	Reconstruct(fields map[string]any) error
}

var (
	typeOfFlattener     = reflect.TypeOf((*Flattener)(nil)).Elem()
	typeOfReconstructor = reflect.TypeOf((*Reconstructor)(nil)).Elem()
)

// asFlattener returns the Flattener behind rv, looking through an addressable copy when
// Flatten has a pointer receiver.
func asFlattener(rv reflect.Value) (Flattener, bool) {
	if f, ok := rv.Interface().(Flattener); ok {
		return f, true
	}
	if rv.Kind() != reflect.Pointer && reflect.PointerTo(rv.Type()).Implements(typeOfFlattener) {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		return p.Interface().(Flattener), true
	}
	return nil, false
}

// reconstruct builds a value of type t from fields, using the registered factory when
// present and the Reconstruct method otherwise.
func reconstruct(t reflect.Type, fields map[string]any) (any, error) {
	if ti, ok := types.lookupType(t); ok && ti.reconstruct != nil {
		v, err := ti.reconstruct(fields)
		if err != nil {
			return nil, err
		}
		rv, err := convertValue(v, t)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}

	base := t
	if t.Kind() == reflect.Pointer {
		base = t.Elem()
	}
	if !reflect.PointerTo(base).Implements(typeOfReconstructor) {
		return nil, fmt.Errorf("%w: %s has no reconstruction entry point", ErrNoDecoder, t)
	}
	p := reflect.New(base)
	if err := p.Interface().(Reconstructor).Reconstruct(fields); err != nil {
		return nil, err
	}
	if t.Kind() == reflect.Pointer {
		return p.Interface(), nil
	}
	return p.Elem().Interface(), nil
}
