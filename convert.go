package binx

import (
	"fmt"
	"reflect"
)

// As converts a decoded value to T. It accepts the forms the reader produces for T:
// the value itself, a pointer where T is a value (and the reverse), or a slice where T
// is a fixed-size array. Generated Set accessors use it.
func As[T any](v any) (T, error) {
	var zero T
	rv, err := convertValue(v, reflect.TypeOf(&zero).Elem())
	if err != nil {
		return zero, err
	}
	out, _ := rv.Interface().(T)
	return out, nil
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		if nillable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: null cannot be assigned to %s", ErrTypeMismatch, t)
	}
	rv := reflect.ValueOf(v)
	return convertReflect(rv, t)
}

func convertReflect(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	from := rv.Type()
	switch {
	case from.AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil

	case from.Kind() == reflect.Pointer && from.Elem().AssignableTo(t):
		if rv.IsNil() {
			if nillable(t) {
				return reflect.Zero(t), nil
			}
			return reflect.Value{}, fmt.Errorf("%w: null cannot be assigned to %s", ErrTypeMismatch, t)
		}
		return convertReflect(rv.Elem(), t)

	case t.Kind() == reflect.Pointer && from.AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, nil

	case from.Kind() == reflect.Slice && t.Kind() == reflect.Array:
		if rv.Len() != t.Len() {
			return reflect.Value{}, fmt.Errorf("%w: %d elements cannot fill %s", ErrTypeMismatch, rv.Len(), t)
		}
		out := reflect.New(t).Elem()
		if err := convertElements(rv, out, t.Elem()); err != nil {
			return reflect.Value{}, err
		}
		return out, nil

	case from.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		out := reflect.MakeSlice(t, rv.Len(), rv.Len())
		if err := convertElements(rv, out, t.Elem()); err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s cannot be assigned to %s", ErrTypeMismatch, from, t)
}

func convertElements(src, dst reflect.Value, elem reflect.Type) error {
	for i := range src.Len() {
		ev, err := convertValue(src.Index(i).Interface(), elem)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		dst.Index(i).Set(ev)
	}
	return nil
}
