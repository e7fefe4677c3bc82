package binx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Resolver maps a wire name back to a Go type.
type Resolver interface {
	Resolve(name string) (reflect.Type, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(name string) (reflect.Type, error)

func (f ResolverFunc) Resolve(name string) (reflect.Type, error) {
	return f(name)
}

type universeResolver struct{}

// Resolve special-cases the primitive names, then consults the type universe.
func (universeResolver) Resolve(name string) (reflect.Type, error) {
	if t, ok := primitiveTypes[name]; ok {
		return t, nil
	}
	if ti, ok := types.lookupName(name); ok {
		return ti.typ, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
}

var (
	defaultResolverMu sync.RWMutex
	defaultResolver   Resolver = universeResolver{}
)

// DefaultResolver returns the resolver readers use when none is configured.
func DefaultResolver() Resolver {
	defaultResolverMu.RLock()
	defer defaultResolverMu.RUnlock()
	return defaultResolver
}

// SetDefaultResolver replaces the process-wide default resolver. Readers created
// afterwards pick it up; nil restores the universe resolver.
func SetDefaultResolver(r Resolver) {
	defaultResolverMu.Lock()
	defer defaultResolverMu.Unlock()
	if r == nil {
		r = universeResolver{}
	}
	defaultResolver = r
}

// resolveType finds the type behind an object name: the configured resolver first,
// then the names held by the built-in and caller registries.
func (r *Reader) resolveType(name string) (reflect.Type, error) {
	t, err := r.opts.resolver.Resolve(name)
	if err == nil && t != nil {
		return t, nil
	}
	if t, ok := builtins().typeOf(name); ok {
		return t, nil
	}
	if r.opts.registry != nil {
		if t, ok := r.opts.registry.typeOf(name); ok {
			return t, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("%w: %q", ErrTypeNotFound, name)
	}
	return nil, err
}

// resolveElem resolves an array element name. Slice, array and pointer prefixes and the
// primitive names are handled here before falling back to object resolution.
func (r *Reader) resolveElem(name string) (reflect.Type, error) {
	if rest, ok := strings.CutPrefix(name, "[]"); ok {
		elem, err := r.resolveElem(rest)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	}
	if rest, ok := strings.CutPrefix(name, "["); ok {
		size, elemName, found := strings.Cut(rest, "]")
		n, err := strconv.Atoi(size)
		if !found || err != nil || n < 0 {
			return nil, fmt.Errorf("%w: malformed array type name %q", ErrTypeNotFound, name)
		}
		elem, err := r.resolveElem(elemName)
		if err != nil {
			return nil, err
		}
		return reflect.ArrayOf(n, elem), nil
	}
	if rest, ok := strings.CutPrefix(name, "*"); ok {
		elem, err := r.resolveElem(rest)
		if err != nil {
			return nil, err
		}
		if elem.Kind() == reflect.Pointer {
			return elem, nil
		}
		return reflect.PointerTo(elem), nil
	}
	if t, ok := primitiveTypes[name]; ok {
		return t, nil
	}
	return r.resolveType(name)
}
