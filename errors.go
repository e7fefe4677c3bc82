package binx

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// Programming errors: the caller asked for something the engine cannot do.
	ErrNotSupportedType     = errors.New("not supported type")
	ErrUndeclaredConstant   = errors.New("value is not a declared enum constant")
	ErrInvalidRegistration  = errors.New("invalid registration")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Parse errors
	ErrParse           = errors.New("parse error")
	ErrTypeNotFound    = errors.New("type not found")
	ErrTruncated       = errors.New("truncated input")
	ErrBadTag          = errors.New("unexpected tag")
	ErrNotMapping      = errors.New("value is not a mapping")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownConstant = errors.New("unknown enum constant")
	ErrNoDecoder       = errors.New("no decoder")
	ErrTypeMismatch    = errors.New("type mismatch")

	// Resource errors
	ErrResource   = errors.New("resource error")
	ErrSinkClosed = errors.New("sink already closed")
)

// NotSupportedTypeError reports a value the writer has no encoding for.
type NotSupportedTypeError struct {
	Type reflect.Type
}

func (e *NotSupportedTypeError) Error() string {
	return fmt.Sprintf("binx: %s: %s", ErrNotSupportedType, typeString(e.Type))
}

func (e *NotSupportedTypeError) Unwrap() error { return ErrNotSupportedType }

func newNotSupportedTypeError(t reflect.Type) error {
	return &NotSupportedTypeError{Type: t}
}

// ParseError describes a malformed frame. Offset is the reader position where the
// failing element started; Tag is zero when the failure happened before a tag was read.
type ParseError struct {
	Offset int
	Tag    Tag
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("binx: parse error at offset %d", e.Offset)
	if e.Tag != 0 {
		msg += fmt.Sprintf(" (%s)", e.Tag)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// ResourceError wraps a failure of the sink or source behind a stream adapter.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("binx: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() []error {
	return []error{ErrResource, e.Err}
}

func newResourceError(op string, err error) error {
	return &ResourceError{Op: op, Err: err}
}

// IsProgrammingError returns true if the error comes from misuse of the API rather than from input data.
func IsProgrammingError(err error) bool {
	return errors.Is(err, ErrNotSupportedType) ||
		errors.Is(err, ErrUndeclaredConstant) ||
		errors.Is(err, ErrInvalidRegistration) ||
		errors.Is(err, ErrInvalidConfiguration)
}

// IsParseError returns true if the error represents a malformed or unresolvable frame.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsResourceError returns true if the error came from the underlying sink or source.
func IsResourceError(err error) bool {
	return errors.Is(err, ErrResource)
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
