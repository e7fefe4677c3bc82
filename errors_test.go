package binx

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"Not Supported Type", ErrNotSupportedType, ErrNotSupportedType},
		{"Undeclared Constant", ErrUndeclaredConstant, ErrUndeclaredConstant},
		{"Invalid Registration", ErrInvalidRegistration, ErrInvalidRegistration},
		{"Type Not Found", ErrTypeNotFound, ErrTypeNotFound},
		{"Truncated", ErrTruncated, ErrTruncated},
		{"Sink Closed", ErrSinkClosed, ErrSinkClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.expected) {
				t.Errorf("Expected errors.Is(wrapped, %v) to be true", tt.expected)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		isProgramming bool
		isParse       bool
		isResource    bool
	}{
		{
			name:          "Not Supported Type",
			err:           newNotSupportedTypeError(reflect.TypeOf(0)),
			isProgramming: true,
		},
		{
			name:          "Undeclared Constant",
			err:           fmt.Errorf("test: %w", ErrUndeclaredConstant),
			isProgramming: true,
		},
		{
			name:          "Invalid Configuration",
			err:           fmt.Errorf("test: %w", ErrInvalidConfiguration),
			isProgramming: true,
		},
		{
			name:    "Parse Error",
			err:     &ParseError{Offset: 3, Tag: TagArray, Err: ErrTruncated},
			isParse: true,
		},
		{
			name:    "Parse Error Without Cause",
			err:     &ParseError{Offset: 3},
			isParse: true,
		},
		{
			name:       "Resource Error",
			err:        newResourceError("write", errors.New("disk full")),
			isResource: true,
		},
		{
			name: "Unrelated",
			err:  errors.New("something else"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isProgramming, IsProgrammingError(tt.err))
			assert.Equal(t, tt.isParse, IsParseError(tt.err))
			assert.Equal(t, tt.isResource, IsResourceError(tt.err))
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Offset: 12, Tag: TagObject, Detail: "point.Z", Err: ErrUnknownField}
	assert.Equal(t, "binx: parse error at offset 12 (OBJECT): point.Z: unknown field", err.Error())
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, err, ErrParse)

	bare := &ParseError{Offset: 0}
	assert.Equal(t, "binx: parse error at offset 0", bare.Error())
}

func TestNotSupportedTypeError(t *testing.T) {
	err := newNotSupportedTypeError(reflect.TypeOf(uint32(0)))
	assert.Equal(t, "binx: not supported type: uint32", err.Error())
	assert.ErrorIs(t, err, ErrNotSupportedType)

	var nst *NotSupportedTypeError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &nst))
	assert.Equal(t, reflect.TypeOf(uint32(0)), nst.Type)

	assert.Contains(t, newNotSupportedTypeError(nil).Error(), "<nil>")
}

func TestResourceError(t *testing.T) {
	cause := errors.New("broken pipe")
	err := newResourceError("flush", cause)
	assert.Equal(t, "binx: flush: broken pipe", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrResource)
	assert.False(t, IsParseError(err))
}
