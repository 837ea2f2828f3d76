package parser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHierarchy(t *testing.T) {
	t.Parallel()

	parseErr := newParseError("bad syntax", "spec.yaml", nil)
	validationErr := newValidationError("not openapi 3", "spec.yaml", nil)
	networkErr := newNetworkError("http 503", "https://example.com/spec", nil)

	// every kind matches the parse base
	assert.True(t, errors.Is(parseErr, ErrParse))
	assert.True(t, errors.Is(validationErr, ErrParse))
	assert.True(t, errors.Is(networkErr, ErrParse))

	// specialized sentinels match only their own kind
	assert.True(t, errors.Is(validationErr, ErrValidation))
	assert.False(t, errors.Is(parseErr, ErrValidation))
	assert.False(t, errors.Is(networkErr, ErrValidation))

	assert.True(t, errors.Is(networkErr, ErrNetwork))
	assert.False(t, errors.Is(parseErr, ErrNetwork))
	assert.False(t, errors.Is(validationErr, ErrNetwork))
}

func TestErrorMessageIncludesSource(t *testing.T) {
	t.Parallel()

	err := newParseError("decode spec: bad token", "api.json", nil)
	assert.Equal(t, "decode spec: bad token (api.json)", err.Error())

	err = newParseError("empty input", "", nil)
	assert.Equal(t, "empty input", err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := newNetworkError("fetch spec", "https://x", cause)

	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("outer: %w", err)
	var pe *Error
	assert.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, KindNetwork, pe.Kind)
}
