package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursionError(t *testing.T) {
	t.Parallel()

	err := NewRecursionError(3, 3)
	assert.ErrorIs(t, err, ErrRecursionLimit)
	assert.Contains(t, err.Error(), "3")
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewUpstreamErrorWithCause("http://origin", "dial failed", cause)

	assert.ErrorIs(t, err, ErrUpstreamUnavail)
	assert.ErrorIs(t, err, cause)
}

func TestNormalizeStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "recursion", err: NewRecursionError(3, 3), want: http.StatusLoopDetected},
		{name: "upstream", err: NewUpstreamError("http://origin", "unreachable"), want: http.StatusBadGateway},
		{name: "asset", err: NewAssetError("/missing.css", nil), want: http.StatusNotFound},
		{name: "delegate", err: NewDelegateError(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			re := Normalize(tt.err, false)
			assert.Equal(t, tt.want, re.Status)
			assert.Empty(t, re.Stack)
			assert.NotEmpty(t, re.Title)
			assert.NotEmpty(t, re.Message)
		})
	}
}

func TestNormalizeDelegateWrappingUpstreamStays500(t *testing.T) {
	t.Parallel()

	// A delegate failure keeps its own status even when the underlying
	// cause is an upstream error.
	inner := NewUpstreamError("http://app:3000", "unreachable")
	re := Normalize(NewDelegateError(inner), false)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
}

func TestNormalizeIncludesStackOutsideProduction(t *testing.T) {
	t.Parallel()

	re := Normalize(errors.New("boom"), true)
	assert.NotEmpty(t, re.Stack)
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := NewConfigError("routes", "at least one route required")
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "routes")

	cause := errors.New("bad yaml")
	wrapped := NewConfigErrorWithCause("routes", "parse failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "context"))

	cause := errors.New("inner")
	err := WrapError(cause, "outer")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "outer")
}
