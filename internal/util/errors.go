// Package util provides utility functions and types for the routing engine.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrAssetNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, UpstreamError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Common sentinel errors. Every per-request failure surfaced by the engine
// normalizes to exactly one of these four conditions.
var (
	ErrRecursionLimit  = errors.New("recursion limit exceeded")
	ErrUpstreamUnavail = errors.New("upstream unavailable")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrDelegateFailure = errors.New("unhandled delegate error")

	ErrConfigInvalid = errors.New("invalid configuration")
)

// ConfigError represents a build-time configuration error. Configuration
// errors are fatal before the first request is served.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// RecursionError is returned when an inbound request's self-call depth
// meets or exceeds the configured limit.
type RecursionError struct {
	Depth int
	Limit int
}

// Error implements the error interface.
func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursion depth %d exceeds limit %d", e.Depth, e.Limit)
}

// Is checks if the error matches the target.
func (e *RecursionError) Is(target error) bool {
	if target == ErrRecursionLimit {
		return true
	}
	_, ok := target.(*RecursionError)
	return ok
}

// NewRecursionError creates a new RecursionError.
func NewRecursionError(depth, limit int) *RecursionError {
	return &RecursionError{Depth: depth, Limit: limit}
}

// UpstreamError represents a proxy upstream failure: the target is
// unreachable, the circuit is open, or the call itself failed.
type UpstreamError struct {
	Upstream string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s error: %s: %v", e.Upstream, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream %s error: %s", e.Upstream, e.Message)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstreamUnavail {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok || errors.Is(e.Cause, target)
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(upstream, message string) *UpstreamError {
	return &UpstreamError{Upstream: upstream, Message: message}
}

// NewUpstreamErrorWithCause creates a new UpstreamError with a cause.
func NewUpstreamErrorWithCause(upstream, message string, cause error) *UpstreamError {
	return &UpstreamError{Upstream: upstream, Message: message, Cause: cause}
}

// AssetError represents a failed asset lookup.
type AssetError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *AssetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("asset %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("asset %s: not found", e.Path)
}

// Unwrap returns the underlying error.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AssetError) Is(target error) bool {
	if target == ErrAssetNotFound {
		return true
	}
	_, ok := target.(*AssetError)
	return ok || errors.Is(e.Cause, target)
}

// NewAssetError creates a new AssetError.
func NewAssetError(path string, cause error) *AssetError {
	return &AssetError{Path: path, Cause: cause}
}

// DelegateError represents a failure surfacing from action execution or
// the delegated application process.
type DelegateError struct {
	Cause error
}

// Error implements the error interface.
func (e *DelegateError) Error() string {
	return fmt.Sprintf("delegate error: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *DelegateError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *DelegateError) Is(target error) bool {
	if target == ErrDelegateFailure {
		return true
	}
	_, ok := target.(*DelegateError)
	return ok
}

// NewDelegateError creates a new DelegateError.
func NewDelegateError(cause error) *DelegateError {
	return &DelegateError{Cause: cause}
}

// RenderableError is the single normalized form every per-request error is
// converted into before rendering. It never propagates as a raw error to the
// transport layer.
type RenderableError struct {
	Status  int
	Title   string
	Message string
	Stack   string
}

// Error implements the error interface.
func (e *RenderableError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Message)
}

// Normalize converts any per-request error into a RenderableError. The
// stack trace is captured only when includeStack is true (never in
// production).
func Normalize(err error, includeStack bool) *RenderableError {
	re := &RenderableError{
		Status:  http.StatusInternalServerError,
		Title:   "Internal Error",
		Message: err.Error(),
	}

	switch {
	case errors.Is(err, ErrRecursionLimit):
		re.Status = http.StatusLoopDetected
		re.Title = "Recursion Limit Exceeded"
	case errors.Is(err, ErrDelegateFailure):
		// Delegate failures stay 500 even when the underlying cause is an
		// upstream error.
	case errors.Is(err, ErrUpstreamUnavail):
		re.Status = http.StatusBadGateway
		re.Title = "Upstream Unavailable"
	case errors.Is(err, ErrAssetNotFound):
		re.Status = http.StatusNotFound
		re.Title = "Not Found"
	}

	if includeStack {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		re.Stack = string(buf[:n])
	}

	return re
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
