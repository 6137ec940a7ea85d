// Package recursion guards against unbounded self-referential call loops.
//
// Each inbound call derives its depth from a dedicated integer header and
// every outbound HTTP call issued while handling it carries the depth
// incremented by one. A misrouted proxy action pointing back at its own
// origin, combined with long platform timeouts, would otherwise generate
// large amounts of wasted traffic before timing out; the guard rejects such
// requests before any route matching occurs. The external edge component
// shares the header name and enforces its own limit as a backstop.
//
// Depth is carried explicitly on the request context rather than through
// shared client state, so concurrently in-flight calls in one process never
// observe each other's depth.
package recursion

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// HeaderName is the integer header carrying the current self-call depth.
// Its name and increment-and-forward behavior are a contract with the
// external edge component.
const HeaderName = "X-Edge-Recursion"

// DefaultLimit is the depth at which inbound calls are rejected.
const DefaultLimit = 3

// ParseDepth reads the depth from a header value, defaulting to 0 when the
// header is absent or not a valid non-negative integer.
func ParseDepth(value string) int {
	if value == "" {
		return 0
	}
	depth, err := strconv.Atoi(value)
	if err != nil || depth < 0 {
		return 0
	}
	return depth
}

// Check validates depth against limit, returning a recursion error when the
// limit is met or exceeded. A non-positive limit falls back to
// DefaultLimit.
func Check(depth, limit int) error {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if depth >= limit {
		return util.NewRecursionError(depth, limit)
	}
	return nil
}

type contextKey struct{}

// ContextWithDepth records the current call's depth on the context.
func ContextWithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, contextKey{}, depth)
}

// DepthFromContext returns the depth recorded on the context, or 0.
func DepthFromContext(ctx context.Context) int {
	if depth, ok := ctx.Value(contextKey{}).(int); ok {
		return depth
	}
	return 0
}

// Transport is an http.RoundTripper that stamps the recursion header,
// incremented by one, on every outbound request it carries. The depth is
// read from the outbound request's context so the transport itself holds no
// per-call state and is safe to share across concurrent calls.
type Transport struct {
	// Base is the underlying transport. http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	depth := DepthFromContext(req.Context())

	// Per RoundTripper contract the request must not be mutated.
	out := req.Clone(req.Context())
	out.Header.Set(HeaderName, strconv.Itoa(depth+1))

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}
