// Package proxy forwards canonical requests to upstream services on behalf
// of the proxy, serve-app, and image-optimizer actions.
package proxy

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/recursion"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// hopHeaders are headers that should not be forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Options controls how one request is forwarded.
type Options struct {
	// Upstream is the target base URL.
	Upstream string

	// PreserveHost forwards the inbound Host header instead of the
	// upstream's host.
	PreserveHost bool

	// PreservePath appends the request's effective path to the upstream
	// URL's path.
	PreservePath bool

	// PreserveQuery forwards the request's query parameters.
	PreserveQuery bool

	// PreserveHeaders forwards the inbound headers (hop-by-hop headers
	// excluded).
	PreserveHeaders bool

	// InsecureSkipVerify disables upstream TLS certificate verification.
	InsecureSkipVerify bool
}

// Forwarder executes upstream calls. Outbound requests carry the recursion
// depth header incremented by one; repeated upstream failures open a
// per-host circuit breaker that maps to the upstream-unavailable error.
type Forwarder struct {
	client         *http.Client
	insecureClient *http.Client
	logger         observability.Logger
	metrics        *observability.Metrics
	timeout        time.Duration

	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.Mutex
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithLogger sets the forwarder logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink for upstream observations.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithTimeout sets the per-call upstream timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		f.timeout = timeout
	}
}

// NewForwarder creates a forwarder whose outbound calls propagate the
// recursion depth.
func NewForwarder(opts ...Option) *Forwarder {
	f := &Forwarder{
		logger:   observability.NopLogger(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}

	for _, opt := range opts {
		opt(f)
	}

	// Compression passthrough: upstream bytes reach the client verbatim,
	// so the transport must not negotiate its own encoding.
	base := &http.Transport{DisableCompression: true}
	insecureBase := &http.Transport{
		DisableCompression: true,
		TLSClientConfig:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // explicit per-action opt-in
	}

	f.client = &http.Client{
		Transport: &recursion.Transport{Base: base},
		Timeout:   f.timeout,
	}
	f.insecureClient = &http.Client{
		Transport: &recursion.Transport{Base: insecureBase},
		Timeout:   f.timeout,
	}

	return f
}

// breaker returns the circuit breaker for an upstream host, creating it on
// first use.
func (f *Forwarder) breaker(host string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			f.logger.Info("upstream circuit breaker state change",
				observability.String("upstream", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})
	f.breakers[host] = cb
	return cb
}

// Forward proxies req to the upstream described by opts and writes the
// upstream's status, headers, and body into resp. The response is not
// ended; the caller finalizes it. Transport failures and open circuits are
// returned as upstream errors; upstream HTTP error statuses pass through.
func (f *Forwarder) Forward(req *httpmodel.Request, resp *httpmodel.Response, opts Options) error {
	target, err := url.Parse(opts.Upstream)
	if err != nil {
		return util.NewUpstreamErrorWithCause(opts.Upstream, "invalid upstream url", err)
	}

	out, err := f.buildOutbound(req, target, opts)
	if err != nil {
		return err
	}

	client := f.client
	if opts.InsecureSkipVerify {
		client = f.insecureClient
	}

	start := time.Now()
	result, err := f.breaker(target.Host).Execute(func() (any, error) {
		return client.Do(out)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return util.NewUpstreamErrorWithCause(opts.Upstream, "circuit open", err)
		}
		return util.NewUpstreamErrorWithCause(opts.Upstream, "upstream call failed", err)
	}

	upstreamResp, ok := result.(*http.Response)
	if !ok {
		return util.NewUpstreamError(opts.Upstream, "unexpected upstream result")
	}
	defer func() { _ = upstreamResp.Body.Close() }()

	if f.metrics != nil {
		f.metrics.ObserveUpstream(target.Host, upstreamResp.StatusCode, time.Since(start))
	}

	f.logger.Debug("upstream response",
		observability.String("upstream", opts.Upstream),
		observability.String("path", out.URL.Path),
		observability.Int("status", upstreamResp.StatusCode),
	)

	return writeUpstreamResponse(resp, upstreamResp)
}

// buildOutbound constructs the outbound request per the preserve flags.
func (f *Forwarder) buildOutbound(req *httpmodel.Request, target *url.URL, opts Options) (*http.Request, error) {
	outURL := *target
	if opts.PreservePath {
		outURL.Path = joinPath(target.Path, req.Path())
		outURL.RawPath = ""
	}
	if opts.PreserveQuery {
		outURL.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.HasBody() {
		body = req.BodyReader()
	}

	ctx := recursion.ContextWithDepth(req.Context(), req.Depth)
	out, err := http.NewRequestWithContext(ctx, req.Method, outURL.String(), body)
	if err != nil {
		return nil, util.NewUpstreamErrorWithCause(opts.Upstream, "failed to build upstream request", err)
	}

	if opts.PreserveHeaders {
		req.Header.Each(func(name, value string) {
			if isHopHeader(name) || strings.EqualFold(name, "Host") {
				return
			}
			out.Header.Add(name, value)
		})
	}

	if opts.PreserveHost {
		if host := req.Header.Get("Host"); host != "" {
			out.Host = host
		}
	}

	return out, nil
}

// writeUpstreamResponse copies the upstream status, headers, and body into
// the canonical response. Streaming responses flush chunk by chunk and
// honor the transport's backpressure; buffered responses accumulate.
func writeUpstreamResponse(resp *httpmodel.Response, upstream *http.Response) error {
	resp.SetStatus(upstream.StatusCode)

	for name, values := range upstream.Header {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			resp.Header().Add(name, v)
		}
	}

	if _, err := io.Copy(resp, upstream.Body); err != nil {
		return util.NewUpstreamErrorWithCause(upstream.Request.URL.String(), "failed to read upstream body", err)
	}
	return nil
}

// joinPath joins an upstream base path with the request path.
func joinPath(base, reqPath string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return reqPath
	}
	if !strings.HasPrefix(reqPath, "/") {
		reqPath = "/" + reqPath
	}
	return base + reqPath
}

// isHopHeader reports whether name is a hop-by-hop header.
func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
