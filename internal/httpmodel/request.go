package httpmodel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/vyrodovalexey/edgerouter/internal/pathpattern"
)

// Request is the canonical representation of an inbound HTTP request. It is
// built once per inbound call and mutated in place by header, query, and
// path-rewriting actions before being forwarded or rendered.
type Request struct {
	Method string
	URL    *url.URL
	Header *Header

	// Query holds the mutable query parameters. Render writes them back to
	// URL.RawQuery.
	Query url.Values

	// Params holds the parameters captured by path matching.
	Params pathpattern.Params

	// Depth is the self-referential call depth read from the recursion
	// header; it is derived per call and never persisted.
	Depth int

	body      io.ReadCloser
	bodyBytes []byte
	bodyRead  bool

	ctx context.Context
}

// NewRequest creates a Request for the given method and URL.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", rawURL, err)
	}

	return &Request{
		Method: method,
		URL:    u,
		Header: NewHeader(),
		Query:  u.Query(),
		Params: pathpattern.Params{},
		ctx:    context.Background(),
	}, nil
}

// Path returns the request's effective path.
func (r *Request) Path() string {
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// SetPath rewrites the request's effective path in place so later actions
// and later table entries observe the rewritten path.
func (r *Request) SetPath(path string) {
	r.URL.Path = path
	r.URL.RawPath = ""
}

// FullURL returns the request URL in canonical form: the current path with
// the live query parameters re-encoded in sorted key order, and scheme and
// host only when the inbound URL carried them. URL route conditions match
// against this form, so literal URL conditions must be written canonically.
func (r *Request) FullURL() string {
	u := *r.URL
	u.RawQuery = r.Query.Encode()
	return u.String()
}

// SetBody sets the request body from a byte slice.
func (r *Request) SetBody(body []byte) {
	r.bodyBytes = body
	r.bodyRead = true
	r.body = nil
}

// SetBodyStream sets the request body from a stream.
func (r *Request) SetBodyStream(body io.ReadCloser) {
	r.body = body
	r.bodyBytes = nil
	r.bodyRead = false
}

// Body reads and caches the full request body. Subsequent calls return the
// cached bytes.
func (r *Request) Body() ([]byte, error) {
	if r.bodyRead {
		return r.bodyBytes, nil
	}
	r.bodyRead = true

	if r.body == nil {
		return nil, nil
	}
	defer func() { _ = r.body.Close() }()

	data, err := io.ReadAll(r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.bodyBytes = data
	return data, nil
}

// BodyReader returns the body as a reader without caching when the body is
// still unread, falling back to the cached bytes otherwise.
func (r *Request) BodyReader() io.Reader {
	if !r.bodyRead && r.body != nil {
		return r.body
	}
	return bytes.NewReader(r.bodyBytes)
}

// HasBody reports whether the request carries a body.
func (r *Request) HasBody() bool {
	return (!r.bodyRead && r.body != nil) || len(r.bodyBytes) > 0
}

// Context returns the request's context. It is threaded through the
// request's lifetime so in-flight upstream calls and body reads are aborted
// when the underlying connection closes early.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext sets the request's context.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}
