package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/recursion"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

func newForwardRequest(t *testing.T, method, rawURL string) *httpmodel.Request {
	t.Helper()
	req, err := httpmodel.NewRequest(method, rawURL)
	require.NoError(t, err)
	return req
}

func TestForwardPreservesPathAndQuery(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream body"))
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/api/items?page=2")
	target := httpmodel.NewBufferTarget()
	resp := httpmodel.NewResponse(target)

	f := NewForwarder()
	err := f.Forward(req, resp, Options{
		Upstream:      srv.URL,
		PreservePath:  true,
		PreserveQuery: true,
	})
	require.NoError(t, err)
	require.NoError(t, resp.End())

	assert.Equal(t, "/api/items", gotPath)
	assert.Equal(t, "page=2", gotQuery)
	assert.Equal(t, http.StatusOK, target.StatusCode)
	assert.Equal(t, "yes", target.Head.Get("X-Upstream"))
	assert.Equal(t, "upstream body", target.Body.String())
}

func TestForwardDropsPathWhenNotPreserved(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/ignored/path")
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: srv.URL + "/fixed"})
	require.NoError(t, err)

	assert.Equal(t, "/fixed", gotPath)
}

func TestForwardJoinsUpstreamBasePath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/v1/users")
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{
		Upstream:     srv.URL + "/base/",
		PreservePath: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/base/v1/users", gotPath)
}

func TestForwardPreservesHeadersExceptHopByHop(t *testing.T) {
	t.Parallel()

	var gotAuth, gotConnection string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotConnection = r.Header.Get("Proxy-Connection")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/")
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Proxy-Connection", "keep-alive")
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: srv.URL, PreserveHeaders: true})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Empty(t, gotConnection)
}

func TestForwardCarriesIncrementedRecursionDepth(t *testing.T) {
	t.Parallel()

	var gotDepth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDepth = r.Header.Get(recursion.HeaderName)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/")
	req.Depth = 1
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, "2", gotDepth)
}

func TestForwardSendsRequestBody(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "POST", "/items")
	req.SetBody([]byte(`{"name":"x"}`))
	target := httpmodel.NewBufferTarget()
	resp := httpmodel.NewResponse(target)

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: srv.URL, PreservePath: true})
	require.NoError(t, err)
	require.NoError(t, resp.End())

	assert.Equal(t, `{"name":"x"}`, string(gotBody))
	assert.Equal(t, http.StatusCreated, target.StatusCode)
}

func TestForwardErrorStatusPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req := newForwardRequest(t, "GET", "/")
	target := httpmodel.NewBufferTarget()
	resp := httpmodel.NewResponse(target)

	f := NewForwarder()
	require.NoError(t, f.Forward(req, resp, Options{Upstream: srv.URL}))
	require.NoError(t, resp.End())

	assert.Equal(t, http.StatusServiceUnavailable, target.StatusCode)
}

func TestForwardUnreachableUpstream(t *testing.T) {
	t.Parallel()

	req := newForwardRequest(t, "GET", "/")
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUpstreamUnavail)
}

func TestForwardInvalidUpstreamURL(t *testing.T) {
	t.Parallel()

	req := newForwardRequest(t, "GET", "/")
	resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())

	f := NewForwarder()
	err := f.Forward(req, resp, Options{Upstream: "://bad"})
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUpstreamUnavail)
}

func TestForwardCircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	req := newForwardRequest(t, "GET", "/")
	f := NewForwarder()

	// Drive repeated failures against the same host until the breaker
	// opens; the open circuit still maps to the upstream error taxonomy.
	var lastErr error
	for i := 0; i < 10; i++ {
		resp := httpmodel.NewResponse(httpmodel.NewBufferTarget())
		lastErr = f.Forward(req, resp, Options{Upstream: "http://127.0.0.1:1"})
		require.Error(t, lastErr)
	}
	assert.ErrorIs(t, lastErr, util.ErrUpstreamUnavail)
}
