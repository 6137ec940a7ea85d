package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
	"github.com/vyrodovalexey/edgerouter/internal/wire"
)

func newEchoEngine(t *testing.T) *engine.Engine {
	t.Helper()
	table, err := routes.BuildTable([]routes.Route{{
		Actions: routes.ActionList{routes.Echo()},
		Done:    true,
	}})
	require.NoError(t, err)
	return engine.New(table)
}

func TestHandlerServesRequest(t *testing.T) {
	t.Parallel()

	h := NewHandler(newEchoEngine(t))

	req := httptest.NewRequest("POST", "/hello?x=1", strings.NewReader("payload"))
	req.Header.Set("X-Custom", "value")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "POST", payload["method"])
	assert.Equal(t, "/hello", payload["path"])
	assert.Equal(t, "payload", payload["body"])
}

func TestHandlerGeneratesRequestID(t *testing.T) {
	t.Parallel()

	h := NewHandler(newEchoEngine(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandlerPropagatesRequestID(t *testing.T) {
	t.Parallel()

	h := NewHandler(newEchoEngine(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestHandlerStreamingFrames(t *testing.T) {
	t.Parallel()

	table, err := routes.BuildTable([]routes.Route{{
		Actions: routes.ActionList{
			routes.SetStatus(http.StatusCreated),
			routes.Echo(),
		},
		Done: true,
	}})
	require.NoError(t, err)
	h := NewHandler(engine.New(table))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(wire.StreamingHeaderName, "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	status, headers, body, err := wire.DecodeStream(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Contains(t, string(body), `"method"`)
}

func TestHandlerPreservesInboundHost(t *testing.T) {
	t.Parallel()

	var gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	action := routes.Proxy(upstream.URL)
	action.PreserveHost = true
	table, err := routes.BuildTable([]routes.Route{{
		Actions: routes.ActionList{action},
		Done:    true,
	}})
	require.NoError(t, err)
	h := NewHandler(engine.New(table))

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "edge.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edge.example", gotHost)
}

func TestHandlerBufferedHasNoFraming(t *testing.T) {
	t.Parallel()

	h := NewHandler(newEchoEngine(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.NotContains(t, rec.Body.String(), "\x00")
	assert.True(t, json.Valid(rec.Body.Bytes()))
}
