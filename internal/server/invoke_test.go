package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
	"github.com/vyrodovalexey/edgerouter/internal/wire"
)

func TestInvokeRoundTrip(t *testing.T) {
	t.Parallel()

	inv := NewInvoker(newEchoEngine(t))

	out, err := inv.Invoke(context.Background(), &wire.InvokeRequest{
		Method:      "POST",
		Path:        "/submit",
		QueryString: "a=1",
		Headers:     map[string]string{"X-Trace": "t1"},
		Body:        "aGVsbG8=",
		IsBase64Encoded: true,
	}, false)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, out.StatusCode)
	require.True(t, out.IsBase64Encoded)

	raw, err := base64.StdEncoding.DecodeString(out.Body)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "POST", payload["method"])
	assert.Equal(t, "/submit", payload["path"])
	assert.Equal(t, "hello", payload["body"])
}

func TestInvokeExcludeBody(t *testing.T) {
	t.Parallel()

	inv := NewInvoker(newEchoEngine(t))

	out, err := inv.Invoke(context.Background(), &wire.InvokeRequest{
		Method: "GET",
		Path:   "/",
	}, true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Empty(t, out.Body)
	assert.Equal(t, "application/json", out.Headers["Content-Type"])
}

func TestInvokeDecodeFailure(t *testing.T) {
	t.Parallel()

	inv := NewInvoker(newEchoEngine(t))

	_, err := inv.Invoke(context.Background(), &wire.InvokeRequest{
		Method:   "GET",
		Path:     "/",
		Body:     "not-base64!!!",
		IsBase64Encoded: true,
	}, false)
	require.Error(t, err)
}

func TestInvokeRendersErrorEvent(t *testing.T) {
	t.Parallel()

	table, err := routes.BuildTable([]routes.Route{{
		Actions: routes.ActionList{routes.ServeApp()},
		Done:    true,
	}})
	require.NoError(t, err)
	inv := NewInvoker(engine.New(table, engine.WithProduction(true)))

	out, err := inv.Invoke(context.Background(), &wire.InvokeRequest{
		Method: "GET",
		Path:   "/",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
}
