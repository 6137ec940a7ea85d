package routes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestActionListUnmarshalYAML(t *testing.T) {
	t.Parallel()

	doc := `
- type: setRequestHeader
  name: X-Forwarded-Proto
  value: https
- type: setStatus
  status: 503
- type: redirect
  location: /login
  status: 301
- type: rewrite
  from: "/old/:slug"
  to: "/new/:slug"
- type: proxy
  url: http://origin:8080
  preservePath: false
- type: serveAsset
  revalidateSeconds: 60
- type: servePermanentAsset
  path: /assets/app.js
- type: serveApp
- type: echo
- type: imageOptimizer
`

	var list ActionList
	require.NoError(t, yaml.Unmarshal([]byte(doc), &list))
	require.Len(t, list, 10)

	header, ok := list[0].(*HeaderAction)
	require.True(t, ok)
	assert.Equal(t, KindSetRequestHeader, header.Kind())
	assert.Equal(t, "X-Forwarded-Proto", header.Name)
	assert.Equal(t, "https", header.Value)
	assert.False(t, header.Terminal())

	status, ok := list[1].(*StatusAction)
	require.True(t, ok)
	assert.Equal(t, 503, status.Code)

	redirect, ok := list[2].(*RedirectAction)
	require.True(t, ok)
	assert.Equal(t, "/login", redirect.Location)
	assert.Equal(t, 301, redirect.Status)
	assert.True(t, redirect.Terminal())

	rewrite, ok := list[3].(*RewriteAction)
	require.True(t, ok)
	assert.Equal(t, "/old/:slug", rewrite.From)
	assert.Equal(t, "/new/:slug", rewrite.To)

	proxy, ok := list[4].(*ProxyAction)
	require.True(t, ok)
	assert.Equal(t, "http://origin:8080", proxy.URL)
	assert.False(t, proxy.PreservePath)
	// Unset preserve flags default to true.
	assert.True(t, proxy.PreserveQuery)
	assert.True(t, proxy.PreserveHeaders)
	assert.False(t, proxy.PreserveHost)

	asset, ok := list[5].(*ServeAssetAction)
	require.True(t, ok)
	assert.Equal(t, KindServeAsset, asset.Kind())
	assert.Equal(t, 60, asset.RevalidateSeconds)

	permanent, ok := list[6].(*ServeAssetAction)
	require.True(t, ok)
	assert.Equal(t, KindServePermanentAsset, permanent.Kind())
	assert.Equal(t, "/assets/app.js", permanent.Path)

	assert.Equal(t, KindServeApp, list[7].Kind())
	assert.Equal(t, KindEcho, list[8].Kind())
	assert.Equal(t, KindImageOptimizer, list[9].Kind())
}

func TestActionListUnmarshalJSON(t *testing.T) {
	t.Parallel()

	doc := `[{"type":"proxy","url":"http://origin"},{"type":"setResponseHeader","name":"X-One","value":"1"}]`

	var list ActionList
	require.NoError(t, json.Unmarshal([]byte(doc), &list))
	require.Len(t, list, 2)

	proxy, ok := list[0].(*ProxyAction)
	require.True(t, ok)
	assert.Equal(t, "http://origin", proxy.URL)
	assert.True(t, proxy.PreservePath)
}

func TestActionListUnknownType(t *testing.T) {
	t.Parallel()

	var list ActionList
	err := yaml.Unmarshal([]byte(`[{type: frobnicate}]`), &list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")
}

func TestActionListMissingDiscriminator(t *testing.T) {
	t.Parallel()

	var list ActionList
	err := yaml.Unmarshal([]byte(`[{name: X-One, value: "1"}]`), &list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type discriminator")
}

func TestActionListValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "header without name", doc: `[{type: setRequestHeader, value: v}]`},
		{name: "setStatus without code", doc: `[{type: setStatus}]`},
		{name: "redirect without location", doc: `[{type: redirect}]`},
		{name: "rewrite without target", doc: `[{type: rewrite, from: "/a"}]`},
		{name: "proxy without url", doc: `[{type: proxy}]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var list ActionList
			assert.Error(t, yaml.Unmarshal([]byte(tt.doc), &list))
		})
	}
}

func TestActionListMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	list := ActionList{
		SetResponseHeader("X-One", "1"),
		Proxy("http://origin"),
		Redirect("/login", 302),
	}

	data, err := json.Marshal(list)
	require.NoError(t, err)

	var decoded ActionList
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, list, decoded)
}
