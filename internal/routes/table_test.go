package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAppendOrder(t *testing.T) {
	t.Parallel()

	table := NewTable()
	require.NoError(t, table.Append(Route{
		Condition: &Condition{Path: &StringMatch{Literal: "/a"}},
		Actions:   ActionList{SetResponseHeader("X-Order", "first")},
	}))
	require.NoError(t, table.Append(Route{
		Actions: ActionList{SetResponseHeader("X-Order", "second")},
	}))

	routes := table.Routes()
	require.Len(t, routes, 2)
	assert.NotNil(t, routes[0].Condition)
	assert.Nil(t, routes[1].Condition)
}

func TestTablePrependOutranks(t *testing.T) {
	t.Parallel()

	table := NewTable()
	require.NoError(t, table.Append(Route{
		Actions: ActionList{SetResponseHeader("X-Rank", "fallback")},
	}))
	require.NoError(t, table.Prepend(Route{
		Condition: &Condition{Path: &StringMatch{Literal: "/assets/:rest*"}},
		Actions:   ActionList{ServeAsset()},
		Done:      true,
	}))

	routes := table.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, KindServeAsset, routes[0].Actions[0].Kind())
}

func TestTableMatchAll(t *testing.T) {
	t.Parallel()

	table := NewTable()
	require.NoError(t, table.MatchAll(true, SetStatus(404)))

	routes := table.Routes()
	require.Len(t, routes, 1)
	assert.Nil(t, routes[0].Condition)
	assert.True(t, routes[0].Done)

	matched, _ := routes[0].Match(mustRequest(t, "GET", "/no/such/path"))
	assert.True(t, matched)
}

func TestTableRejectsEmptyActions(t *testing.T) {
	t.Parallel()

	table := NewTable()
	assert.Error(t, table.Append(Route{}))
}

func TestTableCompilesRewritePatterns(t *testing.T) {
	t.Parallel()

	table := NewTable()
	rw := Rewrite("/old/:slug", "/new/:slug")
	require.NoError(t, table.Append(Route{Actions: ActionList{rw}}))
	assert.NotNil(t, rw.FromPattern())

	bad := Rewrite("/old/:", "/new")
	assert.Error(t, table.Append(Route{Actions: ActionList{bad}}))
}

func TestParseTableYAML(t *testing.T) {
	t.Parallel()

	doc := `
routes:
  - condition:
      path: "/static/:rest*"
    actions:
      - type: serveAsset
    done: true
  - actions:
      - type: proxy
        url: http://origin
    done: true
`

	table, err := ParseTable([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	matched, params := table.Routes()[0].Match(mustRequest(t, "GET", "/static/js/app.js"))
	require.True(t, matched)
	assert.Equal(t, []string{"js", "app.js"}, params["rest"].Segments())
}

func TestParseTableJSON(t *testing.T) {
	t.Parallel()

	doc := `{"routes":[{"actions":[{"type":"echo"}],"done":true}]}`

	table, err := ParseTable([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestParseTableRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	_, err := ParseTable([]byte(`{"routes":[{"actions":[{"type":"bogus"}]}]}`))
	assert.Error(t, err)
}
