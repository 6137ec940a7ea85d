package pathpattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileExactToken(t *testing.T) {
	t.Parallel()

	p, err := Compile("/users/:id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, p.ParamNames())

	tests := []struct {
		name    string
		path    string
		matched bool
		id      string
	}{
		{name: "single segment", path: "/users/7", matched: true, id: "7"},
		{name: "trailing slash tolerated", path: "/users/7/", matched: true, id: "7"},
		{name: "case-insensitive", path: "/USERS/7", matched: true, id: "7"},
		{name: "missing segment", path: "/users", matched: false},
		{name: "extra segment", path: "/users/7/posts", matched: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			matched, params := p.Match(tt.path)
			assert.Equal(t, tt.matched, matched)
			if tt.matched {
				assert.Equal(t, tt.id, params["id"].String())
			}
		})
	}
}

func TestCompileOptionalToken(t *testing.T) {
	t.Parallel()

	p, err := Compile("/users/:id?")
	require.NoError(t, err)

	matched, params := p.Match("/users")
	assert.True(t, matched)
	assert.NotContains(t, params, "id")

	matched, params = p.Match("/users/7")
	assert.True(t, matched)
	assert.Equal(t, "7", params["id"].Value)

	matched, _ = p.Match("/users/7/8")
	assert.False(t, matched)
}

func TestCompileOnePlusToken(t *testing.T) {
	t.Parallel()

	p, err := Compile("/users/:id+")
	require.NoError(t, err)

	matched, _ := p.Match("/users")
	assert.False(t, matched)

	matched, params := p.Match("/users/1")
	assert.True(t, matched)
	assert.Equal(t, []string{"1"}, params["id"].Segments())

	matched, params = p.Match("/users/1/2/3")
	assert.True(t, matched)
	assert.Equal(t, []string{"1", "2", "3"}, params["id"].Segments())
}

func TestCompileZeroPlusToken(t *testing.T) {
	t.Parallel()

	p, err := Compile("/users/:id*")
	require.NoError(t, err)

	matched, params := p.Match("/users")
	assert.True(t, matched)
	assert.NotContains(t, params, "id")

	matched, params = p.Match("/users/1/2/3")
	assert.True(t, matched)
	assert.Equal(t, []string{"1", "2", "3"}, params["id"].Segments())
}

func TestCompileLiteralMetacharacters(t *testing.T) {
	t.Parallel()

	p, err := Compile("/files/v1.2/:name")
	require.NoError(t, err)

	matched, params := p.Match("/files/v1.2/report")
	assert.True(t, matched)
	assert.Equal(t, "report", params["name"].Value)

	// The dot is a literal, not a regex wildcard.
	matched, _ = p.Match("/files/v1x2/report")
	assert.False(t, matched)
}

func TestCompileLiteralOnly(t *testing.T) {
	t.Parallel()

	p, err := Compile("/about")
	require.NoError(t, err)
	assert.Empty(t, p.ParamNames())

	matched, params := p.Match("/about")
	assert.True(t, matched)
	assert.Empty(t, params)

	matched, _ = p.Match("/about/us")
	assert.False(t, matched)
}

func TestCompileInvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := Compile("/users/:")
	assert.Error(t, err)
}

func TestSubstitute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		params  Params
		want    string
		wantErr bool
	}{
		{
			name:    "exact",
			pattern: "/users/:id",
			params:  Params{"id": Scalar("7")},
			want:    "/users/7",
		},
		{
			name:    "optional present",
			pattern: "/users/:id?",
			params:  Params{"id": Scalar("7")},
			want:    "/users/7",
		},
		{
			name:    "optional omitted",
			pattern: "/users/:id?",
			params:  Params{},
			want:    "/users",
		},
		{
			name:    "one-plus joined",
			pattern: "/files/:path+",
			params:  Params{"path": List("a", "b", "c")},
			want:    "/files/a/b/c",
		},
		{
			name:    "zero-plus omitted",
			pattern: "/files/:path*",
			params:  Params{},
			want:    "/files",
		},
		{
			name:    "missing exact value",
			pattern: "/users/:id",
			params:  Params{},
			wantErr: true,
		},
		{
			name:    "missing one-plus value",
			pattern: "/files/:path+",
			params:  Params{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Substitute(tt.pattern, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		params  Params
	}{
		{name: "exact", pattern: "/users/:id", params: Params{"id": Scalar("42")}},
		{name: "optional", pattern: "/users/:id?", params: Params{"id": Scalar("42")}},
		{name: "one-plus", pattern: "/users/:id+", params: Params{"id": List("1", "2")}},
		{name: "zero-plus", pattern: "/users/:id*", params: Params{"id": List("1", "2", "3")}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := MustCompile(tt.pattern)

			path, err := p.Substitute(tt.params)
			require.NoError(t, err)

			matched, extracted := p.Match(path)
			require.True(t, matched)
			assert.Equal(t, tt.params, extracted)
		})
	}
}
