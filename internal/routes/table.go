package routes

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/pathpattern"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Route is one entry of the route table: an optional condition, an ordered
// action list, and a terminal flag. Done marks a route whose match stops
// further table evaluation, used for catch-all and not-found fallbacks.
type Route struct {
	Condition *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Actions   ActionList `yaml:"actions" json:"actions"`
	Done      bool       `yaml:"done,omitempty" json:"done,omitempty"`
}

// CompiledRoute pairs a Route with its compiled condition.
type CompiledRoute struct {
	Route
	matcher *conditionMatcher
}

// Match evaluates the route's condition against a request, returning the
// parameters captured by the matching path pattern.
func (cr *CompiledRoute) Match(req *httpmodel.Request) (bool, pathpattern.Params) {
	return cr.matcher.match(req)
}

// Table is the ordered route table. Order is significant: entries are
// evaluated first to last, except that Prepend inserts at the front so
// routes discovered later at build time can outrank earlier fallbacks.
// Mutators are used at build time only; matching at run time is read-only.
type Table struct {
	routes []*CompiledRoute
	mu     sync.RWMutex
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{}
}

// compile validates a route and compiles its condition and patterns. All
// validation happens here, at table construction, never per request.
func compile(route Route) (*CompiledRoute, error) {
	if len(route.Actions) == 0 {
		return nil, util.NewConfigError("route", "route has no actions")
	}

	for _, a := range route.Actions {
		if rw, ok := a.(*RewriteAction); ok && rw.From != "" {
			p, err := pathpattern.Compile(rw.From)
			if err != nil {
				return nil, util.NewConfigErrorWithCause("route.actions",
					fmt.Sprintf("invalid rewrite pattern %q", rw.From), err)
			}
			rw.fromPattern = p
		}
	}

	matcher, err := compileCondition(route.Condition)
	if err != nil {
		return nil, err
	}

	return &CompiledRoute{Route: route, matcher: matcher}, nil
}

// Append adds a route to the end of the table.
func (t *Table) Append(route Route) error {
	compiled, err := compile(route)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, compiled)
	return nil
}

// Prepend adds a route to the front of the table so it outranks every
// previously added entry.
func (t *Table) Prepend(route Route) error {
	compiled, err := compile(route)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append([]*CompiledRoute{compiled}, t.routes...)
	return nil
}

// MatchAll appends a condition-less catch-all route, conventionally added
// last.
func (t *Table) MatchAll(done bool, actions ...Action) error {
	return t.Append(Route{Actions: actions, Done: done})
}

// Routes returns the table entries in evaluation order.
func (t *Table) Routes() []*CompiledRoute {
	t.mu.RLock()
	defer t.mu.RUnlock()
	routes := make([]*CompiledRoute, len(t.routes))
	copy(routes, t.routes)
	return routes
}

// Len returns the number of table entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// TableSpec is the persisted wire form of a route table.
type TableSpec struct {
	Routes []Route `yaml:"routes" json:"routes"`
}

// ParseTable builds a table from its persisted wire form. YAML and JSON
// documents are both accepted. Malformed patterns and unknown action types
// fail here, before the first request is served.
func ParseTable(data []byte) (*Table, error) {
	var spec TableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, util.NewConfigErrorWithCause("routes", "failed to parse route table", err)
	}

	return BuildTable(spec.Routes)
}

// BuildTable compiles a table from decoded route entries.
func BuildTable(entries []Route) (*Table, error) {
	t := NewTable()
	for i, route := range entries {
		if err := t.Append(route); err != nil {
			return nil, util.WrapError(err, fmt.Sprintf("route %d", i))
		}
	}
	return t, nil
}
