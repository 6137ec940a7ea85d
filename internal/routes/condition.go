package routes

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/pathpattern"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// StringMatch is one condition dimension: a literal, a list of literals
// (any member matches), or a regular expression. On the wire it is a plain
// string, a sequence of strings, or a mapping with a single "regex" key.
type StringMatch struct {
	Literal string
	List    []string
	Regex   string
}

// IsEmpty reports whether no match is configured.
func (m *StringMatch) IsEmpty() bool {
	return m == nil || (m.Literal == "" && len(m.List) == 0 && m.Regex == "")
}

// values returns the literal values of the match, treating a single literal
// as a one-element list.
func (m *StringMatch) values() []string {
	if m.Literal != "" {
		return []string{m.Literal}
	}
	return m.List
}

// regexSpec is the wire mapping form of a regular expression match.
type regexSpec struct {
	Regex string `yaml:"regex" json:"regex"`
}

// UnmarshalYAML decodes the scalar, sequence, or mapping wire form.
func (m *StringMatch) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&m.Literal)
	case yaml.SequenceNode:
		return value.Decode(&m.List)
	case yaml.MappingNode:
		var spec regexSpec
		if err := value.Decode(&spec); err != nil {
			return err
		}
		if spec.Regex == "" {
			return util.NewConfigError("condition", "match mapping requires a regex key")
		}
		m.Regex = spec.Regex
		return nil
	default:
		return util.NewConfigError("condition", "match must be a string, list, or regex mapping")
	}
}

// UnmarshalJSON decodes the scalar, sequence, or mapping wire form.
func (m *StringMatch) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, `"`):
		return json.Unmarshal(data, &m.Literal)
	case strings.HasPrefix(trimmed, "["):
		return json.Unmarshal(data, &m.List)
	case strings.HasPrefix(trimmed, "{"):
		var spec regexSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return err
		}
		if spec.Regex == "" {
			return util.NewConfigError("condition", "match mapping requires a regex key")
		}
		m.Regex = spec.Regex
		return nil
	default:
		return util.NewConfigError("condition", "match must be a string, list, or regex mapping")
	}
}

// MarshalYAML encodes the match back into its wire form.
func (m StringMatch) MarshalYAML() (any, error) {
	switch {
	case m.Regex != "":
		return regexSpec{Regex: m.Regex}, nil
	case len(m.List) > 0:
		return m.List, nil
	default:
		return m.Literal, nil
	}
}

// MarshalJSON encodes the match back into its wire form.
func (m StringMatch) MarshalJSON() ([]byte, error) {
	switch {
	case m.Regex != "":
		return json.Marshal(regexSpec{Regex: m.Regex})
	case len(m.List) > 0:
		return json.Marshal(m.List)
	default:
		return json.Marshal(m.Literal)
	}
}

// Condition restricts a route to requests matching every specified
// dimension. Missing dimensions are wildcards. The URL dimension compares
// against the request's canonical full URL, with query parameters
// re-encoded in sorted key order; literal URL conditions must be written
// in that form.
type Condition struct {
	Method *StringMatch `yaml:"method,omitempty" json:"method,omitempty"`
	Path   *StringMatch `yaml:"path,omitempty" json:"path,omitempty"`
	URL    *StringMatch `yaml:"url,omitempty" json:"url,omitempty"`
}

// IsEmpty reports whether the condition has no dimensions, matching
// anything.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Method.IsEmpty() && c.Path.IsEmpty() && c.URL.IsEmpty())
}

// conditionMatcher is the compiled form of a Condition. Path literals are
// compiled as path patterns once at table build and reused for every
// request.
type conditionMatcher struct {
	methods     map[string]bool
	methodRegex *regexp.Regexp

	pathPatterns []*pathpattern.Pattern
	pathRegex    *regexp.Regexp

	urlLiterals map[string]bool
	urlRegex    *regexp.Regexp
}

// compileCondition validates and compiles a condition. A nil condition
// compiles to a matcher that matches every request.
func compileCondition(c *Condition) (*conditionMatcher, error) {
	cm := &conditionMatcher{}
	if c == nil {
		return cm, nil
	}

	if !c.Method.IsEmpty() {
		if c.Method.Regex != "" {
			re, err := regexp.Compile("(?i)^(?:" + c.Method.Regex + ")$")
			if err != nil {
				return nil, util.NewConfigErrorWithCause("condition.method", "invalid method regex", err)
			}
			cm.methodRegex = re
		} else {
			cm.methods = make(map[string]bool)
			for _, m := range c.Method.values() {
				cm.methods[strings.ToUpper(m)] = true
			}
		}
	}

	if !c.Path.IsEmpty() {
		if c.Path.Regex != "" {
			re, err := regexp.Compile(c.Path.Regex)
			if err != nil {
				return nil, util.NewConfigErrorWithCause("condition.path", "invalid path regex", err)
			}
			cm.pathRegex = re
		} else {
			for _, raw := range c.Path.values() {
				p, err := pathpattern.Compile(raw)
				if err != nil {
					return nil, util.NewConfigErrorWithCause("condition.path",
						fmt.Sprintf("invalid path pattern %q", raw), err)
				}
				cm.pathPatterns = append(cm.pathPatterns, p)
			}
		}
	}

	if !c.URL.IsEmpty() {
		if c.URL.Regex != "" {
			re, err := regexp.Compile(c.URL.Regex)
			if err != nil {
				return nil, util.NewConfigErrorWithCause("condition.url", "invalid url regex", err)
			}
			cm.urlRegex = re
		} else {
			cm.urlLiterals = make(map[string]bool)
			for _, u := range c.URL.values() {
				cm.urlLiterals[u] = true
			}
		}
	}

	return cm, nil
}

// match evaluates the compiled condition against a request. Specified
// dimensions AND together; a list dimension matches when any member
// matches. On success the parameters captured by the matching path pattern
// are returned.
func (cm *conditionMatcher) match(req *httpmodel.Request) (bool, pathpattern.Params) {
	if cm.methods != nil && !cm.methods[strings.ToUpper(req.Method)] {
		return false, nil
	}
	if cm.methodRegex != nil && !cm.methodRegex.MatchString(req.Method) {
		return false, nil
	}

	var params pathpattern.Params
	if len(cm.pathPatterns) > 0 {
		matched := false
		for _, p := range cm.pathPatterns {
			if ok, captured := p.Match(req.Path()); ok {
				matched = true
				params = captured
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	if cm.pathRegex != nil && !cm.pathRegex.MatchString(req.Path()) {
		return false, nil
	}

	if cm.urlLiterals != nil || cm.urlRegex != nil {
		full := req.FullURL()
		if cm.urlLiterals != nil && !cm.urlLiterals[full] {
			return false, nil
		}
		if cm.urlRegex != nil && !cm.urlRegex.MatchString(full) {
			return false, nil
		}
	}

	return true, params
}
