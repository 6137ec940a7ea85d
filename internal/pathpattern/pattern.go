// Package pathpattern compiles declarative path patterns into matching
// expressions and performs the inverse substitution.
//
// A pattern is a literal path that may contain named parameter tokens:
//
//	:name   exactly one path segment
//	:name?  zero or one segment
//	:name+  one or more segments
//	:name*  zero or more segments
//
// Optional tokens swallow an immediately preceding slash so that omitting
// the parameter never leaves a dangling slash. Matching is case-insensitive
// and tolerates one trailing slash.
package pathpattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Modifier describes the repetition behavior of a parameter token.
type Modifier int

// Parameter token modifiers.
const (
	ModExact    Modifier = iota // :name, exactly one segment
	ModOptional                 // :name?, zero or one segment
	ModOnePlus                  // :name+, one or more segments
	ModZeroPlus                 // :name*, zero or more segments
)

// token is one element of a parsed pattern: either a literal run or a
// named parameter.
type token struct {
	literal  string
	name     string
	modifier Modifier
	isParam  bool
}

// Pattern is a compiled path pattern.
type Pattern struct {
	raw    string
	params []string
	tokens []token
	regex  *regexp.Regexp
}

// Param is one extracted parameter value. Exact and optional tokens yield a
// scalar; repeat tokens yield the individually captured segments.
type Param struct {
	Value string
	Parts []string
	Multi bool
}

// Scalar creates a single-segment parameter value.
func Scalar(v string) Param {
	return Param{Value: v}
}

// List creates a multi-segment parameter value.
func List(parts ...string) Param {
	return Param{Parts: parts, Multi: true}
}

// Segments returns the parameter value as path segments.
func (p Param) Segments() []string {
	if p.Multi {
		return p.Parts
	}
	return []string{p.Value}
}

// String returns the parameter rendered into a path fragment, joining
// multi-segment values with "/".
func (p Param) String() string {
	if p.Multi {
		return strings.Join(p.Parts, "/")
	}
	return p.Value
}

// Params maps parameter names to extracted values. Parameters that matched
// nothing (omitted optional or catch-all tokens) are absent from the map.
type Params map[string]Param

// paramNameRe matches a parameter name after the ':' marker.
var paramNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// Compile parses and compiles a pattern. Malformed patterns are build-time
// configuration errors.
func Compile(pattern string) (*Pattern, error) {
	tokens, err := parse(pattern)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("(?i)^")

	var params []string

	for _, tok := range tokens {
		if !tok.isParam {
			sb.WriteString(regexp.QuoteMeta(tok.literal))
			continue
		}

		params = append(params, tok.name)

		switch tok.modifier {
		case ModExact:
			sb.WriteString("([^/]+)")
		case ModOptional:
			// The optional group swallows the preceding slash so that
			// an omitted parameter never leaves a dangling slash.
			sb.WriteString("(?:/([^/]+))?")
		case ModOnePlus:
			sb.WriteString("([^/]+(?:/[^/]+)*)")
		case ModZeroPlus:
			sb.WriteString("(?:/([^/]+(?:/[^/]+)*))?")
		}
	}

	sb.WriteString("/?$")

	regex, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, util.NewConfigErrorWithCause("pattern", fmt.Sprintf("invalid pattern %q", pattern), err)
	}

	return &Pattern{
		raw:    pattern,
		params: params,
		tokens: tokens,
		regex:  regex,
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// static patterns.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// parse splits a pattern into literal and parameter tokens. Literal runs
// immediately preceding an optional token lose their trailing slash; the
// optional group re-adds it.
func parse(pattern string) ([]token, error) {
	var tokens []token
	var literal strings.Builder

	flushLiteral := func(trimSlash bool) {
		lit := literal.String()
		if trimSlash {
			lit = strings.TrimSuffix(lit, "/")
		}
		if lit != "" {
			tokens = append(tokens, token{literal: lit})
		}
		literal.Reset()
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c != ':' {
			literal.WriteByte(c)
			i++
			continue
		}

		rest := pattern[i+1:]
		name := paramNameRe.FindString(rest)
		if name == "" {
			return nil, util.NewConfigError("pattern",
				fmt.Sprintf("invalid pattern %q: ':' must be followed by a parameter name", pattern))
		}
		i += 1 + len(name)

		mod := ModExact
		if i < len(pattern) {
			switch pattern[i] {
			case '?':
				mod = ModOptional
				i++
			case '+':
				mod = ModOnePlus
				i++
			case '*':
				mod = ModZeroPlus
				i++
			}
		}

		// Optional and catch-all groups swallow the slash themselves.
		flushLiteral(mod == ModOptional || mod == ModZeroPlus)

		tokens = append(tokens, token{name: name, modifier: mod, isParam: true})
	}
	flushLiteral(false)

	return tokens, nil
}

// Raw returns the original pattern text.
func (p *Pattern) Raw() string {
	return p.raw
}

// ParamNames returns the ordered parameter names of the pattern.
func (p *Pattern) ParamNames() []string {
	return p.params
}

// Match reports whether path matches the pattern and resolves the named
// parameters. Repeat tokens yield multi-segment values; omitted optional
// tokens are absent from the result.
func (p *Pattern) Match(path string) (bool, Params) {
	m := p.regex.FindStringSubmatch(path)
	if m == nil {
		return false, nil
	}

	params := make(Params, len(p.params))
	idx := 1
	for _, tok := range p.tokens {
		if !tok.isParam {
			continue
		}
		captured := m[idx]
		idx++

		if captured == "" {
			continue
		}

		switch tok.modifier {
		case ModOnePlus, ModZeroPlus:
			params[tok.name] = List(strings.Split(captured, "/")...)
		default:
			params[tok.name] = Scalar(captured)
		}
	}

	return true, params
}

// MatchString reports whether path matches the pattern without resolving
// parameters.
func (p *Pattern) MatchString(path string) bool {
	return p.regex.MatchString(path)
}

// Substitute performs the inverse of Match, building a literal path from the
// pattern and the given parameters. Multi-segment values are joined with
// "/". A missing parameter is an error for exact and one-plus tokens and
// omits the segment for optional and zero-plus tokens.
func Substitute(pattern string, params Params) (string, error) {
	tokens, err := parse(pattern)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if !tok.isParam {
			sb.WriteString(tok.literal)
			continue
		}

		value, ok := params[tok.name]
		rendered := value.String()

		switch tok.modifier {
		case ModExact, ModOnePlus:
			if !ok || rendered == "" {
				return "", util.NewConfigError("pattern",
					fmt.Sprintf("missing value for parameter %q in %q", tok.name, pattern))
			}
			sb.WriteString(rendered)
		case ModOptional, ModZeroPlus:
			if ok && rendered != "" {
				sb.WriteString("/")
				sb.WriteString(rendered)
			}
		}
	}

	out := sb.String()
	if out == "" {
		out = "/"
	}
	return out, nil
}

// Substitute builds a literal path from this pattern and the given
// parameters.
func (p *Pattern) Substitute(params Params) (string, error) {
	return Substitute(p.raw, params)
}
