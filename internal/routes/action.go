package routes

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/edgerouter/internal/pathpattern"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Kind is the action type discriminator carried on the wire.
type Kind string

// Wire values of the action type discriminator.
const (
	KindSetRequestHeader         Kind = "setRequestHeader"
	KindAddRequestHeader         Kind = "addRequestHeader"
	KindDeleteRequestHeader      Kind = "deleteRequestHeader"
	KindSetRequestHeaderDefault  Kind = "setRequestHeaderDefault"
	KindSetResponseHeader        Kind = "setResponseHeader"
	KindAddResponseHeader        Kind = "addResponseHeader"
	KindDeleteResponseHeader     Kind = "deleteResponseHeader"
	KindSetResponseHeaderDefault Kind = "setResponseHeaderDefault"
	KindSetStatus                Kind = "setStatus"
	KindRedirect                 Kind = "redirect"
	KindRewrite                  Kind = "rewrite"
	KindProxy                    Kind = "proxy"
	KindServeAsset               Kind = "serveAsset"
	KindServePermanentAsset      Kind = "servePermanentAsset"
	KindServeApp                 Kind = "serveApp"
	KindEcho                     Kind = "echo"
	KindImageOptimizer           Kind = "imageOptimizer"
)

// Action is one step of a route's action list. Terminal actions finalize
// the response and stop both the action list and further table evaluation.
type Action interface {
	Kind() Kind
	Terminal() bool
}

// HeaderAction mutates a single request- or response-side header. The
// default-only variants no-op when the header is already present.
type HeaderAction struct {
	kind  Kind
	Name  string
	Value string
}

// Kind returns the action discriminator.
func (a *HeaderAction) Kind() Kind { return a.kind }

// Terminal reports whether the action finalizes the response.
func (a *HeaderAction) Terminal() bool { return false }

// Header action constructors.

// SetRequestHeader replaces a request header.
func SetRequestHeader(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindSetRequestHeader, Name: name, Value: value}
}

// AddRequestHeader appends a request header value.
func AddRequestHeader(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindAddRequestHeader, Name: name, Value: value}
}

// DeleteRequestHeader removes a request header.
func DeleteRequestHeader(name string) *HeaderAction {
	return &HeaderAction{kind: KindDeleteRequestHeader, Name: name}
}

// SetRequestHeaderDefault sets a request header only when absent.
func SetRequestHeaderDefault(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindSetRequestHeaderDefault, Name: name, Value: value}
}

// SetResponseHeader replaces a response header.
func SetResponseHeader(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindSetResponseHeader, Name: name, Value: value}
}

// AddResponseHeader appends a response header value.
func AddResponseHeader(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindAddResponseHeader, Name: name, Value: value}
}

// DeleteResponseHeader removes a response header.
func DeleteResponseHeader(name string) *HeaderAction {
	return &HeaderAction{kind: KindDeleteResponseHeader, Name: name}
}

// SetResponseHeaderDefault sets a response header only when absent.
func SetResponseHeaderDefault(name, value string) *HeaderAction {
	return &HeaderAction{kind: KindSetResponseHeaderDefault, Name: name, Value: value}
}

// StatusAction sets the response status code.
type StatusAction struct {
	Code int
}

// Kind returns the action discriminator.
func (a *StatusAction) Kind() Kind { return KindSetStatus }

// Terminal reports whether the action finalizes the response.
func (a *StatusAction) Terminal() bool { return false }

// SetStatus creates a status mutation action.
func SetStatus(code int) *StatusAction {
	return &StatusAction{Code: code}
}

// RedirectAction finalizes the response with a Location header and a
// redirect status. The location may contain path parameters substituted
// from the matched pattern.
type RedirectAction struct {
	Location string
	Status   int
}

// Kind returns the action discriminator.
func (a *RedirectAction) Kind() Kind { return KindRedirect }

// Terminal reports whether the action finalizes the response.
func (a *RedirectAction) Terminal() bool { return true }

// Redirect creates a redirect action. A zero status defaults to 302 at
// execution time.
func Redirect(location string, status int) *RedirectAction {
	return &RedirectAction{Location: location, Status: status}
}

// RewriteAction mutates the request's effective path in place. With a From
// pattern it applies only on match and substitutes captured parameters into
// To; without one, To replaces the path unconditionally.
type RewriteAction struct {
	From string
	To   string

	fromPattern *pathpattern.Pattern
}

// FromPattern returns the compiled From pattern, or nil when the rewrite is
// unconditional. It is populated at table construction.
func (a *RewriteAction) FromPattern() *pathpattern.Pattern {
	return a.fromPattern
}

// Kind returns the action discriminator.
func (a *RewriteAction) Kind() Kind { return KindRewrite }

// Terminal reports whether the action finalizes the response.
func (a *RewriteAction) Terminal() bool { return false }

// Rewrite creates a rewrite action.
func Rewrite(from, to string) *RewriteAction {
	return &RewriteAction{From: from, To: to}
}

// ProxyAction finalizes the response by forwarding the request to an
// upstream URL. The preserve flags control which parts of the inbound
// request survive the forward.
type ProxyAction struct {
	URL                string
	PreserveHost       bool
	PreservePath       bool
	PreserveQuery      bool
	PreserveHeaders    bool
	InsecureSkipVerify bool
}

// Kind returns the action discriminator.
func (a *ProxyAction) Kind() Kind { return KindProxy }

// Terminal reports whether the action finalizes the response.
func (a *ProxyAction) Terminal() bool { return true }

// Proxy creates a proxy action preserving path, query, and headers.
func Proxy(upstream string) *ProxyAction {
	return &ProxyAction{
		URL:             upstream,
		PreservePath:    true,
		PreserveQuery:   true,
		PreserveHeaders: true,
	}
}

// ServeAssetAction finalizes the response with bytes and content type
// resolved from the build-time asset store. Permanent assets are
// content-addressed and served with an immutable cache policy; regular
// assets revalidate on the configured interval.
type ServeAssetAction struct {
	// Path overrides the request path for asset resolution when set.
	Path string
	// RevalidateSeconds is the revalidation interval for non-permanent
	// assets. Zero means the resolver default.
	RevalidateSeconds int
	Permanent         bool
}

// Kind returns the action discriminator.
func (a *ServeAssetAction) Kind() Kind {
	if a.Permanent {
		return KindServePermanentAsset
	}
	return KindServeAsset
}

// Terminal reports whether the action finalizes the response.
func (a *ServeAssetAction) Terminal() bool { return true }

// ServeAsset creates a serve-asset action.
func ServeAsset() *ServeAssetAction {
	return &ServeAssetAction{}
}

// ServePermanentAsset creates a serve-permanent-asset action.
func ServePermanentAsset() *ServeAssetAction {
	return &ServeAssetAction{Permanent: true}
}

// ServeAppAction finalizes the response by delegating to the embedded
// application process.
type ServeAppAction struct{}

// Kind returns the action discriminator.
func (a *ServeAppAction) Kind() Kind { return KindServeApp }

// Terminal reports whether the action finalizes the response.
func (a *ServeAppAction) Terminal() bool { return true }

// ServeApp creates a serve-app action.
func ServeApp() *ServeAppAction {
	return &ServeAppAction{}
}

// EchoAction finalizes the response with a diagnostic dump of the request.
type EchoAction struct{}

// Kind returns the action discriminator.
func (a *EchoAction) Kind() Kind { return KindEcho }

// Terminal reports whether the action finalizes the response.
func (a *EchoAction) Terminal() bool { return true }

// Echo creates an echo action.
func Echo() *EchoAction {
	return &EchoAction{}
}

// ImageOptimizerAction finalizes the response by delegating to the image
// optimizer upstream.
type ImageOptimizerAction struct {
	// Path overrides the request path forwarded to the optimizer.
	Path string
}

// Kind returns the action discriminator.
func (a *ImageOptimizerAction) Kind() Kind { return KindImageOptimizer }

// Terminal reports whether the action finalizes the response.
func (a *ImageOptimizerAction) Terminal() bool { return true }

// ImageOptimizer creates an image optimizer action.
func ImageOptimizer() *ImageOptimizerAction {
	return &ImageOptimizerAction{}
}

// actionSpec is the flat wire form of an action: a required type
// discriminator plus the union of all type-specific fields.
type actionSpec struct {
	Type Kind `yaml:"type" json:"type"`

	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	Status int `yaml:"status,omitempty" json:"status,omitempty"`

	Location string `yaml:"location,omitempty" json:"location,omitempty"`

	From string `yaml:"from,omitempty" json:"from,omitempty"`
	To   string `yaml:"to,omitempty" json:"to,omitempty"`

	URL                string `yaml:"url,omitempty" json:"url,omitempty"`
	PreserveHost       bool   `yaml:"preserveHost,omitempty" json:"preserveHost,omitempty"`
	PreservePath       *bool  `yaml:"preservePath,omitempty" json:"preservePath,omitempty"`
	PreserveQuery      *bool  `yaml:"preserveQuery,omitempty" json:"preserveQuery,omitempty"`
	PreserveHeaders    *bool  `yaml:"preserveHeaders,omitempty" json:"preserveHeaders,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`

	Path              string `yaml:"path,omitempty" json:"path,omitempty"`
	RevalidateSeconds int    `yaml:"revalidateSeconds,omitempty" json:"revalidateSeconds,omitempty"`
}

// boolOr returns *b, or def when b is nil.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// decodeAction converts a wire spec into a typed action. Unknown
// discriminators are build-time configuration errors.
func decodeAction(spec actionSpec) (Action, error) {
	switch spec.Type {
	case KindSetRequestHeader, KindAddRequestHeader, KindDeleteRequestHeader, KindSetRequestHeaderDefault,
		KindSetResponseHeader, KindAddResponseHeader, KindDeleteResponseHeader, KindSetResponseHeaderDefault:
		if spec.Name == "" {
			return nil, util.NewConfigError("actions", fmt.Sprintf("%s requires a header name", spec.Type))
		}
		return &HeaderAction{kind: spec.Type, Name: spec.Name, Value: spec.Value}, nil
	case KindSetStatus:
		if spec.Status == 0 {
			return nil, util.NewConfigError("actions", "setStatus requires a status code")
		}
		return &StatusAction{Code: spec.Status}, nil
	case KindRedirect:
		if spec.Location == "" {
			return nil, util.NewConfigError("actions", "redirect requires a location")
		}
		return &RedirectAction{Location: spec.Location, Status: spec.Status}, nil
	case KindRewrite:
		if spec.To == "" {
			return nil, util.NewConfigError("actions", "rewrite requires a target")
		}
		return &RewriteAction{From: spec.From, To: spec.To}, nil
	case KindProxy:
		if spec.URL == "" {
			return nil, util.NewConfigError("actions", "proxy requires an upstream url")
		}
		return &ProxyAction{
			URL:                spec.URL,
			PreserveHost:       spec.PreserveHost,
			PreservePath:       boolOr(spec.PreservePath, true),
			PreserveQuery:      boolOr(spec.PreserveQuery, true),
			PreserveHeaders:    boolOr(spec.PreserveHeaders, true),
			InsecureSkipVerify: spec.InsecureSkipVerify,
		}, nil
	case KindServeAsset:
		return &ServeAssetAction{Path: spec.Path, RevalidateSeconds: spec.RevalidateSeconds}, nil
	case KindServePermanentAsset:
		return &ServeAssetAction{Path: spec.Path, Permanent: true}, nil
	case KindServeApp:
		return &ServeAppAction{}, nil
	case KindEcho:
		return &EchoAction{}, nil
	case KindImageOptimizer:
		return &ImageOptimizerAction{Path: spec.Path}, nil
	case "":
		return nil, util.NewConfigError("actions", "action is missing the type discriminator")
	default:
		return nil, util.NewConfigError("actions", fmt.Sprintf("unknown action type %q", spec.Type))
	}
}

// encodeAction converts a typed action back into its wire spec.
func encodeAction(a Action) actionSpec {
	switch v := a.(type) {
	case *HeaderAction:
		return actionSpec{Type: v.kind, Name: v.Name, Value: v.Value}
	case *StatusAction:
		return actionSpec{Type: KindSetStatus, Status: v.Code}
	case *RedirectAction:
		return actionSpec{Type: KindRedirect, Location: v.Location, Status: v.Status}
	case *RewriteAction:
		return actionSpec{Type: KindRewrite, From: v.From, To: v.To}
	case *ProxyAction:
		return actionSpec{
			Type:               KindProxy,
			URL:                v.URL,
			PreserveHost:       v.PreserveHost,
			PreservePath:       &v.PreservePath,
			PreserveQuery:      &v.PreserveQuery,
			PreserveHeaders:    &v.PreserveHeaders,
			InsecureSkipVerify: v.InsecureSkipVerify,
		}
	case *ServeAssetAction:
		return actionSpec{Type: v.Kind(), Path: v.Path, RevalidateSeconds: v.RevalidateSeconds}
	case *ServeAppAction:
		return actionSpec{Type: KindServeApp}
	case *EchoAction:
		return actionSpec{Type: KindEcho}
	case *ImageOptimizerAction:
		return actionSpec{Type: KindImageOptimizer, Path: v.Path}
	default:
		return actionSpec{}
	}
}

// ActionList is a decoded, ordered action list. It unmarshals from the flat
// wire schema and marshals back to it.
type ActionList []Action

// UnmarshalYAML decodes an action list from its wire form.
func (l *ActionList) UnmarshalYAML(value *yaml.Node) error {
	var specs []actionSpec
	if err := value.Decode(&specs); err != nil {
		return err
	}
	return l.fromSpecs(specs)
}

// UnmarshalJSON decodes an action list from its wire form.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var specs []actionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return err
	}
	return l.fromSpecs(specs)
}

func (l *ActionList) fromSpecs(specs []actionSpec) error {
	actions := make([]Action, 0, len(specs))
	for _, spec := range specs {
		a, err := decodeAction(spec)
		if err != nil {
			return err
		}
		actions = append(actions, a)
	}
	*l = actions
	return nil
}

// MarshalYAML encodes the action list into its wire form.
func (l ActionList) MarshalYAML() (any, error) {
	specs := make([]actionSpec, len(l))
	for i, a := range l {
		specs[i] = encodeAction(a)
	}
	return specs, nil
}

// MarshalJSON encodes the action list into its wire form.
func (l ActionList) MarshalJSON() ([]byte, error) {
	specs := make([]actionSpec, len(l))
	for i, a := range l {
		specs[i] = encodeAction(a)
	}
	return json.Marshal(specs)
}
