package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/pathpattern"
	"github.com/vyrodovalexey/edgerouter/internal/proxy"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Outcome is the tri-state result of executing an action list: continue to
// the next table entry, stop this action list but keep evaluating the
// table, or stop table evaluation entirely.
type Outcome int

// Execution outcomes.
const (
	Continue Outcome = iota
	StopList
	StopTable
)

// String returns the outcome name for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case StopList:
		return "stop_list"
	case StopTable:
		return "stop_table"
	default:
		return "continue"
	}
}

// execute interprets an ordered action list against the request context.
// Non-terminal actions mutate state and continue; terminal actions finalize
// the response and stop the table. A terminal action that fails is returned
// for normalization into the error taxonomy, never thrown raw.
func (e *Engine) execute(actions routes.ActionList, rc *RequestContext) (Outcome, error) {
	for _, action := range actions {
		outcome, err := e.executeAction(action, rc)
		if e.metrics != nil {
			result := outcome.String()
			if err != nil {
				result = "error"
			}
			e.metrics.ObserveAction(string(action.Kind()), result)
		}
		if err != nil {
			return StopTable, err
		}
		if outcome != Continue {
			return outcome, nil
		}
		// Defensive: a non-terminal action cannot serve the response, but
		// if the response ended anyway the rest of the list is moot.
		if rc.Response.Ended() {
			return StopList, nil
		}
	}
	return Continue, nil
}

// executeAction dispatches one action on its discriminator.
func (e *Engine) executeAction(action routes.Action, rc *RequestContext) (Outcome, error) {
	switch a := action.(type) {
	case *routes.HeaderAction:
		applyHeaderAction(a, rc)
		return Continue, nil

	case *routes.StatusAction:
		rc.Response.SetStatus(a.Code)
		return Continue, nil

	case *routes.RewriteAction:
		return e.executeRewrite(a, rc)

	case *routes.RedirectAction:
		return e.executeRedirect(a, rc)

	case *routes.ProxyAction:
		return e.executeProxy(a, rc)

	case *routes.ServeAssetAction:
		return e.executeServeAsset(a, rc)

	case *routes.ServeAppAction:
		return e.executeServeApp(rc)

	case *routes.EchoAction:
		return e.executeEcho(rc)

	case *routes.ImageOptimizerAction:
		return e.executeImageOptimizer(a, rc)

	default:
		// Unknown discriminators are rejected at table construction; an
		// unhandled type here is a programming error in the dispatch.
		return StopTable, util.NewDelegateError(
			fmt.Errorf("unhandled action type %q", action.Kind()))
	}
}

// applyHeaderAction mutates one request- or response-side header.
func applyHeaderAction(a *routes.HeaderAction, rc *RequestContext) {
	var h *httpmodel.Header
	switch a.Kind() {
	case routes.KindSetRequestHeader, routes.KindAddRequestHeader,
		routes.KindDeleteRequestHeader, routes.KindSetRequestHeaderDefault:
		h = rc.Request.Header
	default:
		h = rc.Response.Header()
	}

	switch a.Kind() {
	case routes.KindSetRequestHeader, routes.KindSetResponseHeader:
		h.Set(a.Name, a.Value)
	case routes.KindAddRequestHeader, routes.KindAddResponseHeader:
		h.Add(a.Name, a.Value)
	case routes.KindDeleteRequestHeader, routes.KindDeleteResponseHeader:
		h.Del(a.Name)
	case routes.KindSetRequestHeaderDefault, routes.KindSetResponseHeaderDefault:
		h.SetDefault(a.Name, a.Value)
	}
}

// executeRewrite mutates the request's effective path in place so later
// actions and later table entries observe the rewritten path.
func (e *Engine) executeRewrite(a *routes.RewriteAction, rc *RequestContext) (Outcome, error) {
	if p := a.FromPattern(); p != nil {
		ok, params := p.Match(rc.Request.Path())
		if !ok {
			return Continue, nil
		}
		target, err := pathpattern.Substitute(a.To, params)
		if err != nil {
			return StopTable, util.NewDelegateError(err)
		}
		rc.Request.SetPath(target)
		return Continue, nil
	}

	target, err := substituteTarget(a.To, rc.Request.Params)
	if err != nil {
		return StopTable, util.NewDelegateError(err)
	}
	rc.Request.SetPath(target)
	return Continue, nil
}

// substituteTarget substitutes captured parameters into the path component
// of a redirect or rewrite target. Scheme and host of an absolute target
// are left untouched; a target with no tokens in its path passes through.
func substituteTarget(target string, params pathpattern.Params) (string, error) {
	u, err := url.Parse(target)
	if err != nil || !strings.Contains(u.Path, ":") {
		return target, nil
	}
	substituted, err := pathpattern.Substitute(u.Path, params)
	if err != nil {
		return "", err
	}
	u.Path = substituted
	u.RawPath = ""
	return u.String(), nil
}

// executeRedirect finalizes the response with a Location header.
func (e *Engine) executeRedirect(a *routes.RedirectAction, rc *RequestContext) (Outcome, error) {
	location, err := substituteTarget(a.Location, rc.Request.Params)
	if err != nil {
		location = a.Location
	}

	status := a.Status
	if status == 0 {
		status = http.StatusFound
	}

	rc.Response.SetStatus(status)
	rc.Response.Header().Set("Location", location)
	if err := rc.Response.End(); err != nil {
		return StopTable, err
	}
	return StopTable, nil
}

// executeProxy finalizes the response from the upstream described by the
// action.
func (e *Engine) executeProxy(a *routes.ProxyAction, rc *RequestContext) (Outcome, error) {
	err := e.forwarder.Forward(rc.Request, rc.Response, proxy.Options{
		Upstream:           a.URL,
		PreserveHost:       a.PreserveHost,
		PreservePath:       a.PreservePath,
		PreserveQuery:      a.PreserveQuery,
		PreserveHeaders:    a.PreserveHeaders,
		InsecureSkipVerify: a.InsecureSkipVerify,
	})
	if err != nil {
		return StopTable, err
	}
	if err := rc.Response.End(); err != nil {
		return StopTable, err
	}
	return StopTable, nil
}

// executeServeAsset finalizes the response with bytes from the asset store.
func (e *Engine) executeServeAsset(a *routes.ServeAssetAction, rc *RequestContext) (Outcome, error) {
	if e.assets == nil {
		return StopTable, util.NewAssetError(rc.Request.Path(), nil)
	}

	assetPath := a.Path
	if assetPath == "" {
		assetPath = rc.Request.Path()
	}

	asset, err := e.assets.Resolve(rc.Request.Context(), assetPath)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveAssetServe("miss")
		}
		return StopTable, err
	}
	if e.metrics != nil {
		e.metrics.ObserveAssetServe("hit")
	}

	resp := rc.Response
	resp.Header().SetDefault("Content-Type", asset.ContentType)
	resp.Header().SetDefault("Cache-Control", cacheControl(a))
	if _, err := resp.Write(asset.Content); err != nil {
		return StopTable, err
	}
	if err := resp.End(); err != nil {
		return StopTable, err
	}
	return StopTable, nil
}

// cacheControl returns the cache policy for an asset action. Permanent
// assets are content-addressed and never change; regular assets revalidate
// on the configured interval.
func cacheControl(a *routes.ServeAssetAction) string {
	if a.Permanent {
		return "public, max-age=31536000, immutable"
	}
	if a.RevalidateSeconds > 0 {
		return fmt.Sprintf("public, max-age=%d, must-revalidate", a.RevalidateSeconds)
	}
	return "public, max-age=0, must-revalidate"
}

// executeServeApp delegates to the embedded application process.
func (e *Engine) executeServeApp(rc *RequestContext) (Outcome, error) {
	if e.appURL == "" {
		return StopTable, util.NewDelegateError(fmt.Errorf("no application delegate configured"))
	}

	err := e.forwarder.Forward(rc.Request, rc.Response, proxy.Options{
		Upstream:        e.appURL,
		PreservePath:    true,
		PreserveQuery:   true,
		PreserveHeaders: true,
	})
	if err != nil {
		return StopTable, util.NewDelegateError(err)
	}
	if err := rc.Response.End(); err != nil {
		return StopTable, util.NewDelegateError(err)
	}
	return StopTable, nil
}

// echoPayload is the diagnostic body rendered by the echo action.
type echoPayload struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	URL     string              `json:"url"`
	Query   map[string][]string `json:"query,omitempty"`
	Headers map[string]string   `json:"headers"`
	Body    string              `json:"body,omitempty"`
	Params  map[string]string   `json:"params,omitempty"`
}

// executeEcho finalizes the response with a diagnostic dump of the request.
func (e *Engine) executeEcho(rc *RequestContext) (Outcome, error) {
	req := rc.Request

	body, err := req.Body()
	if err != nil {
		return StopTable, util.NewDelegateError(err)
	}

	headers, _ := req.Header.Flatten()
	params := make(map[string]string, len(req.Params))
	for name, value := range req.Params {
		params[name] = value.String()
	}

	payload := echoPayload{
		Method:  req.Method,
		Path:    req.Path(),
		URL:     req.FullURL(),
		Query:   req.Query,
		Headers: headers,
		Body:    string(body),
		Params:  params,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return StopTable, util.NewDelegateError(err)
	}

	resp := rc.Response
	resp.Header().Set("Content-Type", "application/json")
	if _, err := resp.Write(data); err != nil {
		return StopTable, err
	}
	if err := resp.End(); err != nil {
		return StopTable, err
	}
	return StopTable, nil
}

// executeImageOptimizer delegates to the configured optimizer upstream.
func (e *Engine) executeImageOptimizer(a *routes.ImageOptimizerAction, rc *RequestContext) (Outcome, error) {
	if e.optimizerURL == "" {
		return StopTable, util.NewDelegateError(fmt.Errorf("no image optimizer configured"))
	}

	if a.Path != "" {
		rc.Request.SetPath(a.Path)
	}

	err := e.forwarder.Forward(rc.Request, rc.Response, proxy.Options{
		Upstream:        e.optimizerURL,
		PreservePath:    true,
		PreserveQuery:   true,
		PreserveHeaders: true,
	})
	if err != nil {
		return StopTable, err
	}
	if err := rc.Response.End(); err != nil {
		return StopTable, err
	}
	return StopTable, nil
}
