package wire

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// InvokeRequest is the inbound synchronous invocation event.
type InvokeRequest struct {
	Method            string              `json:"httpMethod"`
	Path              string              `json:"path"`
	Headers           map[string]string   `json:"headers,omitempty"`
	MultiValueHeaders map[string][]string `json:"multiValueHeaders,omitempty"`
	QueryString       string              `json:"queryString,omitempty"`
	Body              string              `json:"body,omitempty"`
	IsBase64Encoded   bool                `json:"isBase64Encoded,omitempty"`
}

// InvokeResponse is the outbound synchronous invocation event. Body is
// always base64 when present; MultiValueHeaders carries only headers that
// must never be comma-joined.
type InvokeResponse struct {
	StatusCode        int                 `json:"statusCode"`
	Headers           map[string]string   `json:"headers"`
	MultiValueHeaders map[string][]string `json:"multiValueHeaders,omitempty"`
	Body              string              `json:"body,omitempty"`
	IsBase64Encoded   bool                `json:"isBase64Encoded"`
}

// DecodeRequest converts an invocation event into the canonical request
// model.
func DecodeRequest(ev *InvokeRequest) (*httpmodel.Request, error) {
	rawURL := ev.Path
	if rawURL == "" {
		rawURL = "/"
	}
	if ev.QueryString != "" {
		rawURL += "?" + ev.QueryString
	}

	req, err := httpmodel.NewRequest(ev.Method, rawURL)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("path", "invalid request path", err)
	}

	// Multi-value entries take precedence over their single-value
	// duplicates so repeated headers round-trip intact.
	seen := make(map[string]bool, len(ev.MultiValueHeaders))
	for name, values := range ev.MultiValueHeaders {
		seen[strings.ToLower(name)] = true
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, value := range ev.Headers {
		if seen[strings.ToLower(name)] {
			continue
		}
		req.Header.Set(name, value)
	}

	if ev.QueryString != "" {
		if q, qerr := url.ParseQuery(ev.QueryString); qerr == nil {
			req.Query = q
		}
	}

	if ev.Body != "" {
		body := []byte(ev.Body)
		if ev.IsBase64Encoded {
			decoded, derr := base64.StdEncoding.DecodeString(ev.Body)
			if derr != nil {
				return nil, util.NewConfigErrorWithCause("body", "invalid base64 body", derr)
			}
			body = decoded
		}
		req.SetBody(body)
	}

	return req, nil
}

// EventTarget collects a finished response into an InvokeResponse. It
// buffers chunks, so it only suits the short-lived invocation shape.
type EventTarget struct {
	excludeBody bool

	statusCode int
	single     map[string]string
	multi      map[string][]string
	body       []byte
	ended      bool
}

// NewEventTarget creates an event-rendering flush target. When excludeBody
// is set the rendered event carries headers only, for header probing.
func NewEventTarget(excludeBody bool) *EventTarget {
	return &EventTarget{excludeBody: excludeBody}
}

// WriteHead implements httpmodel.FlushTarget.
func (t *EventTarget) WriteHead(status int, headers *httpmodel.Header) error {
	t.statusCode = status
	t.single, t.multi = headers.Flatten()
	return nil
}

// WriteChunk implements httpmodel.FlushTarget.
func (t *EventTarget) WriteChunk(p []byte) error {
	if t.excludeBody {
		return nil
	}
	t.body = append(t.body, p...)
	return nil
}

// End implements httpmodel.FlushTarget.
func (t *EventTarget) End() error {
	t.ended = true
	return nil
}

// Ended reports whether the response finished.
func (t *EventTarget) Ended() bool {
	return t.ended
}

// Response renders the collected state as an invocation event.
func (t *EventTarget) Response() *InvokeResponse {
	out := &InvokeResponse{
		StatusCode:        t.statusCode,
		Headers:           t.single,
		MultiValueHeaders: t.multi,
	}
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	if len(t.body) > 0 {
		out.Body = base64.StdEncoding.EncodeToString(t.body)
		out.IsBase64Encoded = true
	}
	return out
}
