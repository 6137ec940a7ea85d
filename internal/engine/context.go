package engine

import (
	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
)

// RequestContext is the per-call aggregate owning exactly one request, one
// response, and a reference to the active route table. It lives for one
// inbound call and is never shared across calls.
type RequestContext struct {
	Request  *httpmodel.Request
	Response *httpmodel.Response
	Table    *routes.Table
	Logger   observability.Logger
}
