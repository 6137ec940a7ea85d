package engine

import (
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/edgerouter/internal/assets"
	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/proxy"
	"github.com/vyrodovalexey/edgerouter/internal/recursion"
	"github.com/vyrodovalexey/edgerouter/internal/routes"
)

// Engine executes route-table decisions against the canonical
// request/response model.
type Engine struct {
	table atomic.Pointer[routes.Table]

	forwarder    *proxy.Forwarder
	assets       assets.Resolver
	appURL       string
	optimizerURL string

	recursionLimit int
	production     bool

	logger  observability.Logger
	metrics *observability.Metrics
}

// EngineOption is a functional option for configuring the engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger observability.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithAssetResolver sets the asset store consulted by the serve-asset
// actions.
func WithAssetResolver(r assets.Resolver) EngineOption {
	return func(e *Engine) {
		e.assets = r
	}
}

// WithAppDelegate sets the application process upstream for serve-app.
func WithAppDelegate(url string) EngineOption {
	return func(e *Engine) {
		e.appURL = url
	}
}

// WithImageOptimizer sets the image optimizer upstream.
func WithImageOptimizer(url string) EngineOption {
	return func(e *Engine) {
		e.optimizerURL = url
	}
}

// WithRecursionLimit sets the self-call depth limit.
func WithRecursionLimit(limit int) EngineOption {
	return func(e *Engine) {
		e.recursionLimit = limit
	}
}

// WithForwarder sets the upstream forwarder.
func WithForwarder(f *proxy.Forwarder) EngineOption {
	return func(e *Engine) {
		e.forwarder = f
	}
}

// WithProduction toggles production mode, which suppresses stack traces in
// rendered errors.
func WithProduction(on bool) EngineOption {
	return func(e *Engine) {
		e.production = on
	}
}

// New creates an engine evaluating the given route table.
func New(table *routes.Table, opts ...EngineOption) *Engine {
	e := &Engine{
		recursionLimit: recursion.DefaultLimit,
		logger:         observability.NopLogger(),
	}
	e.table.Store(table)

	for _, opt := range opts {
		opt(e)
	}

	if e.forwarder == nil {
		e.forwarder = proxy.NewForwarder(
			proxy.WithLogger(e.logger),
			proxy.WithMetrics(e.metrics),
		)
	}

	return e
}

// Table returns the active route table.
func (e *Engine) Table() *routes.Table {
	return e.table.Load()
}

// SwapTable atomically replaces the active route table. In-flight calls
// keep the table they started with.
func (e *Engine) SwapTable(table *routes.Table) {
	e.table.Store(table)
}

// Handle executes one inbound call to completion. The recursion guard runs
// before any route matching; all per-request failures are rendered into the
// response through the error taxonomy and never propagate to the caller.
func (e *Engine) Handle(req *httpmodel.Request, resp *httpmodel.Response) {
	start := time.Now()

	rc := &RequestContext{
		Request:  req,
		Response: resp,
		Table:    e.table.Load(),
		Logger:   e.logger.WithContext(req.Context()),
	}

	req.Depth = recursion.ParseDepth(req.Header.Get(recursion.HeaderName))
	if err := recursion.Check(req.Depth, e.recursionLimit); err != nil {
		if e.metrics != nil {
			e.metrics.ObserveRecursionRejection()
		}
		e.renderError(rc, err)
		e.observe(req, resp, start)
		return
	}

	resp.RequestCompression(req.Header.Get("Accept-Encoding"))
	if e.metrics != nil {
		defer func() { e.metrics.ObserveCompression(resp.Encoding()) }()
	}

	e.evaluate(rc)
	e.observe(req, resp, start)
}

// evaluate walks the table in order, executing every matching route until a
// terminal outcome or exhaustion.
func (e *Engine) evaluate(rc *RequestContext) {
	for _, route := range rc.Table.Routes() {
		matched, params := route.Match(rc.Request)
		if !matched {
			continue
		}

		for name, value := range params {
			rc.Request.Params[name] = value
		}

		outcome, err := e.execute(route.Actions, rc)
		if err != nil {
			e.renderError(rc, err)
			return
		}

		if outcome == Continue && route.Done {
			outcome = StopTable
		}
		if outcome == StopTable {
			break
		}
	}

	// Table exhausted without a terminal action: the response remains
	// whatever the last non-terminal action left it as.
	if !rc.Response.Ended() {
		if err := rc.Response.End(); err != nil {
			rc.Logger.Error("failed to finalize response", observability.Error(err))
		}
	}
}

// observe records request metrics and a completion log line.
func (e *Engine) observe(req *httpmodel.Request, resp *httpmodel.Response, start time.Time) {
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.ObserveRequest(req.Method, resp.Status(), elapsed)
	}
	e.logger.Debug("request handled",
		observability.String("method", req.Method),
		observability.String("path", req.Path()),
		observability.Int("status", resp.Status()),
		observability.Duration("elapsed", elapsed),
	)
}
