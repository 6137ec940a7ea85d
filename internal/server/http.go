package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/wire"
)

// Handler adapts net/http requests onto the canonical model and hands them
// to the engine. Each connection gets its own request context; nothing is
// shared between in-flight calls.
type Handler struct {
	engine *engine.Engine
	logger observability.Logger
}

// HandlerOption is a functional option for configuring the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates an HTTP handler over the engine.
func NewHandler(e *engine.Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine: e,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := httpmodel.NewRequest(r.Method, r.URL.String())
	if err != nil {
		h.logger.Warn("rejecting malformed request", observability.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	// net/http strips Host from the header map and carries it on the
	// request itself; put it back so PreserveHost proxying can see it.
	if r.Host != "" {
		req.Header.Set("Host", r.Host)
	}
	if r.Body != nil {
		req.SetBodyStream(r.Body)
	}

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := observability.ContextWithRequestID(r.Context(), requestID)
	req.WithContext(ctx)

	var target httpmodel.FlushTarget
	streaming := req.Header.Get(wire.StreamingHeaderName) != ""
	if streaming {
		target = wire.NewStreamTarget(w)
	} else {
		target = newLiveTarget(w)
	}

	resp := httpmodel.NewResponse(target)
	resp.Header().Set("X-Request-Id", requestID)
	if streaming {
		resp.EnableStreaming(true)
	}

	h.engine.Handle(req, resp)
}

// liveTarget flushes a response directly onto an http.ResponseWriter.
type liveTarget struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newLiveTarget(w http.ResponseWriter) *liveTarget {
	t := &liveTarget{w: w}
	if f, ok := w.(http.Flusher); ok {
		t.flusher = f
	}
	return t
}

// WriteHead implements httpmodel.FlushTarget.
func (t *liveTarget) WriteHead(status int, headers *httpmodel.Header) error {
	headers.Each(func(name, value string) {
		t.w.Header().Add(name, value)
	})
	t.w.WriteHeader(status)
	return nil
}

// WriteChunk implements httpmodel.FlushTarget. A chunk is flushed before
// the next is accepted so a slow consumer bounds memory growth.
func (t *liveTarget) WriteChunk(p []byte) error {
	if _, err := t.w.Write(p); err != nil {
		return err
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
	return nil
}

// End implements httpmodel.FlushTarget.
func (t *liveTarget) End() error {
	if t.flusher != nil {
		t.flusher.Flush()
	}
	return nil
}
