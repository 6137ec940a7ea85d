package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/edgerouter/internal/engine"
	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/wire"
)

// Invoker handles the short-lived invocation shape: one synchronous event
// in, one event out, the process handling exactly one call at a time.
type Invoker struct {
	engine *engine.Engine
	logger observability.Logger
}

// InvokerOption is a functional option for configuring the invoker.
type InvokerOption func(*Invoker)

// WithInvokerLogger sets the logger for the invoker.
func WithInvokerLogger(logger observability.Logger) InvokerOption {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// NewInvoker creates an invocation handler over the engine.
func NewInvoker(e *engine.Engine, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		engine: e,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Invoke handles one synchronous invocation event to completion. When
// excludeBody is set the rendered event carries headers only. Decode
// failures surface as an error; per-request failures are rendered into the
// event by the engine's error taxonomy.
func (i *Invoker) Invoke(ctx context.Context, ev *wire.InvokeRequest, excludeBody bool) (*wire.InvokeResponse, error) {
	req, err := wire.DecodeRequest(ev)
	if err != nil {
		return nil, err
	}
	req.WithContext(observability.ContextWithRequestID(ctx, uuid.NewString()))

	target := wire.NewEventTarget(excludeBody)
	resp := httpmodel.NewResponse(target)

	i.engine.Handle(req, resp)

	return target.Response(), nil
}
