package portaros

import (
	"errors"
	"fmt"
)

// ErrMiddlewareContract is returned at chain-build time when an entry cannot
// be resolved to a process capability. This is a configuration defect: it is
// raised immediately when the callback is compiled, never deferred to request
// time.
var ErrMiddlewareContract = errors.New("portaros: middleware does not satisfy the process contract")

// Next invokes the rest of the chain and returns its response.
type Next func(req *Request) *Response

// Middleware processes a request around the rest of the chain. Process may
// short-circuit by not calling next, or post-process next's response before
// returning it.
type Middleware interface {
	Process(req *Request, next Next) *Response
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(req *Request, next Next) *Response

func (f MiddlewareFunc) Process(req *Request, next Next) *Response {
	return f(req, next)
}

// ChainBuilder folds middleware entries around a terminal handler into a
// single invocable. Entries are resolved at build time; each resolved layer
// and the terminal handler are exception-isolated, converting panics and
// errors to responses so nothing propagates out of the chain uncaught.
type ChainBuilder struct {
	container Container
	convert   func(req *Request, err error) *Response
}

// NewChainBuilder returns a builder resolving entries against c and
// converting stage failures with convert.
func NewChainBuilder(c Container, convert func(req *Request, err error) *Response) *ChainBuilder {
	return &ChainBuilder{container: c, convert: convert}
}

// Build composes the entries around the terminal handler, first entry
// outermost. Callers pass route middleware followed by global middleware so
// route layers wrap the rest. A resolution failure aborts the build.
func (b *ChainBuilder) Build(entries []any, terminal BoundFunc) (Next, error) {
	resolved := make([]Middleware, len(entries))
	for i, entry := range entries {
		m, err := b.resolveEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("middleware %d: %w", i, err)
		}
		resolved[i] = m
	}

	next := b.terminalStage(terminal)
	for i := len(resolved) - 1; i >= 0; i-- {
		next = b.stage(resolved[i], next)
	}
	return next, nil
}

// resolveEntry materializes one entry into a Middleware: a Middleware value,
// a bare process function, a constructor invoked with the container, or a
// container id.
func (b *ChainBuilder) resolveEntry(entry any) (Middleware, error) {
	switch e := entry.(type) {
	case Middleware:
		return e, nil
	case func(*Request, Next) *Response:
		return MiddlewareFunc(e), nil
	case func(Container) (Middleware, error):
		m, err := e(b.container)
		if err != nil {
			return nil, fmt.Errorf("constructor: %w", err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: constructor returned nil", ErrMiddlewareContract)
		}
		return m, nil
	case string:
		resolved, err := b.container.Get(e)
		if err != nil {
			return nil, fmt.Errorf("container id %q: %w", e, err)
		}
		m, ok := resolved.(Middleware)
		if !ok {
			return nil, fmt.Errorf("%w: container id %q resolved to %T", ErrMiddlewareContract, e, resolved)
		}
		return m, nil
	case nil:
		return nil, fmt.Errorf("%w: nil entry", ErrMiddlewareContract)
	default:
		return nil, fmt.Errorf("%w: %T", ErrMiddlewareContract, entry)
	}
}

// stage wraps one middleware layer with recovery. A panic inside the layer is
// caught here and converted, so outer layers observe a response rather than
// the failure.
func (b *ChainBuilder) stage(m Middleware, inner Next) Next {
	return func(req *Request) (resp *Response) {
		defer func() {
			if v := recover(); v != nil {
				resp = b.convert(req, newPanicError(v))
			}
		}()
		resp = m.Process(req, inner)
		if resp == nil {
			resp = NewResponse(200, nil)
		}
		return resp
	}
}

// terminalStage invokes the bound target and converts its error, if any.
func (b *ChainBuilder) terminalStage(bound BoundFunc) Next {
	return func(req *Request) (resp *Response) {
		defer func() {
			if v := recover(); v != nil {
				resp = b.convert(req, newPanicError(v))
			}
		}()
		r, err := bound(req)
		if err != nil {
			return b.convert(req, err)
		}
		if r == nil {
			r = NewResponse(200, nil)
		}
		return r
	}
}
