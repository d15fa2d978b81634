package portaros

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
)

// ExceptionHandler turns application errors into responses. Report is for
// logging and telemetry and may fail without consequence; Render must
// produce the response the caller sees.
type ExceptionHandler interface {
	Report(err error)
	Render(req *Request, err error) *Response
}

// PanicError wraps a recovered panic with the goroutine stack at the point
// of recovery. Custom exception handlers can errors.As to it for the stack;
// Unwrap exposes the panic value when it was itself an error.
type PanicError struct {
	Value any
	Stack string
}

func newPanicError(v any) *PanicError {
	stack := string(debug.Stack())
	if lines := strings.Split(stack, "\n"); len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return &PanicError{Value: v, Stack: stack}
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Converter maps (error, request) pairs to responses. It never fails: any
// problem resolving or running a bound handler degrades to a bare 500
// carrying the original error's message.
//
// Handlers are bound per (plugin, app) pair as container ids and built
// per conversion through Container.Make with "logger" and "debug" params.
// Lookup falls back from (plugin, app) to (plugin, "") to the process-wide
// default binding, and finally to the built-in DefaultExceptionHandler.
type Converter struct {
	container Container
	logger    *slog.Logger
	debug     bool
	builtin   *DefaultExceptionHandler

	mu        sync.RWMutex
	bindings  map[string]string
	defaultID string
}

// NewConverter returns a converter rendering through the built-in handler
// until bindings are added.
func NewConverter(c Container, logger *slog.Logger, debug bool) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		container: c,
		logger:    logger,
		debug:     debug,
		builtin:   &DefaultExceptionHandler{Logger: logger, Debug: debug},
		bindings:  map[string]string{},
	}
}

// Bind routes errors for a (plugin, app) scope to the handler registered in
// the container under id.
func (cv *Converter) Bind(plugin, app, id string) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.bindings[plugin+"\x00"+app] = id
}

// BindDefault sets the process-wide handler id used when no scoped binding
// matches.
func (cv *Converter) BindDefault(id string) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.defaultID = id
}

// Convert produces the response for an error. The original error is attached
// to the response for downstream introspection. Convert never panics.
func (cv *Converter) Convert(req *Request, err error) (resp *Response) {
	defer func() {
		if recover() != nil {
			resp = cv.bare(err)
		}
	}()

	plugin, app := "", ""
	if req != nil {
		plugin, app = req.Plugin, req.App
	}

	handler, herr := cv.handlerFor(plugin, app)
	if herr != nil {
		return cv.bare(err)
	}

	func() {
		defer func() { _ = recover() }()
		handler.Report(err)
	}()

	resp = handler.Render(req, err)
	if resp == nil {
		return cv.bare(err)
	}
	return resp.WithException(err)
}

func (cv *Converter) handlerFor(plugin, app string) (ExceptionHandler, error) {
	cv.mu.RLock()
	id, ok := cv.bindings[plugin+"\x00"+app]
	if !ok {
		id, ok = cv.bindings[plugin+"\x00"]
	}
	if !ok {
		id = cv.defaultID
	}
	cv.mu.RUnlock()

	if id == "" {
		return cv.builtin, nil
	}
	built, err := cv.container.Make(id, map[string]any{
		"logger": cv.logger,
		"debug":  cv.debug,
	})
	if err != nil {
		return nil, err
	}
	handler, ok := built.(ExceptionHandler)
	if !ok {
		return nil, fmt.Errorf("portaros: exception handler id %q resolved to %T", id, built)
	}
	return handler, nil
}

// bare is the last-resort response path. It must not fail under any input.
func (cv *Converter) bare(err error) *Response {
	msg := ""
	if err != nil {
		msg = err.Error()
		if cv.debug {
			msg = errorDetail(err)
		}
	}
	return NewResponse(500, msg).WithException(err)
}

// errorDetail renders the debug representation of an error: the message, a
// stack for recovered panics, and a value dump for non-error panic values.
func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		detail := pe.Error() + "\n\n" + pe.Stack
		if _, isErr := pe.Value.(error); !isErr {
			detail += "\npanic value: " + spew.Sdump(pe.Value)
		}
		return detail
	}
	return err.Error() + "\n\n" + spew.Sdump(err)
}

// DefaultExceptionHandler is the built-in handler: it logs the error and
// renders a 500 whose data is the error message, or the full debug detail
// when Debug is set.
type DefaultExceptionHandler struct {
	Logger *slog.Logger
	Debug  bool
}

func (h *DefaultExceptionHandler) Report(err error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed", slog.Any("error", err))
}

func (h *DefaultExceptionHandler) Render(_ *Request, err error) *Response {
	data := ""
	if err != nil {
		data = err.Error()
		if h.Debug {
			data = errorDetail(err)
		}
	}
	return NewResponse(500, data)
}
