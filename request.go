package portaros

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Request carries one invocation through the middleware chain: the resolved
// target, the raw payload, and per-request state. It is built by the
// dispatcher and owned by a single invocation; handlers may mutate it but
// must not retain it past their return.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte

	// ConnectionID identifies the originating connection. It is a fresh
	// uuid for WebSocket connections and empty for one-shot HTTP requests.
	ConnectionID string
	RemoteAddr   string

	Plugin     string
	App        string
	Controller string
	Action     string

	// Route is the matched route clone when the route table produced the
	// target, nil for convention-resolved targets.
	Route *Route

	// Args are the explicit call arguments in order: route parameter values
	// for table matches, unconsumed trailing path segments otherwise.
	Args []string

	ctx              context.Context
	associatedValues map[string]any
}

// NewRequest returns a request for a method, path and raw body. The
// dispatcher fills in the remaining fields during resolution.
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Body:   body,
	}
}

// Context returns the request's context, never nil.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// SetContext replaces the request's context. Middleware uses it to attach
// deadlines or values for inner stages.
func (r *Request) SetContext(ctx context.Context) {
	r.ctx = ctx
}

// Set associates an arbitrary value with the request for inner stages.
func (r *Request) Set(key string, value any) {
	if r.associatedValues == nil {
		r.associatedValues = map[string]any{}
	}
	r.associatedValues[key] = value
}

// Get returns a value attached with Set, or nil.
func (r *Request) Get(key string) any {
	return r.associatedValues[key]
}

// Target returns the resolved dispatch target.
func (r *Request) Target() DispatchTarget {
	return DispatchTarget{Plugin: r.Plugin, App: r.App, Controller: r.Controller, Action: r.Action}
}

// Params returns the route's bound path parameters, or nil for
// convention-resolved requests.
func (r *Request) Params() []RouteParam {
	if r.Route == nil {
		return nil
	}
	return r.Route.Params()
}

// Param returns a named route parameter value, or "".
func (r *Request) Param(key string) string {
	if r.Route == nil {
		return ""
	}
	return r.Route.Param(key)
}

// BodyJSON parses the payload as JSON. The zero Result is returned for
// non-JSON payloads; check Exists or Type before trusting values.
func (r *Request) BodyJSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// Field extracts a JSON body field by gjson path syntax ("user.name",
// "items.0").
func (r *Request) Field(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// FieldString returns a body field as a string, or "" when absent.
func (r *Request) FieldString(path string) string {
	return r.Field(path).String()
}

// FieldInt returns a body field as an int64, or 0 when absent.
func (r *Request) FieldInt(path string) int64 {
	return r.Field(path).Int()
}

// FieldBool returns a body field as a bool, or false when absent.
func (r *Request) FieldBool(path string) bool {
	return r.Field(path).Bool()
}

// IP returns the originating client address, preferring the X-Real-IP and
// X-Forwarded-For headers over the transport peer address.
func (r *Request) IP() string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
