package portaros

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
)

// Response is the result of dispatching a request. Handlers may return one
// directly for full control over the status, payload, and headers, or return a
// plain value and let the terminal handler wrap it via Normalize.
//
// Non-raw responses are written to the wire as a JSON envelope:
//
//	{"status": 200, "data": ..., "debug": true}
//
// The debug key is only present when the app runs with debug enabled.
type Response struct {
	// Status is the response status code. It is used both as the envelope
	// status field and, on the HTTP path, as the HTTP status code.
	Status int

	// Data is the response payload placed in the envelope data field.
	Data any

	// Raw, when set, bypasses the envelope entirely and is written to the
	// wire as-is.
	Raw []byte

	header http.Header
	err    error
}

// NewResponse creates a response with the given status and payload.
func NewResponse(status int, data any) *Response {
	return &Response{Status: status, Data: data}
}

// NewRawResponse creates a response whose body is written to the wire verbatim,
// without the JSON envelope.
func NewRawResponse(status int, body []byte) *Response {
	return &Response{Status: status, Raw: body}
}

// Header returns the response headers, creating them on first use. Headers are
// only meaningful on the HTTP path; the WebSocket path ignores them.
func (r *Response) Header() http.Header {
	if r.header == nil {
		r.header = http.Header{}
	}
	return r.header
}

// WithHeader sets a header and returns the response for chaining.
func (r *Response) WithHeader(key, value string) *Response {
	r.Header().Set(key, value)
	return r
}

// WithException attaches the error that produced this response. The exception
// converter uses it to carry the original failure alongside the rendered
// response so hosts can inspect it after the fact.
func (r *Response) WithException(err error) *Response {
	r.err = err
	return r
}

// Exception returns the error attached to this response, or nil if the
// response was produced without a failure.
func (r *Response) Exception() error {
	return r.err
}

// envelope is the wire shape for non-raw responses. Debug is a pointer so the
// key is omitted entirely unless debug mode is on.
type envelope struct {
	Status int   `json:"status"`
	Data   any   `json:"data"`
	Debug  *bool `json:"debug,omitempty"`
}

// MarshalEnvelope renders the response into wire bytes. Raw responses are
// returned untouched. When debug is true the envelope carries a debug field
// echoing the configured value.
func (r *Response) MarshalEnvelope(debug bool) ([]byte, error) {
	if r.Raw != nil {
		return r.Raw, nil
	}
	env := envelope{Status: r.Status, Data: r.Data}
	if debug {
		env.Debug = &debug
	}
	return json.Marshal(env)
}

// Normalize converts an arbitrary handler return value into a response.
// Responses pass through untouched. Strings and numbers become the data of a
// 200 response as-is. Everything else is reduced to its display string via
// Stringify and wrapped in a 200 response.
func Normalize(value any) *Response {
	switch v := value.(type) {
	case *Response:
		return v
	case string:
		return NewResponse(http.StatusOK, v)
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return NewResponse(http.StatusOK, v)
	}
	return NewResponse(http.StatusOK, Stringify(value))
}

// Stringify reduces a value to its display string. Booleans become "true" and
// "false", nil becomes "NULL", slices, arrays and maps become the literal
// token "Array", and any other value without a display conversion (fmt.Stringer
// or error) becomes the literal token "Object". Numbers are formatted with
// strconv.
func Stringify(value any) string {
	if value == nil {
		return "NULL"
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "Array"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "NULL"
		}
		return Stringify(rv.Elem().Interface())
	}
	return "Object"
}
