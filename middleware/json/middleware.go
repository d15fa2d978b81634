package json

import (
	"encoding/json"
	"net/http"

	"github.com/portaros/portaros"
	"github.com/tidwall/gjson"
)

// Middleware validates that non-empty request bodies are well-formed JSON
// and rewrites Error and FieldError response data into their wire shapes.
// Malformed bodies short-circuit with a 400 response before the handler
// runs.
func Middleware() portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		if len(req.Body) > 0 && !gjson.ValidBytes(req.Body) {
			return portaros.NewResponse(http.StatusBadRequest, M{"error": "malformed JSON body"})
		}
		return shape(next(req))
	}
}

// Body decodes the request body into a fresh T and attaches it to the
// request under key. An empty or malformed body short-circuits with a 400
// response.
//
// Example:
//
//	app.Routes().Post("/users/create", createUser, json.Body[CreateUserInput]("input"))
//
//	// in the handler:
//	input := req.Get("input").(CreateUserInput)
func Body[T any](key string) portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		var value T
		if err := json.Unmarshal(req.Body, &value); err != nil {
			resp := portaros.NewResponse(http.StatusBadRequest, M{"error": "malformed JSON body"})
			return shape(resp.WithException(err))
		}
		req.Set(key, value)
		return shape(next(req))
	}
}

func shape(resp *portaros.Response) *portaros.Response {
	switch v := resp.Data.(type) {
	case []FieldError:
		resp.Data = M{"error": "Validation error", "fields": fieldsField(v)}
	case FieldError:
		resp.Data = M{"error": "Validation error", "fields": fieldsField([]FieldError{v})}
	case Error:
		resp.Data = M{"error": string(v)}
	}
	return resp
}

func fieldsField(errors []FieldError) []M {
	var fields []M
	for _, err := range errors {
		fields = append(fields, M{err.Field: err.Error})
	}
	return fields
}
