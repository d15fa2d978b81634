// Package protobuf provides middleware for handlers that exchange
// Protocol Buffers messages. Define standard .proto schemas, generate Go
// code with protoc, and use the generated types directly; no wrapper types
// are needed.
package protobuf

import (
	"net/http"

	"github.com/portaros/portaros"
	"google.golang.org/protobuf/proto"
)

// Body decodes the raw request body as a protobuf message and attaches it
// to the request under key. newMsg supplies fresh instances of the
// generated type. A body that does not decode short-circuits with a 400
// response.
//
// Example:
//
//	app.Routes().Post("/users/create", createUser,
//		protobuf.Body("input", func() *userpb.CreateUserRequest {
//			return &userpb.CreateUserRequest{}
//		}))
//
//	// in the handler:
//	input := req.Get("input").(*userpb.CreateUserRequest)
func Body[T proto.Message](key string, newMsg func() T) portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		msg := newMsg()
		if err := proto.Unmarshal(req.Body, msg); err != nil {
			resp := portaros.NewResponse(http.StatusBadRequest, "malformed protobuf body")
			return resp.WithException(err)
		}
		req.Set(key, msg)
		return next(req)
	}
}

// Response marshals a protobuf message into a raw response, so the peer
// receives plain protobuf bytes instead of the JSON envelope.
func Response(status int, msg proto.Message) *portaros.Response {
	payload, err := proto.Marshal(msg)
	if err != nil {
		resp := portaros.NewResponse(http.StatusInternalServerError, "protobuf marshal failed")
		return resp.WithException(err)
	}
	return portaros.NewRawResponse(status, payload).WithHeader("Content-Type", "application/x-protobuf")
}
