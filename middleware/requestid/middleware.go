// Package requestid provides middleware that tags every dispatch with a
// unique id.
package requestid

import (
	"github.com/google/uuid"
	"github.com/portaros/portaros"
)

// Key is the request value the generated id is stored under.
const Key = "requestID"

// Header is the response header carrying the id back to the peer.
const Header = "X-Request-Id"

// Middleware generates a fresh uuid for each dispatch, attaches it to the
// request and echoes it on the response header. Handlers and later
// middleware read it with FromRequest.
//
// Example:
//
//	app.Use(requestid.Middleware())
func Middleware() portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		id := uuid.NewString()
		req.Set(Key, id)
		return next(req).WithHeader(Header, id)
	}
}

// FromRequest returns the id attached by Middleware, or an empty string
// when none was set.
func FromRequest(req *portaros.Request) string {
	id, _ := req.Get(Key).(string)
	return id
}
