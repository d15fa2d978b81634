package msgpack

import (
	"encoding/json"
	"net/http"

	"github.com/portaros/portaros"
	"github.com/vmihailenco/msgpack/v5"
)

// Subprotocol is the Sec-WebSocket-Protocol value a peer sends during the
// handshake to select MessagePack framing.
const Subprotocol = "portaros-msgpack"

// Middleware provides MessagePack framing for peers that requested the
// Subprotocol during the websocket handshake. Inbound message bodies are
// transcoded from MessagePack to JSON before dispatch, so field access and
// argument binding behave exactly as with JSON peers, and responses are
// re-encoded as raw MessagePack envelopes of the shape
// {"status": <int>, "data": <any>}.
//
// Requests without the subprotocol header pass through untouched, so the
// middleware is safe to install globally on a mixed-format server.
//
// Example:
//
//	app.Use(msgpack.Middleware())
func Middleware() portaros.MiddlewareFunc {
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		if req.Header.Get("Sec-WebSocket-Protocol") != Subprotocol {
			return next(req)
		}
		if len(req.Body) > 0 {
			var decoded any
			if err := msgpack.Unmarshal(req.Body, &decoded); err != nil {
				resp := portaros.NewResponse(http.StatusBadRequest, "malformed MessagePack body")
				return encode(resp.WithException(err))
			}
			body, err := json.Marshal(decoded)
			if err != nil {
				resp := portaros.NewResponse(http.StatusBadRequest, "MessagePack body is not JSON representable")
				return encode(resp.WithException(err))
			}
			req.Body = body
		}
		return encode(next(req))
	}
}

// encode rewraps a response as a raw MessagePack envelope. Responses that
// already carry raw framing pass through, and a marshal failure falls back
// to the JSON envelope rather than dropping the reply.
func encode(resp *portaros.Response) *portaros.Response {
	if resp.Raw != nil {
		return resp
	}
	payload, err := msgpack.Marshal(map[string]any{
		"status": resp.Status,
		"data":   resp.Data,
	})
	if err != nil {
		return resp
	}
	out := portaros.NewRawResponse(resp.Status, payload)
	out.WithHeader("Content-Type", "application/msgpack")
	if err := resp.Exception(); err != nil {
		out.WithException(err)
	}
	return out
}
