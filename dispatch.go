package portaros

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// HandshakeRequest is the routing surface of a connection's upgrade request.
type HandshakeRequest struct {
	Method     string
	Path       string
	Header     http.Header
	RemoteAddr string
}

// NewHandshakeRequest extracts the handshake surface from an upgrade request.
func NewHandshakeRequest(r *http.Request) *HandshakeRequest {
	return &HandshakeRequest{
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	}
}

// ConnectionInfo is optionally implemented by Connection values that retain
// their upgrade request's metadata. Message requests on such connections
// carry the peer address and handshake headers.
type ConnectionInfo interface {
	RemoteAddr() string
	HandshakeHeader() http.Header
}

// unsafePath rejects absent paths and paths carrying parent-directory
// traversal, backslashes or NUL bytes. Checked before any cache or registry
// mutation.
func unsafePath(path string) bool {
	return path == "" ||
		strings.Contains(path, "..") ||
		strings.Contains(path, "\\") ||
		strings.IndexByte(path, 0) >= 0
}

// HandleOpen runs the handshake for a new connection: validate the path,
// resolve and compile the callback, cache it, and register the connection
// for broadcasts. A false return means the handshake was rejected; the
// response has been sent and the connection closed.
//
// Hosts driving their own transport call HandleOpen, then HandleMessage per
// inbound message, then HandleClose exactly once when the connection ends.
func (a *App) HandleOpen(conn Connection, hs *HandshakeRequest) (established bool) {
	defer func() {
		if v := recover(); v != nil {
			a.metrics.handshake("error")
			a.closeWith(conn, a.converter.Convert(nil, newPanicError(v)))
			established = false
		}
	}()

	method := hs.Method
	if method == "" {
		method = http.MethodGet
	}

	if unsafePath(hs.Path) {
		a.metrics.handshake("unsafe_path")
		a.closeWith(conn, statusResponse(http.StatusUnprocessableEntity))
		return false
	}

	norm := NormalizePath(hs.Path)
	plugin := PluginFromPath(hs.Path)

	_, err := a.cachedCallback(method, hs.Path)
	if err != nil {
		req := &Request{
			Method:       method,
			Path:         routePath(hs.Path),
			Header:       hs.Header,
			RemoteAddr:   hs.RemoteAddr,
			ConnectionID: conn.ID(),
			Plugin:       plugin,
		}
		switch {
		case errors.Is(err, errBuildMethodNotAllowed):
			a.metrics.handshake("method_not_allowed")
			a.closeWith(conn, statusResponse(http.StatusMethodNotAllowed))
		case errors.Is(err, errBuildNotFound):
			if resp, ok := a.fallbackResponse(req, plugin); ok {
				a.metrics.handshake("fallback")
				a.closeWith(conn, resp)
			} else {
				a.metrics.handshake("not_found")
				a.closeWith(conn, statusResponse(http.StatusNotFound))
			}
		default:
			a.metrics.handshake("error")
			a.closeWith(conn, a.converter.Convert(req, err))
		}
		return false
	}

	a.rememberMethod(conn.ID(), method)
	a.groups.Register(norm, conn.ID(), conn)
	a.metrics.connOpened()
	a.metrics.handshake("established")
	return true
}

// HandleMessage dispatches one message on an established connection through
// the callback cached for its handshake method and path. A cache miss closes
// the connection with a 404 envelope; errors inside the chain convert to an
// error response and the connection survives.
func (a *App) HandleMessage(conn Connection, payload []byte) {
	defer func() {
		if v := recover(); v != nil {
			resp := a.converter.Convert(nil, newPanicError(v))
			_ = conn.Send(a.envelope(resp))
		}
	}()

	method := a.establishedMethod(conn.ID())
	cb, ok := a.callbacks.get(callbackKey(method, conn.Path()))
	if !ok {
		a.metrics.dispatch("miss")
		a.closeWith(conn, statusResponse(http.StatusNotFound))
		return
	}

	req := &Request{
		Method:       method,
		Path:         routePath(conn.Path()),
		Body:         payload,
		ConnectionID: conn.ID(),
	}
	if info, ok := conn.(ConnectionInfo); ok {
		req.RemoteAddr = info.RemoteAddr()
		req.Header = info.HandshakeHeader()
	}

	resp := cb.run(req)
	if resp.Exception() != nil {
		a.metrics.dispatch("error")
	} else {
		a.metrics.dispatch("ok")
	}
	if err := conn.Send(a.envelope(resp)); err != nil {
		a.logger.Warn("reply send failed",
			slog.String("path", req.Path),
			slog.String("connection", conn.ID()),
			slog.Any("error", err))
	}
}

// HandleClose removes the connection from its broadcast group. Idempotent;
// hosts are expected to guarantee it runs via defer.
func (a *App) HandleClose(conn Connection) {
	defer func() { _ = recover() }()
	a.forgetMethod(conn.ID())
	if a.groups.Unregister(NormalizePath(conn.Path()), conn.ID()) {
		a.metrics.connClosed()
	}
}

// rememberMethod records the method a connection's handshake resolved with.
// The route table may bind the same path differently per method, so each
// message must consult the cache entry its own handshake compiled.
func (a *App) rememberMethod(id, method string) {
	a.connMu.Lock()
	a.connMethods[id] = method
	a.connMu.Unlock()
}

func (a *App) establishedMethod(id string) string {
	a.connMu.RLock()
	method, ok := a.connMethods[id]
	a.connMu.RUnlock()
	if !ok {
		return http.MethodGet
	}
	return method
}

func (a *App) forgetMethod(id string) {
	a.connMu.Lock()
	delete(a.connMethods, id)
	a.connMu.Unlock()
}

// fallbackResponse invokes the plugin's fallback handler once, if one is
// configured. Errors inside the handler convert like any application error.
func (a *App) fallbackResponse(req *Request, plugin string) (*Response, bool) {
	fb := a.router.FallbackFor(plugin)
	if fb == nil {
		return nil, false
	}
	bound, err := a.binder.Bind(fb)
	if err != nil {
		return a.converter.Convert(req, err), true
	}
	resp, err := bound(req)
	if err != nil {
		return a.converter.Convert(req, err), true
	}
	if resp == nil {
		resp = NewResponse(200, nil)
	}
	return resp, true
}

// Close sends an envelope built from status and data, then closes the
// connection.
func (a *App) Close(conn Connection, status int, data any) error {
	return conn.Close(a.envelope(NewResponse(status, data)))
}

// closeWith delivers a final response and closes. Failures are logged only;
// the peer may already be gone.
func (a *App) closeWith(conn Connection, resp *Response) {
	if err := conn.Close(a.envelope(resp)); err != nil {
		a.logger.Debug("connection close failed",
			slog.String("connection", conn.ID()),
			slog.Any("error", err))
	}
}

// SendToGroup broadcasts to every connection registered on a path, excluding
// excludeConnID when non-empty. Local delivery is best effort; when a bus is
// configured the broadcast is also relayed to other nodes and a relay
// failure is returned.
func (a *App) SendToGroup(path string, payload any, excludeConnID string) error {
	data, err := broadcastBytes(payload)
	if err != nil {
		return err
	}
	norm := NormalizePath(path)
	a.metrics.delivered(a.groups.BroadcastGroup(norm, data, excludeConnID))
	if a.bus != nil {
		if err := a.bus.PublishGroup(norm, data); err != nil {
			return fmt.Errorf("relay group broadcast: %w", err)
		}
	}
	return nil
}

// SendToAll broadcasts to every registered connection, excluding
// excludeConnID when non-empty, with the same semantics as SendToGroup.
func (a *App) SendToAll(payload any, excludeConnID string) error {
	data, err := broadcastBytes(payload)
	if err != nil {
		return err
	}
	a.metrics.delivered(a.groups.BroadcastAll(data, excludeConnID))
	if a.bus != nil {
		if err := a.bus.PublishAll(data); err != nil {
			return fmt.Errorf("relay broadcast: %w", err)
		}
	}
	return nil
}

// broadcastBytes passes byte and string payloads through verbatim and JSON
// encodes everything else.
func broadcastBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		return json.Marshal(payload)
	}
}
