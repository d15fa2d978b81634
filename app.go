package portaros

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// App is the dispatch core of a combined HTTP and websocket application
// server. Websocket upgrade requests are resolved once at handshake time
// and every later message on the connection reuses the compiled callback
// for its path. Plain HTTP requests run the same resolution pipeline one
// shot per request.
//
// Paths resolve against explicit routes first, then by convention against
// the controller registry. Resolved targets run inside their middleware
// chain, and anything thrown along the way is converted to a response by
// the bound exception handlers. An App never lets a dispatch panic escape
// to the caller.
//
// An App is safe for concurrent use once constructed.
type App struct {
	debug   bool
	origins []string

	logger    *slog.Logger
	container Container
	router    Router
	table     *RouteTable
	registry  *ControllerRegistry
	resolver  *Resolver
	binder    *Binder
	converter *Converter
	chain     *ChainBuilder
	callbacks *fifoCache[*callback]
	groups    *GroupRegistry
	bus       GroupBus
	metrics   *metrics

	connMu      sync.RWMutex
	connMethods map[string]string

	middlewareMu sync.RWMutex
	middleware   []scopedMiddleware

	serverMu sync.Mutex
	server   *http.Server
}

var _ http.Handler = &App{}

// New creates an App from the given configuration. Zero-value fields fall
// back to defaults, so New(DefaultConfig()) yields a working App with its
// own route table, container and group registry.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	container := cfg.Container
	if container == nil {
		container = NewContainer()
	}
	capacity := cfg.CacheCapacity
	if capacity < 1 {
		capacity = defaultCacheCapacity
	}

	router := cfg.Router
	var table *RouteTable
	if router == nil {
		table = NewRouteTable()
		router = table
	} else if t, ok := router.(*RouteTable); ok {
		table = t
	}

	groups := cfg.Groups
	if groups == nil {
		groups = NewGroupRegistry(logger)
	}

	a := &App{
		debug:     cfg.Debug,
		origins:   cfg.Origins,
		logger:    logger,
		container: container,
		router:    router,
		table:     table,
		registry:  NewControllerRegistry(),
		groups:    groups,
		bus:       cfg.Bus,
	}
	a.resolver = NewResolver(a.registry, cfg.ControllerSuffix, capacity)
	a.binder = NewBinder(container)
	a.converter = NewConverter(container, logger, cfg.Debug)
	a.chain = NewChainBuilder(container, a.converter.Convert)
	a.callbacks = newFIFOCache[*callback](capacity)
	a.connMethods = map[string]string{}
	a.metrics = newMetrics(cfg.Metrics, a.callbacks.size)
	a.callbacks.onEvict = func(string) { a.metrics.evicted() }

	if a.bus != nil {
		a.bindBus()
	}
	return a
}

// bindBus replays broadcasts arriving from other processes into the local
// group registry. The bus never loops an App's own publishes back, so no
// exclusion is needed here.
func (a *App) bindBus() {
	err := a.bus.BindGroupBroadcast(func(path string, payload []byte) {
		a.metrics.delivered(a.groups.BroadcastGroup(path, payload, ""))
	})
	if err != nil {
		a.logger.Error("failed to bind group broadcasts", slog.Any("error", err))
	}
	err = a.bus.BindAllBroadcast(func(payload []byte) {
		a.metrics.delivered(a.groups.BroadcastAll(payload, ""))
	})
	if err != nil {
		a.logger.Error("failed to bind broadcasts", slog.Any("error", err))
	}
}

// Logger returns the App's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Container returns the App's capability container.
func (a *App) Container() Container {
	return a.container
}

// Routes returns the App's route table, or nil when a custom Router was
// supplied in the configuration.
func (a *App) Routes() *RouteTable {
	return a.table
}

// Controllers returns the App's controller registry.
func (a *App) Controllers() *ControllerRegistry {
	return a.registry
}

// Groups returns the App's connection group registry.
func (a *App) Groups() *GroupRegistry {
	return a.groups
}

// RegisterController adds a controller to the registry and drops any
// cached resolutions so the new controller is reachable immediately.
func (a *App) RegisterController(opts RegisterOptions) error {
	if err := a.registry.Register(opts); err != nil {
		return err
	}
	a.resolver.Flush()
	return nil
}

// BindExceptionHandler routes errors raised under the given plugin and
// app to the handler registered in the container under id.
func (a *App) BindExceptionHandler(plugin, app, id string) {
	a.converter.Bind(plugin, app, id)
}

// BindDefaultExceptionHandler sets the handler id used when no scoped
// binding matches.
func (a *App) BindDefaultExceptionHandler(id string) {
	a.converter.BindDefault(id)
}

// SetOrigins sets the origin patterns accepted during websocket upgrades.
// Call before serving.
func (a *App) SetOrigins(origins []string) {
	a.origins = origins
}

// MiddlewareScope limits where middleware registered with UseScoped
// applies. Empty fields match anything, so the zero value is global.
type MiddlewareScope struct {
	Plugin     string
	App        string
	Controller string
}

type scopedMiddleware struct {
	scope   MiddlewareScope
	entries []any
}

// Use registers global middleware. Entries run on every dispatch, after
// any route middleware, in registration order.
func (a *App) Use(entries ...any) {
	a.UseScoped(MiddlewareScope{}, entries...)
}

// UseScoped registers middleware limited to a plugin, app or controller.
// Broader scopes run before narrower ones.
func (a *App) UseScoped(scope MiddlewareScope, entries ...any) {
	a.middlewareMu.Lock()
	defer a.middlewareMu.Unlock()
	a.middleware = append(a.middleware, scopedMiddleware{scope: scope, entries: entries})
}

// middlewareFor collects the registered middleware applying to a dispatch
// target, ordered broad to narrow and by registration order within the
// same specificity.
func (a *App) middlewareFor(target DispatchTarget) []any {
	a.middlewareMu.RLock()
	defer a.middlewareMu.RUnlock()

	var buckets [4][]any
	for _, sm := range a.middleware {
		rank, ok := scopeRank(sm.scope, target)
		if !ok {
			continue
		}
		buckets[rank] = append(buckets[rank], sm.entries...)
	}

	var entries []any
	for _, bucket := range buckets {
		entries = append(entries, bucket...)
	}
	return entries
}

func scopeRank(scope MiddlewareScope, target DispatchTarget) (int, bool) {
	rank := 0
	if scope.Plugin != "" {
		if scope.Plugin != target.Plugin {
			return 0, false
		}
		rank++
	}
	if scope.App != "" {
		if scope.App != target.App {
			return 0, false
		}
		rank++
	}
	if scope.Controller != "" {
		if !strings.EqualFold(scope.Controller, target.Controller) {
			return 0, false
		}
		rank++
	}
	return rank, true
}

// InvalidatePath drops the cached resolution and compiled callbacks for a
// path. Connections already established on the path keep their callback
// until it is evicted; new handshakes recompile.
func (a *App) InvalidatePath(path string) bool {
	norm := NormalizePath(path)
	removed := a.resolver.Invalidate(norm)
	for _, method := range routeMethods {
		if a.callbacks.remove(callbackKey(method, norm)) {
			removed = true
		}
	}
	return removed
}

// FlushCallbacks drops every cached resolution and compiled callback.
func (a *App) FlushCallbacks() {
	a.resolver.Flush()
	a.callbacks.flush()
}

// CacheSize reports the number of compiled callbacks currently cached.
func (a *App) CacheSize() int {
	return a.callbacks.size()
}

// ServeHTTP upgrades websocket requests and serves anything else as a
// one-shot dispatch.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Upgrade") == "websocket" {
		a.serveWebSocket(w, r)
		return
	}
	a.serveOneShot(w, r)
}

func (a *App) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	origins := a.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		a.logger.Warn("websocket accept failed", slog.Any("error", err))
		return
	}

	conn := NewWebSocketConnection(ws, r)
	defer a.HandleClose(conn)

	if !a.HandleOpen(conn, NewHandshakeRequest(r)) {
		return
	}

	// Messages are dispatched in arrival order, one at a time. Handlers
	// needing concurrency spawn their own goroutines.
	for {
		_, payload, err := ws.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, io.EOF) {
				a.logger.Debug("websocket read ended", slog.String("connection", conn.ID()), slog.Any("error", err))
			}
			return
		}
		a.HandleMessage(conn, payload)
	}
}

func (a *App) serveOneShot(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			a.writeResponse(w, a.converter.Convert(nil, newPanicError(v)))
		}
	}()

	if unsafePath(r.URL.Path) {
		a.writeResponse(w, statusResponse(http.StatusUnprocessableEntity))
		return
	}

	var body []byte
	if r.Body != nil {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			a.writeResponse(w, statusResponse(http.StatusBadRequest))
			return
		}
	}

	req := NewRequest(r.Method, routePath(r.URL.Path), body)
	req.Header = r.Header
	req.RemoteAddr = r.RemoteAddr
	req.Plugin = PluginFromPath(r.URL.Path)
	req.SetContext(r.Context())

	cb, err := a.cachedCallback(r.Method, r.URL.Path)
	if err != nil {
		switch {
		case errors.Is(err, errBuildMethodNotAllowed):
			a.metrics.dispatch("method_not_allowed")
			a.writeResponse(w, statusResponse(http.StatusMethodNotAllowed))
		case errors.Is(err, errBuildNotFound):
			if resp, ok := a.fallbackResponse(req, req.Plugin); ok {
				a.metrics.dispatch("fallback")
				a.writeResponse(w, resp)
			} else {
				a.metrics.dispatch("not_found")
				a.writeResponse(w, statusResponse(http.StatusNotFound))
			}
		default:
			a.metrics.dispatch("error")
			a.writeResponse(w, a.converter.Convert(req, err))
		}
		return
	}

	resp := cb.run(req)
	outcome := "ok"
	if resp.Exception() != nil {
		outcome = "error"
	}
	a.metrics.dispatch(outcome)
	a.writeResponse(w, resp)
}

// writeResponse writes a response to an HTTP client. Raw responses go out
// verbatim; everything else is wrapped in the JSON envelope.
func (a *App) writeResponse(w http.ResponseWriter, resp *Response) {
	header := w.Header()
	for key, values := range resp.Header() {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	if resp.Raw != nil {
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Raw)
		return
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json; charset=utf-8")
	}
	payload := a.envelope(resp)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(payload)
}

// CloseHTTP writes a reply to an HTTP-path request. A *Response is written
// as-is, an int becomes the envelope status with data as its payload, and
// any other value is normalized into a 200 envelope.
func (a *App) CloseHTTP(w http.ResponseWriter, statusOrResponse any, data any) {
	switch v := statusOrResponse.(type) {
	case *Response:
		a.writeResponse(w, v)
	case int:
		a.writeResponse(w, NewResponse(v, data))
	default:
		a.writeResponse(w, Normalize(v))
	}
}

// envelope marshals a response into the wire envelope. Raw responses carry
// their own framing and pass through untouched. Marshal failures degrade to
// a plain 500 envelope rather than surfacing to the peer.
func (a *App) envelope(resp *Response) []byte {
	if resp.Raw != nil {
		return resp.Raw
	}
	payload, err := resp.MarshalEnvelope(a.debug)
	if err != nil {
		a.logger.Error("failed to marshal response", slog.Any("error", err))
		payload, _ = NewResponse(http.StatusInternalServerError, "internal server error").MarshalEnvelope(false)
	}
	return payload
}

// Run serves the App on addr until Shutdown is called. A server closed by
// Shutdown returns nil.
func (a *App) Run(addr string) error {
	server := &http.Server{Addr: addr, Handler: a}

	a.serverMu.Lock()
	a.server = server
	a.serverMu.Unlock()

	a.logger.Info("listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown unbinds the broadcast bus and gracefully stops the server
// started by Run.
func (a *App) Shutdown(ctx context.Context) error {
	if a.bus != nil {
		if err := a.bus.Unbind(); err != nil {
			a.logger.Warn("failed to unbind broadcast bus", slog.Any("error", err))
		}
	}

	a.serverMu.Lock()
	server := a.server
	a.server = nil
	a.serverMu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
