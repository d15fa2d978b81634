// Package portaros provides the dispatch core of a combined HTTP and
// WebSocket application server.
//
// Portaros resolves request paths to controllers by naming convention or to
// explicitly registered routes, binds handler arguments from the request and
// a capability container, and runs every dispatch through a composable
// middleware chain. WebSocket connections resolve once at handshake time and
// reuse the compiled pipeline for every message; plain HTTP requests run the
// same pipeline one shot.
//
// # Key Features
//
//   - Convention routing: /app/shop/product/view/7 reaches the view action
//     of the product controller registered under the shop plugin
//   - Explicit routes with named parameters and per-route middleware
//   - Reflection-free dispatch after the first request per path via a
//     bounded callback cache
//   - Argument injection from path segments, request body, and container
//   - Composable middleware with per-stage panic isolation
//   - Connection groups with cross-process broadcast buses
//   - Pluggable exception handlers that turn any failure into a response
//
// # Quick Start
//
// Create an App, register a controller, and serve:
//
//	app := portaros.New(portaros.DefaultConfig())
//
//	app.RegisterController(portaros.RegisterOptions{
//	    Plugin: "shop",
//	    Name:   "product",
//	    New:    func() any { return &ProductController{} },
//	})
//
//	app.Routes().Get("/hello/:name", func(req *portaros.Request) string {
//	    return "Hello " + req.Param("name")
//	})
//
//	http.ListenAndServe(":8080", app)
//
// # Message Format
//
// WebSocket peers connect to the path they want to talk to and exchange
// bodies on that path. Every reply is wrapped in a JSON envelope:
//
//	{
//	  "status": 200,
//	  "data": {"id": 7, "name": "product-7"}
//	}
//
// A "debug" key appears in the envelope only when debug mode is enabled.
//
// # Middleware
//
// Middleware wraps handlers and can modify the request, short-circuit the
// chain, or rewrite the response:
//
//	app.Use(func(req *portaros.Request, next portaros.Next) *portaros.Response {
//	    req.Set("receivedAt", time.Now())
//	    return next(req)
//	})
//
// Route middleware runs before global middleware, and each stage recovers
// its own panics, so an outer stage always observes a response.
//
// # Groups
//
// Established connections join the group of their handshake path. Handlers
// or background jobs broadcast to them:
//
//	app.SendToGroup("/live/scores", scoreUpdate, "")
//
// Broadcasts can relay across processes through the local-bus and nats-bus
// subpackages.
package portaros
