// Package accesslog provides middleware that logs one line per dispatch.
package accesslog

import (
	"log/slog"
	"time"

	"github.com/portaros/portaros"
)

// Middleware logs the method, path, resolved target, response status and
// elapsed time of every dispatch passing through it. A nil logger selects
// slog.Default().
//
// Example:
//
//	app.Use(accesslog.Middleware(app.Logger()))
func Middleware(logger *slog.Logger) portaros.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(req *portaros.Request, next portaros.Next) *portaros.Response {
		start := time.Now()
		resp := next(req)
		logger.Info("dispatch",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("controller", req.Controller),
			slog.String("action", req.Action),
			slog.Int("status", resp.Status),
			slog.Duration("elapsed", time.Since(start)))
		return resp
	}
}
