package portaros_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/coder/websocket"
	"github.com/portaros/portaros"
	"github.com/portaros/portaros/middleware/requestid"
)

func BenchmarkNormalizePath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = portaros.NormalizePath("//member//show/7/")
	}
}

func BenchmarkStringify(b *testing.B) {
	value := map[string]any{"user": "sam", "id": 7}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = portaros.Stringify(value)
	}
}

func BenchmarkMarshalEnvelope(b *testing.B) {
	resp := portaros.NewResponse(200, map[string]any{"user": "sam", "id": 7})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resp.MarshalEnvelope(false); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveCached(b *testing.B) {
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name: "member",
		New:  func() any { return &memberController{} },
	})
	if err != nil {
		b.Fatal(err)
	}
	resolver := portaros.NewResolver(registry, "", 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resolver.Resolve("/member/show/7"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveUncached(b *testing.B) {
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name: "member",
		New:  func() any { return &memberController{} },
	})
	if err != nil {
		b.Fatal(err)
	}
	resolver := portaros.NewResolver(registry, "", 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resolver.Flush()
		if _, err := resolver.Resolve("/member/show/7"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHandleMessage(b *testing.B) {
	app := newDispatchApp(portaros.Config{})
	app.Routes().Get("/bench", func() string { return "pong" })

	conn := newMockConn("c1", "/bench")
	conn.discard = true
	if !app.HandleOpen(conn, &portaros.HandshakeRequest{Method: "GET", Path: "/bench"}) {
		b.Fatal("handshake rejected")
	}
	payload := []byte("{}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		app.HandleMessage(conn, payload)
	}
}

func BenchmarkHTTPDispatch(b *testing.B) {
	app, server := setupApp()
	defer server.Close()

	app.Routes().Get("/bench", func() string { return "pong" })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := http.Get(server.URL + "/bench")
		if err != nil {
			b.Fatal(err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func BenchmarkMessageRoundtrip(b *testing.B) {
	app, server := setupApp()
	defer server.Close()

	app.Routes().Get("/bench", func() string { return "pong" })

	conn, ctx := dialWebSocket(b, server.URL, "/bench")
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	payload := []byte("{}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			b.Fatal(err)
		}
		if _, _, err := conn.Read(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMessageRoundtripWithMiddleware(b *testing.B) {
	app, server := setupApp()
	defer server.Close()

	app.Use(requestid.Middleware())
	app.Use(func(req *portaros.Request, next portaros.Next) *portaros.Response {
		req.Set("stage1", true)
		return next(req)
	})
	app.Use(func(req *portaros.Request, next portaros.Next) *portaros.Response {
		req.Set("stage2", true)
		return next(req)
	})
	app.Routes().Get("/bench", func() string { return "pong" })

	conn, ctx := dialWebSocket(b, server.URL, "/bench")
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	payload := []byte("{}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			b.Fatal(err)
		}
		if _, _, err := conn.Read(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConventionDispatch(b *testing.B) {
	app := newDispatchApp(portaros.Config{})
	err := app.RegisterController(portaros.RegisterOptions{
		Name: "member",
		New:  func() any { return &memberController{} },
	})
	if err != nil {
		b.Fatal(err)
	}

	conn := newMockConn("c1", "/member/show/7")
	conn.discard = true
	if !app.HandleOpen(conn, &portaros.HandshakeRequest{Method: "GET", Path: "/member/show/7"}) {
		b.Fatal("handshake rejected")
	}
	payload := []byte("{}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		app.HandleMessage(conn, payload)
	}
}

func BenchmarkConcurrentConnections(b *testing.B) {
	app, server := setupApp()
	defer server.Close()

	app.Routes().Get("/bench", func() string { return "pong" })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn, ctx := dialWebSocket(b, server.URL, "/bench")
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		for pb.Next() {
			writeText(b, conn, ctx, "{}")
			_ = readRaw(b, conn, ctx)
		}
	})
}
