package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/portaros/portaros"
	"github.com/portaros/portaros/middleware/accesslog"
	"github.com/portaros/portaros/middleware/requestid"
	"github.com/portaros/portaros/middleware/set"
)

type ProductController struct{}

func (c *ProductController) List() *portaros.Response {
	return portaros.NewResponse(http.StatusOK, []string{"keyboard", "mouse", "monitor"})
}

func (c *ProductController) View(req *portaros.Request, id int) (*portaros.Response, error) {
	if id < 1 {
		return nil, fmt.Errorf("no product with id %d", id)
	}
	return portaros.NewResponse(http.StatusOK, map[string]any{
		"id":   id,
		"name": fmt.Sprintf("product-%d", id),
	}), nil
}

func main() {
	app := portaros.New(portaros.DefaultConfig())

	app.Use(accesslog.Middleware(app.Logger()))
	app.Use(requestid.Middleware())
	app.Use(set.Middleware("apiVersion", "v1"))

	// Reachable by convention as /app/shop/product, /app/shop/product/view/7...
	if err := app.RegisterController(portaros.RegisterOptions{
		Plugin: "shop",
		Name:   "product",
		New:    func() any { return &ProductController{} },
	}); err != nil {
		fmt.Println("Error registering controller:", err)
		return
	}

	routes := app.Routes()

	routes.Get("/hello/:name", func(req *portaros.Request) string {
		return "Hello " + req.Param("name") + " (api " + req.Get("apiVersion").(string) + ")"
	})

	// Websocket connections opened on this path join its group and receive
	// the ticker broadcasts below.
	routes.Get("/time/subscribe", func() string {
		return "subscribed"
	})

	routes.SetFallback("", func(req *portaros.Request) *portaros.Response {
		return portaros.NewResponse(http.StatusNotFound, "no such endpoint: "+req.Path)
	})

	go func() {
		for range time.Tick(time.Second) {
			_ = app.SendToGroup("/time/subscribe", map[string]any{
				"time": time.Now().Unix(),
			}, "")
		}
	}()

	fmt.Println("Starting server on port 8167")
	if err := app.Run(":8167"); err != nil {
		fmt.Println("Error starting server:", err)
	}
}
