package set_test

import (
	"testing"

	"github.com/portaros/portaros"
	"github.com/portaros/portaros/middleware/set"
)

func TestMiddleware(t *testing.T) {
	mw := set.Middleware("apiVersion", "v1")

	req := portaros.NewRequest("GET", "/test", nil)
	var seen any
	resp := mw(req, func(r *portaros.Request) *portaros.Response {
		seen = r.Get("apiVersion")
		return portaros.NewResponse(200, "ok")
	})

	if seen != "v1" {
		t.Errorf("expected 'v1', got %v", seen)
	}
	if resp.Status != 200 {
		t.Errorf("expected the handler response, got %d", resp.Status)
	}
}

func TestMiddlewareTypedValue(t *testing.T) {
	mw := set.Middleware("config", map[string]int{"timeout": 30})

	req := portaros.NewRequest("GET", "/test", nil)
	mw(req, func(r *portaros.Request) *portaros.Response {
		config, ok := r.Get("config").(map[string]int)
		if !ok {
			t.Fatal("expected config to be set")
		}
		if config["timeout"] != 30 {
			t.Errorf("expected timeout 30, got %d", config["timeout"])
		}
		return portaros.NewResponse(200, nil)
	})
}

func TestMiddlewareSharesValueAcrossDispatches(t *testing.T) {
	mw := set.Middleware("state", map[string]int{})

	for i := 0; i < 2; i++ {
		req := portaros.NewRequest("GET", "/test", nil)
		mw(req, func(r *portaros.Request) *portaros.Response {
			state := r.Get("state").(map[string]int)
			state["hits"]++
			return portaros.NewResponse(200, nil)
		})
	}

	req := portaros.NewRequest("GET", "/test", nil)
	mw(req, func(r *portaros.Request) *portaros.Response {
		// The value is captured once, so mutations are visible everywhere.
		if hits := r.Get("state").(map[string]int)["hits"]; hits != 2 {
			t.Errorf("expected the shared value to accumulate, got %d", hits)
		}
		return portaros.NewResponse(200, nil)
	})
}
