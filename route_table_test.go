package portaros_test

import (
	"net/http"
	"testing"

	"github.com/portaros/portaros"
)

var commonMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

func TestRouteTableDispatch(t *testing.T) {
	table := portaros.NewRouteTable()
	table.Get("/users/:id/books/:slug", "book-handler")

	res := table.Dispatch(http.MethodGet, "/users/7/books/go")
	if res.Status != portaros.RouteFound {
		t.Fatalf("expected RouteFound, got %v", res.Status)
	}
	if res.Target != "book-handler" {
		t.Errorf("expected the registered target, got %v", res.Target)
	}
	if len(res.Params) != 2 {
		t.Fatalf("expected 2 params, got %v", res.Params)
	}
	if res.Params[0].Key != "id" || res.Params[0].Value != "7" {
		t.Errorf("expected id=7 first, got %+v", res.Params[0])
	}
	if res.Params[1].Key != "slug" || res.Params[1].Value != "go" {
		t.Errorf("expected slug=go second, got %+v", res.Params[1])
	}
	if res.Route == nil || res.Route.Path != "/users/:id/books/:slug" {
		t.Errorf("expected the route template, got %+v", res.Route)
	}
}

func TestRouteTableCatchAll(t *testing.T) {
	table := portaros.NewRouteTable()
	table.Get("/files/*filepath", "files")

	res := table.Dispatch(http.MethodGet, "/files/docs/readme.md")
	if res.Status != portaros.RouteFound {
		t.Fatalf("expected RouteFound, got %v", res.Status)
	}
	if len(res.Params) != 1 || res.Params[0].Value != "/docs/readme.md" {
		t.Errorf("expected the catch-all remainder, got %v", res.Params)
	}
}

func TestRouteTableMethodNotAllowed(t *testing.T) {
	table := portaros.NewRouteTable()
	table.Post("/posts", "create")

	res := table.Dispatch(http.MethodGet, "/posts")
	if res.Status != portaros.RouteMethodNotAllowed {
		t.Errorf("expected RouteMethodNotAllowed, got %v", res.Status)
	}
}

func TestRouteTableNotFound(t *testing.T) {
	table := portaros.NewRouteTable()
	table.Get("/present", "here")

	res := table.Dispatch(http.MethodGet, "/absent")
	if res.Status != portaros.RouteNotFound {
		t.Errorf("expected RouteNotFound, got %v", res.Status)
	}
}

func TestRouteTableAny(t *testing.T) {
	table := portaros.NewRouteTable()
	routes := table.Any("/ping", "pong")
	if len(routes) != len(commonMethods) {
		t.Fatalf("expected %d routes, got %d", len(commonMethods), len(routes))
	}

	for _, method := range commonMethods {
		res := table.Dispatch(method, "/ping")
		if res.Status != portaros.RouteFound {
			t.Errorf("expected %s /ping to be found, got %v", method, res.Status)
		}
	}
}

func TestRouteTableGroups(t *testing.T) {
	table := portaros.NewRouteTable()
	api := table.Group("/api", "api-mw")
	v1 := api.Group("/v1", "v1-mw")
	v1.Get("/users", "list-users", "route-mw")

	res := table.Dispatch(http.MethodGet, "/api/v1/users")
	if res.Status != portaros.RouteFound {
		t.Fatalf("expected RouteFound, got %v", res.Status)
	}
	if res.Target != "list-users" {
		t.Errorf("expected the group route target, got %v", res.Target)
	}

	mw := res.Route.Middlewares
	if len(mw) != 3 || mw[0] != "api-mw" || mw[1] != "v1-mw" || mw[2] != "route-mw" {
		t.Errorf("expected parent middleware ahead of the route's own, got %v", mw)
	}
}

func TestRouteTableDisableDefaultRoute(t *testing.T) {
	t.Run("zero rule disables everything", func(t *testing.T) {
		table := portaros.NewRouteTable()
		table.DisableDefaultRoute(portaros.DispatchTarget{})

		if !table.DefaultRouteDisabled(portaros.DispatchTarget{Controller: "user", Action: "List"}) {
			t.Error("expected the wildcard rule to match any target")
		}
	})

	t.Run("field rules match exactly", func(t *testing.T) {
		table := portaros.NewRouteTable()
		table.DisableDefaultRoute(portaros.DispatchTarget{App: "admin"})
		table.DisableDefaultRoute(portaros.DispatchTarget{Plugin: "shop", Controller: "order"})

		if !table.DefaultRouteDisabled(portaros.DispatchTarget{App: "admin", Controller: "user"}) {
			t.Error("expected the admin app rule to match")
		}
		if table.DefaultRouteDisabled(portaros.DispatchTarget{Controller: "user"}) {
			t.Error("expected a non-admin target to stay enabled")
		}
		if !table.DefaultRouteDisabled(portaros.DispatchTarget{Plugin: "shop", Controller: "order", Action: "View"}) {
			t.Error("expected the shop order rule to match")
		}
		if table.DefaultRouteDisabled(portaros.DispatchTarget{Plugin: "shop", Controller: "cart"}) {
			t.Error("expected another shop controller to stay enabled")
		}
	})

	t.Run("no rules", func(t *testing.T) {
		table := portaros.NewRouteTable()
		if table.DefaultRouteDisabled(portaros.DispatchTarget{Controller: "user"}) {
			t.Error("expected convention routing to be enabled by default")
		}
	})
}

func TestRouteTableFallbacks(t *testing.T) {
	table := portaros.NewRouteTable()

	if table.FallbackFor("") != nil {
		t.Error("expected no fallback before registration")
	}

	table.SetFallback("", "main-fallback")
	table.SetFallback("shop", "shop-fallback")

	if got := table.FallbackFor(""); got != "main-fallback" {
		t.Errorf("expected the main fallback, got %v", got)
	}
	if got := table.FallbackFor("shop"); got != "shop-fallback" {
		t.Errorf("expected the shop fallback, got %v", got)
	}
	if table.FallbackFor("blog") != nil {
		t.Error("expected no fallback for an unregistered plugin")
	}
}
