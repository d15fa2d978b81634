package portaros_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/portaros/portaros"
)

type inventoryController struct{}

func (*inventoryController) List() string       { return "inventory" }
func (*inventoryController) Show(id int) string { return "item" }

type relayController struct{}

func (*relayController) Ping() string { return "pong" }

func (*relayController) FallbackAction(req *portaros.Request, action string) (any, error) {
	return "fallback:" + action, nil
}

type collidingController struct{}

func (*collidingController) Export() string { return "a" }
func (*collidingController) EXport() string { return "b" }

func TestRegistryRegisterValidation(t *testing.T) {
	registry := portaros.NewControllerRegistry()

	err := registry.Register(portaros.RegisterOptions{Name: "broken"})
	if !errors.Is(err, portaros.ErrControllerFactory) {
		t.Errorf("expected ErrControllerFactory for nil New, got %v", err)
	}

	err = registry.Register(portaros.RegisterOptions{
		Name: "broken",
		New:  func() any { return nil },
	})
	if !errors.Is(err, portaros.ErrControllerFactory) {
		t.Errorf("expected ErrControllerFactory for nil instance, got %v", err)
	}

	err = registry.Register(portaros.RegisterOptions{
		Name: "colliding",
		New:  func() any { return &collidingController{} },
	})
	if err == nil || !strings.Contains(err.Error(), "collide") {
		t.Errorf("expected a collision error, got %v", err)
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	registry := portaros.NewControllerRegistry()
	opts := portaros.RegisterOptions{
		Name: "inventory",
		New:  func() any { return &inventoryController{} },
	}

	if err := registry.Register(opts); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(opts); !errors.Is(err, portaros.ErrControllerRegistered) {
		t.Errorf("expected ErrControllerRegistered, got %v", err)
	}

	// The same name under another scope is a distinct controller.
	scoped := opts
	scoped.Plugin = "shop"
	if err := registry.Register(scoped); err != nil {
		t.Errorf("expected scoped registration to succeed, got %v", err)
	}
}

func TestRegistryDefaultName(t *testing.T) {
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		New: func() any { return &inventoryController{} },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	binding, err := registry.Lookup("", "", "inventorycontroller", "list")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if binding.Target.Controller != "inventorycontroller" {
		t.Errorf("expected derived name, got %q", binding.Target.Controller)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name: "inventory",
		New:  func() any { return &inventoryController{} },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	t.Run("unknown controller", func(t *testing.T) {
		_, err := registry.Lookup("", "", "nothing", "list")
		if !errors.Is(err, portaros.ErrControllerNotFound) {
			t.Errorf("expected ErrControllerNotFound, got %v", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := registry.Lookup("", "", "inventory", "vanish")
		if !errors.Is(err, portaros.ErrActionNotFound) {
			t.Errorf("expected ErrActionNotFound, got %v", err)
		}
	})

	t.Run("reserved action prefix", func(t *testing.T) {
		_, err := registry.Lookup("", "", "inventory", "__construct")
		if !errors.Is(err, portaros.ErrActionNotFound) {
			t.Errorf("expected ErrActionNotFound for reserved prefix, got %v", err)
		}
	})

	t.Run("case insensitive match restores method name", func(t *testing.T) {
		binding, err := registry.Lookup("", "", "INVENTORY", "SHOW")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if binding.Target.Action != "Show" {
			t.Errorf("expected action Show, got %q", binding.Target.Action)
		}
		if binding.Fallback() {
			t.Error("expected a direct method binding")
		}
	})

	t.Run("binding signature drops the receiver", func(t *testing.T) {
		binding, err := registry.Lookup("", "", "inventory", "show")
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		ft := binding.FuncType()
		if ft.NumIn() != 1 || ft.In(0) != reflect.TypeOf(0) {
			t.Errorf("expected func(int), got %v", ft)
		}
	})
}

func TestRegistryFallbackAction(t *testing.T) {
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name: "relay",
		New:  func() any { return &relayController{} },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// A declared method still binds directly.
	binding, err := registry.Lookup("", "", "relay", "ping")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if binding.Fallback() {
		t.Error("expected ping to bind directly, not through the fallback")
	}

	// Anything else routes through FallbackAction with the requested name.
	binding, err = registry.Lookup("", "", "relay", "mystery")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !binding.Fallback() {
		t.Fatal("expected a fallback binding")
	}
	if binding.Target.Action != "mystery" {
		t.Errorf("expected the requested action to be kept, got %q", binding.Target.Action)
	}

	fn, err := binding.Func()
	if err != nil {
		t.Fatalf("func failed: %v", err)
	}
	out := fn.Call([]reflect.Value{reflect.ValueOf(&portaros.Request{})})
	if got := out[0].Interface(); got != "fallback:mystery" {
		t.Errorf("expected fallback result, got %v", got)
	}
	if !out[1].IsNil() {
		t.Errorf("expected nil error, got %v", out[1].Interface())
	}
}

func TestRegistryReusePerRequest(t *testing.T) {
	made := 0
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name:  "inventory",
		Reuse: portaros.ReusePerRequest,
		New: func() any {
			made++
			return &inventoryController{}
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if made != 1 {
		t.Fatalf("expected one instance at registration, got %d", made)
	}

	binding, err := registry.Lookup("", "", "inventory", "list")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := binding.Func(); err != nil {
		t.Fatalf("func failed: %v", err)
	}
	if _, err := binding.Func(); err != nil {
		t.Fatalf("func failed: %v", err)
	}
	if made != 3 {
		t.Errorf("expected a fresh instance per invocation, factory ran %d times", made)
	}
}

func TestRegistryReuseShared(t *testing.T) {
	made := 0
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name: "inventory",
		New: func() any {
			made++
			return &inventoryController{}
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	binding, err := registry.Lookup("", "", "inventory", "list")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := binding.Func(); err != nil {
		t.Fatalf("func failed: %v", err)
	}
	if _, err := binding.Func(); err != nil {
		t.Fatalf("func failed: %v", err)
	}
	if made != 1 {
		t.Errorf("expected the registration instance to be shared, factory ran %d times", made)
	}
}

func TestRegistryPerRequestFactoryTypeChange(t *testing.T) {
	calls := 0
	registry := portaros.NewControllerRegistry()
	err := registry.Register(portaros.RegisterOptions{
		Name:  "shifty",
		Reuse: portaros.ReusePerRequest,
		New: func() any {
			calls++
			if calls == 1 {
				return &inventoryController{}
			}
			return &relayController{}
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	binding, err := registry.Lookup("", "", "shifty", "list")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := binding.Func(); !errors.Is(err, portaros.ErrControllerFactory) {
		t.Errorf("expected ErrControllerFactory for a type-changing factory, got %v", err)
	}
}
