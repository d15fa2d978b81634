package portaros

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	// ErrControllerNotFound is returned by Lookup when no controller is
	// registered under the requested scope and name.
	ErrControllerNotFound = errors.New("portaros: controller not found")

	// ErrActionNotFound is returned by Lookup when the controller exists but
	// has no matching action. Reserved action names (a "__" prefix) resolve
	// to this error as well.
	ErrActionNotFound = errors.New("portaros: action not found")

	// ErrControllerRegistered is returned when a name is registered twice in
	// the same scope.
	ErrControllerRegistered = errors.New("portaros: controller already registered")

	// ErrControllerFactory is returned when a controller factory misbehaves:
	// a nil instance, or a per-request instance of a different concrete type
	// than the one reflected at registration.
	ErrControllerFactory = errors.New("portaros: controller factory")
)

// Reuse selects how controller instances are obtained per invocation.
type Reuse int

const (
	// ReuseShared serves every request from the instance built at
	// registration. The controller must be safe for concurrent use.
	ReuseShared Reuse = iota
	// ReusePerRequest builds a fresh instance for every invocation.
	ReusePerRequest
)

// ActionFallback lets a controller accept actions it declares no method for.
// When the requested action has no method, the registry binds the request to
// FallbackAction with the action name instead of failing the lookup. The
// FallbackAction method itself is never exposed as an action.
type ActionFallback interface {
	FallbackAction(req *Request, action string) (any, error)
}

// RegisterOptions describes one controller registration.
type RegisterOptions struct {
	// Plugin and App scope the controller. Empty values mean the main
	// application's default scope.
	Plugin string
	App    string

	// Name is the controller's lookup name, optionally with path segments
	// ("api/v1/user"). Matching is case-insensitive. When empty the name is
	// derived from the concrete type's name.
	Name string

	// New builds an instance. It is called once at registration to reflect
	// the action table, and again per request when Reuse is ReusePerRequest.
	// It must always return the same concrete type.
	New func() any

	Reuse Reuse
}

type controllerEntry struct {
	name     string
	plugin   string
	app      string
	reuse    Reuse
	newFn    func() any
	concrete reflect.Type
	shared   reflect.Value
	actions  map[string]reflect.Method
	fallback bool
}

// ControllerRegistry maps (plugin, app, name) to controllers registered at
// startup. Exported methods of the concrete type are reflected once, into a
// case-insensitive action table; no reflection traversal happens per request.
type ControllerRegistry struct {
	mu          sync.RWMutex
	controllers map[string]*controllerEntry
}

// NewControllerRegistry returns an empty registry.
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{controllers: map[string]*controllerEntry{}}
}

var actionFallbackType = reflect.TypeOf((*ActionFallback)(nil)).Elem()

// Register adds a controller. It returns an error for a nil factory or
// instance, a duplicate name in the same scope, or two exported methods whose
// names collide case-insensitively.
func (r *ControllerRegistry) Register(opts RegisterOptions) error {
	if opts.New == nil {
		return fmt.Errorf("%w: nil New for %q", ErrControllerFactory, opts.Name)
	}
	prototype := opts.New()
	if prototype == nil {
		return fmt.Errorf("%w: New returned nil for %q", ErrControllerFactory, opts.Name)
	}

	concrete := reflect.TypeOf(prototype)
	name := opts.Name
	if name == "" {
		name = defaultControllerName(concrete)
	}

	entry := &controllerEntry{
		name:     name,
		plugin:   opts.Plugin,
		app:      opts.App,
		reuse:    opts.Reuse,
		newFn:    opts.New,
		concrete: concrete,
		shared:   reflect.ValueOf(prototype),
		actions:  map[string]reflect.Method{},
		fallback: concrete.Implements(actionFallbackType),
	}
	for i := 0; i < concrete.NumMethod(); i++ {
		m := concrete.Method(i)
		if entry.fallback && m.Name == "FallbackAction" {
			continue
		}
		key := strings.ToLower(m.Name)
		if prior, ok := entry.actions[key]; ok {
			return fmt.Errorf("portaros: controller %q: actions %q and %q collide case-insensitively", name, prior.Name, m.Name)
		}
		entry.actions[key] = m
	}

	key := controllerKey(opts.Plugin, opts.App, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.controllers[key]; ok {
		return fmt.Errorf("%w: %q in plugin=%q app=%q", ErrControllerRegistered, name, opts.Plugin, opts.App)
	}
	r.controllers[key] = entry
	return nil
}

// Lookup resolves a controller and action to a binding. Controller and action
// match case-insensitively; action names with a "__" prefix are rejected. If
// the action has no method but the controller implements ActionFallback the
// binding routes through it.
func (r *ControllerRegistry) Lookup(plugin, app, controller, action string) (*ActionBinding, error) {
	r.mu.RLock()
	entry, ok := r.controllers[controllerKey(plugin, app, controller)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q in plugin=%q app=%q", ErrControllerNotFound, controller, plugin, app)
	}

	if strings.HasPrefix(action, "__") {
		return nil, fmt.Errorf("%w: %q is reserved", ErrActionNotFound, action)
	}

	target := DispatchTarget{Plugin: plugin, App: app, Controller: entry.name, Action: action}
	if method, ok := entry.actions[strings.ToLower(action)]; ok {
		target.Action = method.Name
		return &ActionBinding{
			Target:   target,
			entry:    entry,
			index:    method.Index,
			funcType: receiverFreeType(method.Type),
		}, nil
	}
	if entry.fallback {
		return &ActionBinding{
			Target:   target,
			entry:    entry,
			index:    -1,
			funcType: fallbackFuncType,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q on controller %q", ErrActionNotFound, action, entry.name)
}

// ActionBinding is a resolved controller action, ready for the argument
// binder. FuncType describes the callable without its receiver; Func yields
// the per-invocation callable honoring the controller's Reuse strategy.
type ActionBinding struct {
	Target DispatchTarget

	entry    *controllerEntry
	index    int
	funcType reflect.Type
}

var fallbackFuncType = reflect.TypeOf((func(*Request) (any, error))(nil))

// Fallback reports whether this binding routes through ActionFallback.
func (b *ActionBinding) Fallback() bool { return b.index < 0 }

// FuncType returns the callable's signature, receiver excluded.
func (b *ActionBinding) FuncType() reflect.Type { return b.funcType }

// Func returns the callable for one invocation.
func (b *ActionBinding) Func() (reflect.Value, error) {
	if b.Fallback() {
		fn := func(req *Request) (any, error) {
			inst, err := b.instance()
			if err != nil {
				return nil, err
			}
			return inst.Interface().(ActionFallback).FallbackAction(req, b.Target.Action)
		}
		return reflect.ValueOf(fn), nil
	}
	inst, err := b.instance()
	if err != nil {
		return reflect.Value{}, err
	}
	return inst.Method(b.index), nil
}

func (b *ActionBinding) instance() (reflect.Value, error) {
	if b.entry.reuse == ReuseShared {
		return b.entry.shared, nil
	}
	inst := b.entry.newFn()
	if inst == nil {
		return reflect.Value{}, fmt.Errorf("%w: New returned nil for %q", ErrControllerFactory, b.entry.name)
	}
	v := reflect.ValueOf(inst)
	if v.Type() != b.entry.concrete {
		return reflect.Value{}, fmt.Errorf("%w: New for %q returned %s, registered as %s",
			ErrControllerFactory, b.entry.name, v.Type(), b.entry.concrete)
	}
	return v, nil
}

func controllerKey(plugin, app, name string) string {
	return plugin + "\x00" + app + "\x00" + strings.ToLower(name)
}

func defaultControllerName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

// receiverFreeType strips the receiver from a method's type.
func receiverFreeType(method reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, method.NumIn()-1)
	for i := 1; i < method.NumIn(); i++ {
		in = append(in, method.In(i))
	}
	out := make([]reflect.Type, 0, method.NumOut())
	for i := 0; i < method.NumOut(); i++ {
		out = append(out, method.Out(i))
	}
	return reflect.FuncOf(in, out, method.IsVariadic())
}
