package portaros

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

var (
	// ErrTargetContract is returned when a dispatch target is not a callable
	// the binder can plan: not a function, an unsupported parameter type, or
	// an unsupported result arity.
	ErrTargetContract = errors.New("portaros: unsupported target signature")

	// ErrBadArgument is returned when an explicit call argument cannot be
	// converted to the parameter's declared kind.
	ErrBadArgument = errors.New("portaros: bad call argument")
)

// BoundFunc is a target compiled against a request shape: it resolves the
// argument list, invokes the callable and folds the results into a response.
type BoundFunc func(req *Request) (*Response, error)

// Binder plans how to call dispatch targets. For each distinct signature the
// parameter list is walked once, producing a resolver per parameter; requests
// then run the prebuilt resolvers with no reflection traversal.
//
// Parameters resolve as follows: *Request, context.Context, Container and
// []byte (the raw body) inject request state; string, bool and numeric kinds
// consume the next explicit argument, converted with strconv, missing
// arguments yielding the zero value; a trailing variadic of those kinds
// consumes all remaining arguments; any other named type is looked up in the
// container by its capability id.
type Binder struct {
	container Container

	mu    sync.RWMutex
	plans map[reflect.Type]*bindingPlan
}

// NewBinder returns a binder resolving capability parameters from c.
func NewBinder(c Container) *Binder {
	return &Binder{
		container: c,
		plans:     map[reflect.Type]*bindingPlan{},
	}
}

// Bind compiles a target into a BoundFunc. Accepted targets are functions
// and *ActionBinding values; anything else fails with ErrTargetContract.
func (b *Binder) Bind(target any) (BoundFunc, error) {
	if binding, ok := target.(*ActionBinding); ok {
		plan, err := b.planFor(binding.FuncType())
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", binding.Target.Controller, binding.Target.Action, err)
		}
		return func(req *Request) (*Response, error) {
			fn, err := binding.Func()
			if err != nil {
				return nil, err
			}
			return plan.call(fn, req)
		}, nil
	}

	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrTargetContract, target)
	}
	plan, err := b.planFor(v.Type())
	if err != nil {
		return nil, err
	}
	return func(req *Request) (*Response, error) {
		return plan.call(v, req)
	}, nil
}

func (b *Binder) planFor(ft reflect.Type) (*bindingPlan, error) {
	b.mu.RLock()
	plan, ok := b.plans[ft]
	b.mu.RUnlock()
	if ok {
		return plan, nil
	}

	plan, err := b.buildPlan(ft)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.plans[ft] = plan
	b.mu.Unlock()
	return plan, nil
}

type paramResolver func(req *Request, args *argCursor) (reflect.Value, error)

type resultMode int

const (
	resultNone resultMode = iota
	resultValue
	resultError
	resultValueError
)

type bindingPlan struct {
	params   []paramResolver
	variadic bool
	results  resultMode
}

var (
	requestType   = reflect.TypeOf((*Request)(nil))
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	containerType = reflect.TypeOf((*Container)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	rawBodyType   = reflect.TypeOf([]byte(nil))
)

func (b *Binder) buildPlan(ft reflect.Type) (*bindingPlan, error) {
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s", ErrTargetContract, ft)
	}

	plan := &bindingPlan{variadic: ft.IsVariadic()}

	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		last := i == ft.NumIn()-1
		resolver, err := b.resolverFor(pt, plan.variadic && last)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		plan.params = append(plan.params, resolver)
	}

	switch ft.NumOut() {
	case 0:
		plan.results = resultNone
	case 1:
		if ft.Out(0) == errorType {
			plan.results = resultError
		} else {
			plan.results = resultValue
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second result of %s is not error", ErrTargetContract, ft)
		}
		plan.results = resultValueError
	default:
		return nil, fmt.Errorf("%w: %s returns %d values", ErrTargetContract, ft, ft.NumOut())
	}
	return plan, nil
}

func (b *Binder) resolverFor(pt reflect.Type, variadicTail bool) (paramResolver, error) {
	switch {
	case pt == requestType:
		return func(req *Request, _ *argCursor) (reflect.Value, error) {
			return reflect.ValueOf(req), nil
		}, nil

	case pt == contextType:
		return func(req *Request, _ *argCursor) (reflect.Value, error) {
			return reflect.ValueOf(req.Context()), nil
		}, nil

	case pt == containerType:
		container := b.container
		return func(_ *Request, _ *argCursor) (reflect.Value, error) {
			return reflect.ValueOf(&container).Elem(), nil
		}, nil

	case variadicTail:
		elem := pt.Elem()
		if !scalarKind(elem.Kind()) {
			return nil, fmt.Errorf("%w: variadic %s", ErrTargetContract, pt)
		}
		return func(_ *Request, args *argCursor) (reflect.Value, error) {
			rest := args.rest()
			out := reflect.MakeSlice(pt, len(rest), len(rest))
			for i, raw := range rest {
				v, err := convertArg(raw, elem)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(v)
			}
			return out, nil
		}, nil

	case pt == rawBodyType:
		return func(req *Request, _ *argCursor) (reflect.Value, error) {
			if req.Body == nil {
				return reflect.Zero(rawBodyType), nil
			}
			return reflect.ValueOf(req.Body), nil
		}, nil

	case scalarKind(pt.Kind()):
		return func(_ *Request, args *argCursor) (reflect.Value, error) {
			raw, ok := args.pop()
			if !ok {
				return reflect.Zero(pt), nil
			}
			return convertArg(raw, pt)
		}, nil

	default:
		return b.capabilityResolver(pt)
	}
}

// capabilityResolver resolves a parameter from the container by the type's
// capability id. The id derivation happens here, at plan time; requests only
// pay for the container lookup.
func (b *Binder) capabilityResolver(pt reflect.Type) (paramResolver, error) {
	switch pt.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Slice, reflect.Array, reflect.UnsafePointer:
		return nil, fmt.Errorf("%w: %s", ErrTargetContract, pt)
	}
	id := typeCapabilityID(pt)
	if id == "" {
		return nil, fmt.Errorf("%w: unnamed type %s", ErrTargetContract, pt)
	}
	container := b.container
	return func(_ *Request, _ *argCursor) (reflect.Value, error) {
		resolved, err := container.Get(id)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.ValueOf(resolved)
		if !v.IsValid() || !v.Type().AssignableTo(pt) {
			return reflect.Value{}, fmt.Errorf("%w: %q resolved to %T, want %s", ErrCapabilityUnbound, id, resolved, pt)
		}
		return v, nil
	}, nil
}

func (p *bindingPlan) call(fn reflect.Value, req *Request) (*Response, error) {
	cursor := &argCursor{args: req.Args}
	in := make([]reflect.Value, len(p.params))
	for i, resolve := range p.params {
		v, err := resolve(req, cursor)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}

	var out []reflect.Value
	if p.variadic {
		// The tail resolver built the full variadic slice.
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	switch p.results {
	case resultNone:
		return NewResponse(200, nil), nil
	case resultError:
		if err, _ := out[0].Interface().(error); err != nil {
			return nil, err
		}
		return NewResponse(200, nil), nil
	case resultValue:
		return Normalize(out[0].Interface()), nil
	default:
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
		return Normalize(out[0].Interface()), nil
	}
}

type argCursor struct {
	args []string
	next int
}

func (a *argCursor) pop() (string, bool) {
	if a.next >= len(a.args) {
		return "", false
	}
	v := a.args[a.next]
	a.next++
	return v, true
}

func (a *argCursor) rest() []string {
	v := a.args[a.next:]
	a.next = len(a.args)
	return v
}

func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func convertArg(raw string, pt reflect.Type) (reflect.Value, error) {
	v := reflect.New(pt).Elem()
	switch pt.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %q as %s", ErrBadArgument, raw, pt)
		}
		v.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(raw, 10, pt.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %q as %s", ErrBadArgument, raw, pt)
		}
		v.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(raw, 10, pt.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %q as %s", ErrBadArgument, raw, pt)
		}
		v.SetUint(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(raw, pt.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %q as %s", ErrBadArgument, raw, pt)
		}
		v.SetFloat(parsed)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrTargetContract, pt)
	}
	return v, nil
}
