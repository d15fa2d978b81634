package portaros

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grafana/regexp"
)

// ErrPathUnresolved is returned by Resolve when no candidate controller and
// action match the path. The dispatcher turns it into the fallback handler or
// a 404.
var ErrPathUnresolved = errors.New("portaros: no controller matches path")

// pluginPathPrefix is the first segment marking plugin-scoped paths:
// /app/<plugin>/...
const pluginPathPrefix = "app"

var slashRuns = regexp.MustCompile(`/{2,}`)

// routePath collapses duplicate slashes, guarantees a leading slash and drops
// a trailing one, keeping hyphens intact. Explicit routes match this form so
// parameter values preserve their spelling.
func routePath(path string) string {
	path = slashRuns.ReplaceAllString(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// NormalizePath strips hyphens and collapses duplicate slashes, guarantees a
// leading slash and drops a trailing one. Resolution and callback caches key
// on the normalized form, so "/user-profile" and "/userprofile" share one
// entry and resolve to the same controller.
func NormalizePath(path string) string {
	return routePath(strings.ReplaceAll(path, "-", ""))
}

// PluginFromPath extracts the plugin name from a normalized path, or "" for
// main-application paths.
func PluginFromPath(path string) string {
	segments := splitPath(NormalizePath(path))
	if len(segments) >= 2 && segments[0] == pluginPathPrefix {
		return segments[1]
	}
	return ""
}

// Resolution is a successful convention resolution: the bound target plus any
// trailing path segments left unconsumed by the controller/action split.
// Those segments become the explicit arguments of the call, in path order.
type Resolution struct {
	Target  DispatchTarget
	Binding *ActionBinding
	Args    []string
}

// Resolver maps URL paths onto registered controllers by naming convention.
// Successful resolutions are cached per normalized path in a bounded
// first-in-first-out map; entries are not refreshed on hit, and eviction
// drops the oldest insertion.
type Resolver struct {
	registry *ControllerRegistry
	suffix   string
	cache    *fifoCache[*Resolution]
}

// NewResolver returns a resolver over the registry. suffix is appended to the
// final controller path segment before each registry probe ("" for none).
// capacity bounds the resolution cache; values below 1 select the default of
// 1024 entries.
func NewResolver(registry *ControllerRegistry, suffix string, capacity int) *Resolver {
	if capacity < 1 {
		capacity = defaultCacheCapacity
	}
	return &Resolver{
		registry: registry,
		suffix:   suffix,
		cache:    newFIFOCache[*Resolution](capacity),
	}
}

// Resolve maps a path to a controller action. Resolution is idempotent: the
// same path yields the same target until the entry is evicted or invalidated.
func (r *Resolver) Resolve(path string) (*Resolution, error) {
	norm := NormalizePath(path)
	if res, ok := r.cache.get(norm); ok {
		return res, nil
	}
	res, err := r.resolve(norm)
	if err != nil {
		return nil, err
	}
	r.cache.set(norm, res)
	return res, nil
}

// Invalidate drops the cached resolution for a path, if any.
func (r *Resolver) Invalidate(path string) bool {
	return r.cache.remove(NormalizePath(path))
}

// Flush empties the resolution cache.
func (r *Resolver) Flush() {
	r.cache.flush()
}

// CacheSize reports the number of cached resolutions.
func (r *Resolver) CacheSize() int {
	return r.cache.size()
}

func (r *Resolver) resolve(path string) (*Resolution, error) {
	segments := splitPath(path)

	plugin := ""
	if len(segments) >= 2 && segments[0] == pluginPathPrefix {
		plugin = segments[1]
		segments = segments[2:]
	}

	if len(segments) == 0 {
		if res := r.probe(plugin, []string{"index"}, "index", nil); res != nil {
			return res, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrPathUnresolved, path)
	}

	// Longest controller first: every segment run is tried as the controller
	// with "index", then successively shorter runs with the following segment
	// as the action. Segments past the action stay unconsumed and become the
	// call's explicit arguments. Single-segment paths get no action split.
	if res := r.probe(plugin, segments, "index", nil); res != nil {
		return res, nil
	}
	for cut := len(segments) - 1; cut >= 1; cut-- {
		controller := segments[:cut]
		action := segments[cut]
		args := segments[cut+1:]
		if res := r.probe(plugin, controller, action, args); res != nil {
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPathUnresolved, path)
}

// probe tries every candidate (app, controller-name) split for the given
// controller segments: the default app with the full name first, then each
// leading segment run as the app namespace. Every candidate is retried with
// "/index" appended, after all base candidates.
func (r *Resolver) probe(plugin string, controller []string, action string, args []string) *Resolution {
	type candidate struct {
		app  string
		name string
	}
	candidates := make([]candidate, 0, 2*len(controller))
	candidates = append(candidates, candidate{app: "", name: strings.Join(controller, "/")})
	for i := 1; i < len(controller); i++ {
		candidates = append(candidates, candidate{
			app:  strings.Join(controller[:i], "/"),
			name: strings.Join(controller[i:], "/"),
		})
	}
	base := len(candidates)
	for i := 0; i < base; i++ {
		c := candidates[i]
		c.name += "/index"
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		binding, err := r.registry.Lookup(plugin, c.app, applySuffix(c.name, r.suffix), action)
		if err != nil {
			continue
		}
		return &Resolution{Target: binding.Target, Binding: binding, Args: args}
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// applySuffix appends the controller suffix to the final name segment, which
// is always the string tail.
func applySuffix(name, suffix string) string {
	return name + suffix
}
