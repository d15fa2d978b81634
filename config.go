package portaros

import (
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries everything an App needs at construction. The zero value is
// not usable; start from DefaultConfig or ConfigFromMap.
type Config struct {
	// Debug switches error rendering to full detail and adds the debug flag
	// to every JSON envelope.
	Debug bool `mapstructure:"debug"`

	// ControllerSuffix is appended to candidate controller names during
	// convention resolution, so a suffix of "controller" resolves /user to a
	// controller registered as "usercontroller".
	ControllerSuffix string `mapstructure:"controller_suffix"`

	// CacheCapacity bounds the callback and resolution caches. Values below
	// 1 select the default of 1024 entries.
	CacheCapacity int `mapstructure:"cache_capacity"`

	// Origins are the origin patterns accepted during websocket upgrades.
	// Empty means any origin.
	Origins []string `mapstructure:"origins"`

	// Logger receives dispatch and broadcast logging. Defaults to
	// slog.Default().
	Logger *slog.Logger `mapstructure:"-"`

	// Router answers route dispatches. Defaults to a fresh RouteTable.
	Router Router `mapstructure:"-"`

	// Container resolves capabilities for the binder, middleware
	// constructors and exception handlers. Defaults to a fresh
	// BasicContainer.
	Container Container `mapstructure:"-"`

	// Groups is the connection group registry. Passing a shared instance
	// lets several Apps broadcast across each other's connections; nil gets
	// the App its own registry.
	Groups *GroupRegistry `mapstructure:"-"`

	// Bus relays broadcasts across processes. Optional.
	Bus GroupBus `mapstructure:"-"`

	// Metrics is the registerer for the App's instruments. Nil disables
	// metrics entirely.
	Metrics prometheus.Registerer `mapstructure:"-"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		CacheCapacity: defaultCacheCapacity,
	}
}

// ConfigFromMap binds a loose key/value map over DefaultConfig. Input is
// weakly typed, so "true" and 1 both set Debug.
func ConfigFromMap(m map[string]any) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(m); err != nil {
		return cfg, err
	}
	return cfg, nil
}
