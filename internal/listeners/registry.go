package listeners

import (
	"fmt"
	"sort"
	"sync"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/plugin"
)

// StaticRegistry implements plugin.Registry with a map guarded by a mutex.
type StaticRegistry struct {
	factories map[string]plugin.ListenerFactory
	mu        sync.RWMutex
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]plugin.ListenerFactory)}
}

// Register associates name with factory, rejecting empty names, nil
// factories and duplicates.
func (r *StaticRegistry) Register(name string, factory plugin.ListenerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return seltraceerrors.NewConfigError("listener registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return seltraceerrors.NewConfigError(fmt.Sprintf("listener registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return seltraceerrors.NewConfigError(fmt.Sprintf("listener registration error: duplicate listener name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the factory for name or a ListenerNotFoundError.
func (r *StaticRegistry) Get(name string) (plugin.ListenerFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, seltraceerrors.NewListenerNotFoundError(name)
	}
	return factory, nil
}

// List returns the registered names, sorted.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named listeners in order.
func Build(reg plugin.Registry, names []string, deps plugin.Dependencies) ([]events.Listener, error) {
	out := make([]events.Listener, 0, len(names))
	for _, name := range names {
		factory, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		l, err := factory(deps)
		if err != nil {
			return nil, fmt.Errorf("create listener '%s': %w", name, err)
		}
		out = append(out, l)
	}
	return out, nil
}

var (
	globalRegistry                 = NewStaticRegistry()
	_              plugin.Registry = (*StaticRegistry)(nil)
)

// Register adds a factory to the default registry. It panics on error
// since registration happens from init functions, where a failure is a
// programming mistake.
func Register(name string, factory plugin.ListenerFactory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register listener '%s' globally: %w", name, err))
	}
}

// DefaultRegistry exposes the registry populated by init-time registration.
var DefaultRegistry plugin.Registry = globalRegistry

func init() {
	Register("full", func(plugin.Dependencies) (events.Listener, error) {
		return NewFullRecorder(), nil
	})
	Register("screenshot", func(deps plugin.Dependencies) (events.Listener, error) {
		r, err := NewScreenshotRecorder(deps.Logger, deps.CaptureScreenshots, deps.Capturer, deps.Recorder)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	Register("step", func(deps plugin.Dependencies) (events.Listener, error) {
		r, err := NewStepRecorder(deps.Recorder)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
