package device

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Dialer creates an unconnected Adapter for one launch.
type Dialer func(cfg *types.LaunchConfig, logger *slog.Logger) (Adapter, error)

// Registry holds the available device adapters by name.
type Registry struct {
	mu      sync.RWMutex
	dialers map[string]Dialer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dialers: make(map[string]Dialer)}
}

// Register registers a dialer, overriding any existing one with that name.
func (r *Registry) Register(name string, d Dialer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialers[name] = d
}

// Get returns the dialer registered as name.
func (r *Registry) Get(name string) (Dialer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dialers[name]
	if !ok {
		return nil, errors.AdapterNotSupported(name, r.namesLocked())
	}
	return d, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.dialers))
	for n := range r.dialers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
