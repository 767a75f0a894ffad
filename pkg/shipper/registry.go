package shipper

import (
	"fmt"
	"sort"
	"sync"
)

// Module is a registered carrier together with its configuration.
type Module struct {
	ID       string
	Provider Shipper
	Config   ModuleConfig
}

type registryEntry struct {
	provider  Shipper
	config    ModuleConfig
	configErr error
}

// Registry manages registered shipping carriers and their module configs.
// Writers are serialized; readers receive copies, so a reader observes either
// the configuration before or after an update, never a mix.
type Registry struct {
	entries map[string]*registryEntry
	mu      sync.RWMutex
}

// NewRegistry creates a new, empty carrier registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register adds a carrier to the registry, replacing any carrier with the same
// name. cfg is applied to Configurable carriers before validation. If either
// step reports a configuration error the carrier is still registered but
// forced disabled, and the error is returned.
func (r *Registry) Register(s Shipper, cfg ModuleConfig) error {
	entry := &registryEntry{provider: s, config: cfg.clone()}
	err := applyConfig(s, entry.config)
	if err == nil {
		err = validateProvider(s)
	}
	if err != nil {
		entry.config.Enabled = false
		entry.configErr = err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.Name()] = entry
	return entry.configErr
}

// Module returns a registered carrier by id.
func (r *Registry) Module(id string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Module{}, fmt.Errorf("%w: %s", ErrCarrierNotFound, id)
	}
	return e.module(id), nil
}

// Modules returns every registered carrier ordered by priority.
func (r *Registry) Modules() []Module {
	return r.collect(func(*registryEntry) bool { return true })
}

// EnabledModules returns the enabled carriers ordered by ascending priority,
// ties broken by id.
func (r *Registry) EnabledModules() []Module {
	return r.collect(func(e *registryEntry) bool { return e.config.Enabled })
}

// Enable enables a carrier. The carrier is re-validated first and stays
// disabled if it is still misconfigured.
func (r *Registry) Enable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCarrierNotFound, id)
	}

	next := *e
	next.config = e.config.clone()
	next.configErr = validateProvider(e.provider)
	if next.configErr == nil {
		next.config.Enabled = true
	}
	r.entries[id] = &next
	return next.configErr
}

// Disable disables a carrier.
func (r *Registry) Disable(id string) error {
	enabled := false
	return r.UpdateConfig(id, ConfigPatch{Enabled: &enabled})
}

// UpdateConfig merges patch into the carrier's configuration. Enabling a
// misconfigured carrier through a patch is refused with its configuration error.
// Changes to TestMode or Config are applied to Configurable carriers; a
// carrier that rejects them leaves the whole patch unapplied, and one left
// invalid by them is disabled.
func (r *Registry) UpdateConfig(id string, patch ConfigPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCarrierNotFound, id)
	}

	next := *e
	next.config = e.config.clone()
	if patch.Priority != nil {
		next.config.Priority = *patch.Priority
	}
	if patch.TestMode != nil {
		next.config.TestMode = *patch.TestMode
	}
	if len(patch.Config) > 0 {
		if next.config.Config == nil {
			next.config.Config = make(map[string]any, len(patch.Config))
		}
		for k, v := range patch.Config {
			next.config.Config[k] = v
		}
	}
	if patch.TestMode != nil || len(patch.Config) > 0 {
		if err := applyConfig(e.provider, next.config); err != nil {
			return err
		}
		// Applied settings can fix or break the carrier.
		next.configErr = validateProvider(e.provider)
		if next.configErr != nil {
			next.config.Enabled = false
			r.entries[id] = &next
			return next.configErr
		}
	}
	if patch.Enabled != nil {
		if *patch.Enabled {
			next.configErr = validateProvider(e.provider)
			if next.configErr != nil {
				return next.configErr
			}
		}
		next.config.Enabled = *patch.Enabled
	}

	r.entries[id] = &next
	return nil
}

// Status returns a diagnostic snapshot of every module.
func (r *Registry) Status() []ModuleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ModuleStatus, 0, len(r.entries))
	for id, e := range r.entries {
		st := ModuleStatus{ID: id, Config: e.config.clone()}
		if e.configErr != nil {
			st.ConfigError = e.configErr.Error()
		}
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		return lessModule(result[i].Config.Priority, result[i].ID, result[j].Config.Priority, result[j].ID)
	})
	return result
}

// Names returns the names of all registered carriers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered carriers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) collect(keep func(*registryEntry) bool) []Module {
	r.mu.RLock()
	result := make([]Module, 0, len(r.entries))
	for id, e := range r.entries {
		if keep(e) {
			result = append(result, e.module(id))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return lessModule(result[i].Config.Priority, result[i].ID, result[j].Config.Priority, result[j].ID)
	})
	return result
}

func (e *registryEntry) module(id string) Module {
	return Module{ID: id, Provider: e.provider, Config: e.config.clone()}
}

func lessModule(pi int, idi string, pj int, idj string) bool {
	if pi != pj {
		return pi < pj
	}
	return idi < idj
}

func applyConfig(s Shipper, cfg ModuleConfig) error {
	c, ok := s.(Configurable)
	if !ok {
		return nil
	}
	err := c.ApplyConfig(cfg.clone())
	if err == nil || IsConfigurationError(err) {
		return err
	}
	return NewConfigurationError(s.Name(), "invalid module config", err)
}

func validateProvider(s Shipper) error {
	v, ok := s.(ConfigValidator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil || IsConfigurationError(err) {
		return err
	}
	return NewConfigurationError(s.Name(), "validation failed", err)
}
