package hooks

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// PluginManifest declares the hooks a plugin ships. Plugins hand this
// to the store when they are enabled; their hooks live and die with the
// plugin, not with the user.
type PluginManifest struct {
	Plugin string `yaml:"plugin"`
	Hooks  []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Event       string `yaml:"event"`
		Enabled     *bool  `yaml:"enabled"`
		Script      struct {
			Path        string `yaml:"path"`
			Inline      string `yaml:"inline"`
			Interpreter string `yaml:"interpreter"`
		} `yaml:"script"`
		TimeoutMs int `yaml:"timeout_ms"`
	} `yaml:"hooks"`
}

// ParsePluginManifest decodes and validates a YAML plugin manifest.
func ParsePluginManifest(data []byte) (*PluginManifest, error) {
	var manifest PluginManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse plugin manifest: %w", err)
	}
	if manifest.Plugin == "" {
		return nil, fmt.Errorf("plugin manifest has no plugin id")
	}
	if len(manifest.Hooks) == 0 {
		return nil, fmt.Errorf("plugin manifest %s declares no hooks", manifest.Plugin)
	}
	for _, h := range manifest.Hooks {
		if h.ID == "" {
			return nil, fmt.Errorf("plugin %s: hook without an id", manifest.Plugin)
		}
		if _, err := ParseEvent(h.Event); err != nil {
			return nil, fmt.Errorf("plugin %s hook %s: %w", manifest.Plugin, h.ID, err)
		}
		if h.Script.Path == "" && h.Script.Inline == "" {
			return nil, fmt.Errorf("plugin %s hook %s: no script", manifest.Plugin, h.ID)
		}
	}
	return &manifest, nil
}

// AttachPlugin adds the manifest's hooks as plugin-origin definitions.
// Persisted enabled-state for a returning plugin hook id is honored.
// Fails without state change when any hook id collides.
func (s *Store) AttachPlugin(manifest *PluginManifest) error {
	persisted, err := s.persist.Load()
	if err != nil {
		persisted = nil
	}

	s.mu.Lock()
	for _, h := range manifest.Hooks {
		if _, ok := s.hooks[h.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: id %q", ErrDuplicateIdentifier, h.ID)
		}
	}
	for _, h := range manifest.Hooks {
		def := HookDefinition{
			ID:          h.ID,
			Name:        h.Name,
			Description: h.Description,
			Event:       LifecycleEvent(h.Event),
			Enabled:     h.Enabled == nil || *h.Enabled,
			Script: ScriptRef{
				Path:        h.Script.Path,
				Inline:      h.Script.Inline,
				Interpreter: h.Script.Interpreter,
			},
			Origin:    OriginPlugin,
			PluginID:  manifest.Plugin,
			Timeout:   time.Duration(h.TimeoutMs) * time.Millisecond,
			CreatedAt: time.Now(),
		}
		if saved, ok := persisted[def.ID]; ok && saved.Origin == OriginPlugin {
			def.Enabled = saved.Enabled
		}
		s.insert(def)
		s.save(def)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// DetachPlugin removes every hook owned by the plugin. Hook state stays
// persisted so a re-enabled plugin keeps its enabled flags.
func (s *Store) DetachPlugin(pluginID string) int {
	s.mu.Lock()
	removed := 0
	for id, e := range s.hooks {
		if e.def.Origin == OriginPlugin && e.def.PluginID == pluginID {
			delete(s.hooks, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.notify()
	}
	return removed
}
