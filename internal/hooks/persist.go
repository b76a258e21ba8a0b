package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	hooksFileName = "hooks.json"
	lockFileName  = ".hooks.lock"
)

// ErrStoreLocked is returned when another process holds the hooks file
// lock.
var ErrStoreLocked = errors.New("hooks file is locked by another process")

// FilePersistence stores hook definitions in one JSON file keyed by
// hook id, guarded by a file lock so concurrent hookguard processes do
// not clobber each other.
type FilePersistence struct {
	dir string
}

// DefaultStateDir returns the state directory, honoring HOOKGUARD_HOME.
func DefaultStateDir() (string, error) {
	if dir := os.Getenv("HOOKGUARD_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hookguard"), nil
}

// NewFilePersistence creates a file-backed persistence rooted at dir.
func NewFilePersistence(dir string) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FilePersistence{dir: dir}, nil
}

func (p *FilePersistence) hooksPath() string {
	return filepath.Join(p.dir, hooksFileName)
}

// withLock runs fn while holding the state file lock.
func (p *FilePersistence) withLock(fn func() error) error {
	fileLock := flock.New(filepath.Join(p.dir, lockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire hooks lock: %w", err)
	}
	if !locked {
		return ErrStoreLocked
	}
	defer fileLock.Unlock()

	return fn()
}

// Load returns all persisted hook definitions. A missing file is an
// empty store, not an error.
func (p *FilePersistence) Load() (map[string]HookDefinition, error) {
	result := make(map[string]HookDefinition)
	err := p.withLock(func() error {
		data, err := os.ReadFile(p.hooksPath())
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read hooks file: %w", err)
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("failed to parse hooks file: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Save persists one definition, read-modify-write under the lock.
func (p *FilePersistence) Save(def HookDefinition) error {
	return p.mutate(func(all map[string]HookDefinition) {
		all[def.ID] = def
	})
}

// Delete removes one definition.
func (p *FilePersistence) Delete(id string) error {
	return p.mutate(func(all map[string]HookDefinition) {
		delete(all, id)
	})
}

func (p *FilePersistence) mutate(apply func(map[string]HookDefinition)) error {
	return p.withLock(func() error {
		all := make(map[string]HookDefinition)
		if data, err := os.ReadFile(p.hooksPath()); err == nil {
			// A corrupt file is replaced rather than blocking writes.
			_ = json.Unmarshal(data, &all)
		}

		apply(all)

		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal hooks: %w", err)
		}

		// Atomic write: temp file + rename.
		tmp := p.hooksPath() + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("failed to write hooks file: %w", err)
		}
		if err := os.Rename(tmp, p.hooksPath()); err != nil {
			return fmt.Errorf("failed to replace hooks file: %w", err)
		}
		return nil
	})
}

// MemoryPersistence is an in-memory Persistence for tests and for
// running with persistence disabled.
type MemoryPersistence struct {
	Hooks   map[string]HookDefinition
	SaveErr error
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{Hooks: make(map[string]HookDefinition)}
}

// Load returns a copy of the stored definitions.
func (m *MemoryPersistence) Load() (map[string]HookDefinition, error) {
	out := make(map[string]HookDefinition, len(m.Hooks))
	for id, def := range m.Hooks {
		out[id] = def
	}
	return out, nil
}

// Save stores one definition, or fails with SaveErr when set.
func (m *MemoryPersistence) Save(def HookDefinition) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Hooks[def.ID] = def
	return nil
}

// Delete removes one definition, or fails with SaveErr when set.
func (m *MemoryPersistence) Delete(id string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	delete(m.Hooks, id)
	return nil
}
