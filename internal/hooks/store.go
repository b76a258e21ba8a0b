package hooks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yurucode/hookguard/internal/logger"
)

// Store errors.
var (
	// ErrDuplicateIdentifier is returned by Create when the id or name
	// collides with an existing hook.
	ErrDuplicateIdentifier = errors.New("hook identifier already exists")
	// ErrImmutableHook is returned by Update/Delete for builtin and
	// plugin hooks.
	ErrImmutableHook = errors.New("hook is not user-editable")
	// ErrHookNotFound is returned when no hook has the given id.
	ErrHookNotFound = errors.New("hook not found")
)

// Persistence is the external storage collaborator. Hook state is keyed
// by hook id. Writes are best-effort from the store's point of view: a
// failed write is surfaced as a warning but never rolls back the
// in-memory change.
type Persistence interface {
	// Load returns all persisted hook definitions keyed by id.
	Load() (map[string]HookDefinition, error)
	// Save persists one definition.
	Save(def HookDefinition) error
	// Delete removes one definition.
	Delete(id string) error
}

// Subscriber receives the full updated hook list after every successful
// mutation. The store does not expose incremental diffs.
type Subscriber func([]HookDefinition)

// entry pairs a definition with its in-memory insertion sequence, which
// fixes creation order within an origin group.
type entry struct {
	def HookDefinition
	seq int
}

// Store is the in-memory source of truth for hook definitions during a
// session. Mutations are serialized; reads may run concurrently with
// any in-flight dispatch.
type Store struct {
	mu             sync.RWMutex
	hooks          map[string]*entry
	seq            int
	persist        Persistence
	subscribers    []Subscriber
	lastPersistErr error
}

// NewStore creates a store seeded with the given builtin definitions,
// overlaid with persisted state. A builtin id missing from persistence
// keeps its default and is persisted. Custom hooks are restored from
// persistence in creation order.
func NewStore(persist Persistence, builtins []HookDefinition) (*Store, error) {
	s := &Store{
		hooks:   make(map[string]*entry),
		persist: persist,
	}

	for _, def := range builtins {
		def.Origin = OriginBuiltin
		if def.CreatedAt.IsZero() {
			def.CreatedAt = time.Now()
		}
		s.insert(def)
	}

	persisted, err := persist.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted hooks: %w", err)
	}

	for id, e := range s.hooks {
		saved, ok := persisted[id]
		if !ok {
			// First run for this builtin: persist the default.
			s.save(e.def)
			continue
		}
		// Only the enabled flag of a builtin is user state.
		e.def.Enabled = saved.Enabled
	}

	customs := make([]HookDefinition, 0, len(persisted))
	for id, def := range persisted {
		if _, ok := s.hooks[id]; ok {
			continue
		}
		if def.Origin != OriginCustom {
			// Plugin hooks are re-attached by the plugin subsystem, not
			// restored from persistence.
			continue
		}
		customs = append(customs, def)
	}
	sort.Slice(customs, func(i, j int) bool {
		if !customs[i].CreatedAt.Equal(customs[j].CreatedAt) {
			return customs[i].CreatedAt.Before(customs[j].CreatedAt)
		}
		return customs[i].ID < customs[j].ID
	})
	for _, def := range customs {
		s.insert(def)
	}

	return s, nil
}

// insert adds a definition without notification. Caller holds the lock
// or is still constructing the store.
func (s *Store) insert(def HookDefinition) {
	s.seq++
	s.hooks[def.ID] = &entry{def: def, seq: s.seq}
}

// save persists a definition best-effort.
func (s *Store) save(def HookDefinition) {
	if err := s.persist.Save(def); err != nil {
		s.lastPersistErr = err
		logger.Warn("hook persistence write failed", "hook", def.ID, "error", err)
	}
}

// Subscribe registers a subscriber for full-list notifications.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// notify sends the current list to all subscribers. Called after the
// lock is released so subscribers may read the store.
func (s *Store) notify() {
	list := s.List()
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(list)
	}
}

// originRank orders origin groups: builtin before custom before plugin.
func originRank(o Origin) int {
	switch o {
	case OriginBuiltin:
		return 0
	case OriginCustom:
		return 1
	default:
		return 2
	}
}

// List returns all hooks ordered builtin, then custom, then plugin,
// each group in creation order.
func (s *Store) List() []HookDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.hooks))
	for _, e := range s.hooks {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := originRank(entries[i].def.Origin), originRank(entries[j].def.Origin)
		if ri != rj {
			return ri < rj
		}
		return entries[i].seq < entries[j].seq
	})

	list := make([]HookDefinition, len(entries))
	for i, e := range entries {
		list[i] = e.def
	}
	return list
}

// Get returns the hook with the given id.
func (s *Store) Get(id string) (HookDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.hooks[id]
	if !ok {
		return HookDefinition{}, fmt.Errorf("%w: %s", ErrHookNotFound, id)
	}
	return e.def, nil
}

// SetEnabled flips the enabled state of any hook, regardless of origin.
func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	e, ok := s.hooks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHookNotFound, id)
	}
	e.def.Enabled = enabled
	def := e.def
	s.save(def)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Create adds a custom hook. The origin is forced to custom; callers
// cannot create builtin or plugin entries through this path.
func (s *Store) Create(def HookDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("hook id is required")
	}
	if _, err := ParseEvent(string(def.Event)); err != nil {
		return err
	}
	if def.Script.IsZero() {
		return fmt.Errorf("hook %s has no script", def.ID)
	}

	def.Origin = OriginCustom
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if _, ok := s.hooks[def.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: id %q", ErrDuplicateIdentifier, def.ID)
	}
	for _, e := range s.hooks {
		if strings.EqualFold(e.def.Name, def.Name) && def.Name != "" {
			s.mu.Unlock()
			return fmt.Errorf("%w: name %q", ErrDuplicateIdentifier, def.Name)
		}
	}
	s.insert(def)
	s.save(def)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Update applies a patch to a custom hook. Builtin and plugin hooks are
// immutable apart from their enabled state.
func (s *Store) Update(id string, patch HookPatch) error {
	s.mu.Lock()
	e, ok := s.hooks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHookNotFound, id)
	}
	if !e.def.Mutable() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s (%s)", ErrImmutableHook, id, e.def.Origin)
	}
	if patch.Event != nil {
		if _, err := ParseEvent(string(*patch.Event)); err != nil {
			s.mu.Unlock()
			return err
		}
		e.def.Event = *patch.Event
	}
	if patch.Name != nil {
		e.def.Name = *patch.Name
	}
	if patch.Description != nil {
		e.def.Description = *patch.Description
	}
	if patch.Script != nil {
		e.def.Script = *patch.Script
	}
	if patch.Timeout != nil {
		e.def.Timeout = *patch.Timeout
	}
	s.save(e.def)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Delete removes a custom hook. Builtin and plugin hooks cannot be
// deleted by the user.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.hooks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHookNotFound, id)
	}
	if !e.def.Mutable() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s (%s)", ErrImmutableHook, id, e.def.Origin)
	}
	delete(s.hooks, id)
	if err := s.persist.Delete(id); err != nil {
		s.lastPersistErr = err
		logger.Warn("hook persistence delete failed", "hook", id, "error", err)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// EnabledForEvent snapshots the enabled hooks bound to an event, in
// list order. The dispatcher takes this snapshot once at dispatch start
// so that concurrent mutations never change behavior mid-dispatch.
func (s *Store) EnabledForEvent(event LifecycleEvent) []HookDefinition {
	var selected []HookDefinition
	for _, def := range s.List() {
		if def.Event == event && def.Enabled {
			selected = append(selected, def)
		}
	}
	return selected
}

// LastPersistError returns the most recent persistence failure, if any.
// In-memory state is authoritative for the session; this is surfaced as
// a recoverable warning only.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPersistErr
}
