package store

import (
	"bgactions/tasks"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Compile-time check to ensure MemoryTaskStore implements TaskStore interface
var _ TaskStore = (*MemoryTaskStore)(nil)

type record struct {
	def     tasks.Definition
	current Run
}

// MemoryTaskStore keeps definitions and running flags in insertion-ordered
// maps so id listings come back in the order tasks were first seen.
type MemoryTaskStore struct {
	mu          sync.RWMutex
	definitions *linkedhashmap.Map // id -> *record
	running     *linkedhashmap.Map // id -> bool
}

// NewMemoryTaskStore creates and initializes a new MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		definitions: linkedhashmap.New(),
		running:     linkedhashmap.New(),
	}
}

func (s *MemoryTaskStore) lookup(id string) (*record, bool) {
	v, ok := s.definitions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

func active(r *record) bool {
	return r.current != nil && !r.current.Released()
}

// Put stores def, replacing any previous definition with the same id. The
// position in DefinedIDs is kept on overwrite.
func (s *MemoryTaskStore) Put(def tasks.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.lookup(def.ID); ok {
		if active(r) {
			return fmt.Errorf("task %s: %w", def.ID, ErrActive)
		}
		r.def = def
		r.current = nil
		return nil
	}

	s.definitions.Put(def.ID, &record{def: def})
	return nil
}

// Get returns a snapshot of the entry for id. Options are cloned so callers
// cannot reach into the stored definition.
func (s *MemoryTaskStore) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.lookup(id)
	if !ok {
		return Entry{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	def := r.def
	def.Options = def.Options.Clone()
	return Entry{
		Definition: def,
		Current:    r.current,
		Running:    s.isRunningLocked(id),
	}, nil
}

func (s *MemoryTaskStore) Attach(id string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if active(r) {
		return fmt.Errorf("task %s: %w", id, ErrActive)
	}
	r.current = run
	return nil
}

func (s *MemoryTaskStore) MarkRunning(id string, run Run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lookup(id)
	if !ok || r.current != run || run.Released() {
		return false
	}
	s.running.Put(id, true)
	return true
}

func (s *MemoryTaskStore) SetRunning(id string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running.Put(id, running)
}

func (s *MemoryTaskStore) IsCurrent(id string, run Run) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.lookup(id)
	return ok && r.current == run
}

func (s *MemoryTaskStore) IsRunning(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isRunningLocked(id)
}

func (s *MemoryTaskStore) isRunningLocked(id string) bool {
	v, ok := s.running.Get(id)
	return ok && v.(bool)
}

func (s *MemoryTaskStore) DefinedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, s.definitions.Size())
	for _, k := range s.definitions.Keys() {
		ids = append(ids, k.(string))
	}
	return ids
}

func (s *MemoryTaskStore) RunningIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, s.running.Size())
	it := s.running.Iterator()
	for it.Next() {
		if it.Value().(bool) {
			ids = append(ids, it.Key().(string))
		}
	}
	return ids
}
