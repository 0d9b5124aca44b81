package match

import (
	"sort"
	"sync"
)

// MutateFunc edits a working copy of the state. Returning false means nothing
// observable changed and the revision stays put.
type MutateFunc func(st *State) (bool, error)

// CommitFunc runs after a successful MutateFunc, still inside the match's
// critical section, with the state as stored.
type CommitFunc func(st State, changed bool)

type entry struct {
	mu    sync.Mutex
	state State
}

// Store owns the state of every match. Each match has its own mutex, so
// mutations for one ID serialize while different IDs proceed in parallel.
// The map itself is guarded separately for inserts.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

func (s *Store) entry(matchID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[matchID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[matchID]; ok {
		return e
	}
	e = &entry{state: NewState(matchID)}
	s.entries[matchID] = e
	return e
}

// GetOrCreate returns a snapshot of the match, creating it with defaults on first access
func (s *Store) GetOrCreate(matchID string) State {
	e := s.entry(matchID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// View runs fn with the current state while holding the match's lock
func (s *Store) View(matchID string, fn func(st State) error) error {
	e := s.entry(matchID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// Mutate applies fn to a copy of the match state under the match's lock.
// On success with a change the revision is incremented by exactly one and the
// copy is stored. onCommit, when set, observes the stored state before the
// lock is released. A failing fn leaves the state untouched.
func (s *Store) Mutate(matchID string, fn MutateFunc, onCommit CommitFunc) (State, error) {
	e := s.entry(matchID)
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.state
	changed, err := fn(&working)
	if err != nil {
		return e.state, err
	}
	if changed {
		working.MatchID = e.state.MatchID
		working.Rev = e.state.Rev + 1
		e.state = working
	}
	if onCommit != nil {
		onCommit(e.state, changed)
	}
	return e.state, nil
}

// Len returns the number of known matches
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IDs returns all known match IDs in lexical order
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
