package session

import "sync"

// entry pairs a record with its own lock so operations on distinct
// sessions never serialize behind a store-wide mutex. The removed flag
// covers the window where a caller holds an entry pointer that Delete has
// already unlinked from the index.
type entry struct {
	mu      sync.Mutex
	record  Record
	removed bool
}

// Store is the single source of truth for live sessions. The index mutex
// is held only for map structure changes and lookups; all record access
// goes through the per-entry lock, which linearizes operations on the
// same id.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Put inserts a new record. Returns ErrDuplicateID if the id is already
// present.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return ErrDuplicateID
	}

	s.entries[rec.ID] = &entry{record: rec}
	return nil
}

// Get returns a copy of the record for id. The copy is consistent: it is
// taken under the entry lock, never mid-mutation.
func (s *Store) Get(id string) (Record, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Record{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return Record{}, ErrNotFound
	}
	return e.record, nil
}

// Mutate applies fn to the record for id atomically with respect to all
// other operations on the same id. If fn returns an error it is passed
// through unchanged; fn is expected not to have touched the record in
// that case.
func (s *Store) Mutate(id string, fn func(*Record) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ErrNotFound
	}
	return fn(&e.record)
}

// Delete removes the record for id and returns its final state. Once
// Delete returns, Mutate and Get on the same id report ErrNotFound even
// for callers that raced past the index lookup.
func (s *Store) Delete(id string) (Record, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !ok {
		return Record{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return Record{}, ErrNotFound
	}
	e.removed = true
	return e.record, nil
}

// Snapshot returns a point-in-time copy of every live record. Each copy is
// individually consistent; the slice as a whole may interleave with
// concurrent inserts and deletes, which reaper and monitoring callers
// tolerate by re-validating before acting.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			records = append(records, e.record)
		}
		e.mu.Unlock()
	}
	return records
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}
