package cache

import (
	"sync"
)

// Store owns the single mutable state cell for one map session. All writes
// funnel through Dispatch or UpdateCache under one lock; reads grab the
// current snapshot and run selectors against it without locking.
type Store struct {
	mu    sync.Mutex
	state *State
	memo  *Memo
}

// NewStore builds a store seeded with an empty state.
func NewStore(cfg Config) *Store {
	st := NewState(cfg)
	memo, err := NewMemo(128)
	if err != nil {
		// lru.New only fails on non-positive capacity.
		panic(err)
	}
	return &Store{state: &st, memo: memo}
}

// State returns the current state snapshot. Callers must treat it as
// read-only; every write path replaces the pointer wholesale.
func (st *Store) State() *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Dispatch routes an action through the reducer and publishes the result.
// It reports whether the state actually changed.
func (st *Store) Dispatch(action Action) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := Reduce(st.state, action)
	if next == st.state {
		return false
	}
	st.state = next
	return true
}

// UpdateCache is the cache-update sink handed to orchestrators: it applies
// the updater synchronously and makes the new state visible to the next
// selector call. Updaters must return fresh state, never mutate in place.
func (st *Store) UpdateCache(updater func(*State) *State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = updater(st.state)
}

// Snapshot captures the current state for rollback.
func (st *Store) Snapshot() *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.state.Clone()
	return &snap
}

// Restore replaces the state with a previously captured snapshot.
func (st *Store) Restore(snap *State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = snap
}

// Descendants runs the memoized descendant selector against current state.
func (st *Store) Descendants(coordID string) []Tile {
	return st.memo.Descendants(st.State(), coordID)
}

// withTileChanges returns a new state with the given keys removed and tiles
// upserted, all in one transition, and lastUpdated bumped. Orchestrators use
// it inside UpdateCache so a parent and its migrated children land together.
func withTileChanges(s *State, removals []string, upserts []Tile) *State {
	next := s.Clone()
	for _, k := range removals {
		delete(next.ItemsByID, k)
	}
	for _, t := range upserts {
		next.ItemsByID[t.Metadata.CoordID] = t
	}
	next.LastUpdated = now()
	return &next
}
