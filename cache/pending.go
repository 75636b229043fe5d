package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeKind tags one pending optimistic change.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeMove   ChangeKind = "move"
	ChangeSwap   ChangeKind = "swap"
)

// PendingChange is one optimistic mutation awaiting server confirmation.
type PendingChange struct {
	ID      string
	Kind    ChangeKind
	CoordID string
	At      time.Time
}

// PendingChanges is an ordered, injectable record of in-flight optimistic
// mutations. It is owned by whichever session constructs it; nothing in this
// package keeps one at package level, so independent sessions never share
// tracking state and tests can inspect or reset it directly.
type PendingChanges struct {
	mu      sync.Mutex
	changes []PendingChange
}

// NewPendingChanges returns an empty tracker.
func NewPendingChanges() *PendingChanges {
	return &PendingChanges{}
}

// Track records a new pending change and returns its generated id.
func (p *PendingChanges) Track(kind ChangeKind, coordID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	p.changes = append(p.changes, PendingChange{ID: id, Kind: kind, CoordID: coordID, At: time.Now()})
	return id
}

// Resolve removes the change with the given id, keeping order intact.
func (p *PendingChanges) Resolve(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.changes {
		if c.ID == id {
			p.changes = append(p.changes[:i], p.changes[i+1:]...)
			return
		}
	}
}

// List returns a copy of the pending changes in submission order.
func (p *PendingChanges) List() []PendingChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PendingChange(nil), p.changes...)
}

// Len reports the number of unresolved changes.
func (p *PendingChanges) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.changes)
}

// Reset drops all tracked changes.
func (p *PendingChanges) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = nil
}
