package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hexframe/mapcache/hexcoord"
)

// ErrItemExists rejects a create targeting an occupied coordinate.
var ErrItemExists = errors.New("item already exists at coordinate")

// ErrItemNotFound rejects an update or delete for an uncached coordinate.
var ErrItemNotFound = errors.New("no cached item at coordinate")

// ItemService is the server side of item CRUD mutations.
type ItemService interface {
	CreateItem(ctx context.Context, coords string, payload CreatePayload) (*ServerItem, error)
	UpdateItem(ctx context.Context, coords string, payload UpdatePayload) (*ServerItem, error)
	DeleteItem(ctx context.Context, coords string) error
}

// CreatePayload is the typed payload for item creation.
type CreatePayload struct {
	Name        string `json:"name"`
	Description string `json:"descr,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Validate checks the payload at the boundary, before any optimistic apply.
func (p CreatePayload) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("item name is required")
	}
	return nil
}

// UpdatePayload is the typed payload for a partial item update. Nil fields
// are left unchanged.
type UpdatePayload struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"descr,omitempty"`
	URL         *string `json:"url,omitempty"`
}

// Validate rejects an update that changes nothing.
func (p UpdatePayload) Validate() error {
	if p.Name == nil && p.Description == nil && p.URL == nil {
		return fmt.Errorf("update payload is empty")
	}
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("item name cannot be cleared")
	}
	return nil
}

// MutationService is the thin façade translating item CRUD into optimistic
// cache transitions plus server round-trips. The pending tracker is injected
// so sessions stay independent and tests can observe it.
type MutationService struct {
	store   *Store
	items   ItemService
	pending *PendingChanges
}

// NewMutationService wires a mutation façade.
func NewMutationService(store *Store, items ItemService, pending *PendingChanges) *MutationService {
	return &MutationService{store: store, items: items, pending: pending}
}

// Pending exposes the tracker for inspection.
func (m *MutationService) Pending() *PendingChanges { return m.pending }

// CreateItem optimistically inserts a tile at coordID and confirms it with
// the server; on rejection the insert is rolled back.
func (m *MutationService) CreateItem(ctx context.Context, coordID string, payload CreatePayload) (*ServerItem, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	coord, err := hexcoord.Parse(coordID)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinate: %w", err)
	}
	state := m.store.State()
	if _, ok := TileByID(state, coordID); ok {
		return nil, fmt.Errorf("%w: %s", ErrItemExists, coordID)
	}

	changeID := m.pending.Track(ChangeCreate, coordID)
	defer m.pending.Resolve(changeID)

	speculative := Tile{
		Metadata: TileMetadata{
			CoordID: coord.String(),
			Coord:   coord,
			Depth:   coord.Depth(),
		},
		Data: TileData{
			Name:        payload.Name,
			Description: payload.Description,
			URL:         payload.URL,
			Color:       ColorFor(coord),
		},
	}
	if p, ok := coord.Parent(); ok {
		speculative.Metadata.ParentID = p.String()
	}

	return ExecuteOptimistic(ctx, OptimisticOp[*State, *ServerItem]{
		CaptureState: m.store.Snapshot,
		Rollback:     m.store.Restore,
		OptimisticUpdate: func() {
			m.store.UpdateCache(func(s *State) *State {
				return withTileChanges(s, nil, []Tile{speculative})
			})
		},
		ServerOperation: func(ctx context.Context) (*ServerItem, error) {
			return m.items.CreateItem(ctx, coordID, payload)
		},
		OnSuccess: func(item *ServerItem) {
			m.store.UpdateCache(func(s *State) *State {
				return reconcileModifiedItems(s, []ServerItem{*item})
			})
		},
		OnError: func(err error) {
			log.Error().Err(err).Str("coord_id", coordID).Msg("create failed, cache rolled back")
		},
	})
}

// UpdateItem optimistically patches a cached tile's content and confirms it
// with the server.
func (m *MutationService) UpdateItem(ctx context.Context, coordID string, payload UpdatePayload) (*ServerItem, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	state := m.store.State()
	tile, ok := TileByID(state, coordID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, coordID)
	}

	changeID := m.pending.Track(ChangeUpdate, coordID)
	defer m.pending.Resolve(changeID)

	patched := tile
	if payload.Name != nil {
		patched.Data.Name = *payload.Name
	}
	if payload.Description != nil {
		patched.Data.Description = *payload.Description
	}
	if payload.URL != nil {
		patched.Data.URL = *payload.URL
	}

	return ExecuteOptimistic(ctx, OptimisticOp[*State, *ServerItem]{
		CaptureState: m.store.Snapshot,
		Rollback:     m.store.Restore,
		OptimisticUpdate: func() {
			m.store.UpdateCache(func(s *State) *State {
				return withTileChanges(s, nil, []Tile{patched})
			})
		},
		ServerOperation: func(ctx context.Context) (*ServerItem, error) {
			return m.items.UpdateItem(ctx, coordID, payload)
		},
		OnSuccess: func(item *ServerItem) {
			m.store.UpdateCache(func(s *State) *State {
				return reconcileModifiedItems(s, []ServerItem{*item})
			})
		},
		OnError: func(err error) {
			log.Error().Err(err).Str("coord_id", coordID).Msg("update failed, cache rolled back")
		},
	})
}

// DeleteItem optimistically removes a tile and its cached descendants, then
// confirms with the server.
func (m *MutationService) DeleteItem(ctx context.Context, coordID string) error {
	state := m.store.State()
	if _, ok := TileByID(state, coordID); !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, coordID)
	}

	changeID := m.pending.Track(ChangeDelete, coordID)
	defer m.pending.Resolve(changeID)

	removals := []string{coordID}
	for _, desc := range m.store.Descendants(coordID) {
		removals = append(removals, desc.Metadata.CoordID)
	}

	_, err := ExecuteOptimistic(ctx, OptimisticOp[*State, struct{}]{
		CaptureState: m.store.Snapshot,
		Rollback:     m.store.Restore,
		OptimisticUpdate: func() {
			m.store.UpdateCache(func(s *State) *State {
				return withTileChanges(s, removals, nil)
			})
		},
		ServerOperation: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.items.DeleteItem(ctx, coordID)
		},
		OnError: func(err error) {
			log.Error().Err(err).Str("coord_id", coordID).Msg("delete failed, cache rolled back")
		},
	})
	return err
}
