package cache

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RegionService is the server side of region and children fetches.
type RegionService interface {
	FetchRegion(ctx context.Context, centerCoordID string, maxDepth int) ([]ServerItem, error)
	FetchItemChildren(ctx context.Context, parentCoordID string, maxDepth int) ([]ServerItem, error)
}

// NavigationService is the thin façade translating navigation into cache
// dispatches and region fetches.
type NavigationService struct {
	store   *Store
	regions RegionService
}

// NewNavigationService wires a navigation façade.
func NewNavigationService(store *Store, regions RegionService) *NavigationService {
	return &NavigationService{store: store, regions: regions}
}

// NavigateTo recenters the map on coordID and ensures that region is loaded
// and fresh, fetching it if not.
func (n *NavigationService) NavigateTo(ctx context.Context, coordID string) error {
	n.store.Dispatch(SetCenter{CoordID: coordID})

	state := n.store.State()
	depth := state.CacheConfig.MaxDepth
	if RegionLoadedAndFresh(state, coordID, depth) {
		return nil
	}

	n.store.Dispatch(SetLoading{Loading: true})
	items, err := n.regions.FetchRegion(ctx, coordID, depth)
	if err != nil {
		n.store.Dispatch(SetLoading{Loading: false})
		n.store.Dispatch(SetError{Message: err.Error()})
		return err
	}
	n.store.Dispatch(LoadRegion{Items: items, CenterCoordID: coordID, MaxDepth: depth})
	n.store.Dispatch(SetLoading{Loading: false})
	return nil
}

// Prefetch loads a region in the background when it is missing or stale.
// Unlike NavigateTo it never touches the center or the loading flag, and a
// fetch failure is logged rather than surfaced into the error slot.
func (n *NavigationService) Prefetch(ctx context.Context, coordID string) {
	state := n.store.State()
	depth := state.CacheConfig.MaxDepth
	if RegionLoadedAndFresh(state, coordID, depth) {
		return
	}
	items, err := n.regions.FetchRegion(ctx, coordID, depth)
	if err != nil {
		log.Debug().Err(err).Str("coord_id", coordID).Msg("region prefetch failed")
		return
	}
	n.store.Dispatch(LoadRegion{Items: items, CenterCoordID: coordID, MaxDepth: depth})
}

// LoadChildren fetches one level of children for parentCoordID and merges
// them through the change-detection guard.
func (n *NavigationService) LoadChildren(ctx context.Context, parentCoordID string) error {
	items, err := n.regions.FetchItemChildren(ctx, parentCoordID, 1)
	if err != nil {
		n.store.Dispatch(SetError{Message: err.Error()})
		return err
	}
	n.store.Dispatch(LoadItemChildren{Items: items, ParentCoordID: parentCoordID, MaxDepth: 1})
	return nil
}

// ToggleExpansion flips one item's expansion state.
func (n *NavigationService) ToggleExpansion(dbID string) {
	n.store.Dispatch(ToggleItemExpansion{DBID: dbID})
}

// SetExpanded replaces the expanded set wholesale.
func (n *NavigationService) SetExpanded(dbIDs []string) {
	n.store.Dispatch(SetExpandedItems{DBIDs: dbIDs})
}
