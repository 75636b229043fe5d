package cache

import "time"

// Action is the closed set of state transitions the reducer understands.
// Each action is its own struct with a typed payload; there is no generic
// payload bag, so malformed dispatches fail at compile time.
type Action interface {
	isAction()
}

// LoadRegion merges a freshly fetched region into the cache and stamps its
// region metadata.
type LoadRegion struct {
	Items         []ServerItem
	CenterCoordID string
	MaxDepth      int
}

// LoadItemChildren merges a children fetch for one parent. If nothing the
// fetch carries differs from the cache (by name/description) the reducer
// returns the input state unchanged.
type LoadItemChildren struct {
	Items         []ServerItem
	ParentCoordID string
	MaxDepth      int
}

// SetCenter replaces the current center coordinate.
type SetCenter struct {
	CoordID string
}

// SetExpandedItems replaces the expanded-item set wholesale.
type SetExpandedItems struct {
	DBIDs []string
}

// ToggleItemExpansion flips one item's membership in the expanded set.
type ToggleItemExpansion struct {
	DBID string
}

// SetLoading replaces the loading flag.
type SetLoading struct {
	Loading bool
}

// SetError replaces the terminal error slot. An empty message clears it.
type SetError struct {
	Message string
}

// InvalidateRegion drops one region's freshness metadata. The region's items
// stay cached; only the staleness tracking is cleared.
type InvalidateRegion struct {
	RegionKey string
}

// InvalidateAll clears all items and region metadata.
type InvalidateAll struct{}

// UpdateConfig shallow-merges the non-nil fields into the cache config.
type UpdateConfig struct {
	MaxAge                    *time.Duration
	BackgroundRefreshInterval *time.Duration
	EnableOptimisticUpdates   *bool
	MaxDepth                  *int
}

func (LoadRegion) isAction()          {}
func (LoadItemChildren) isAction()    {}
func (SetCenter) isAction()           {}
func (SetExpandedItems) isAction()    {}
func (ToggleItemExpansion) isAction() {}
func (SetLoading) isAction()          {}
func (SetError) isAction()            {}
func (InvalidateRegion) isAction()    {}
func (InvalidateAll) isAction()       {}
func (UpdateConfig) isAction()        {}
