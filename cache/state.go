package cache

import (
	"time"
)

// RegionMetadata records one region load. ItemCoordIDs is a snapshot taken at
// load time; later partial updates may drift from it, so consumers treat it
// as provenance rather than live membership.
type RegionMetadata struct {
	CenterCoordID string    `json:"centerCoordId"`
	MaxDepth      int       `json:"maxDepth"`
	LoadedAt      time.Time `json:"loadedAt"`
	ItemCoordIDs  []string  `json:"itemCoordIds"`
}

// Config holds the cache tunables carried inside State.
type Config struct {
	MaxAge                    time.Duration `json:"maxAge"`
	BackgroundRefreshInterval time.Duration `json:"backgroundRefreshInterval"`
	EnableOptimisticUpdates   bool          `json:"enableOptimisticUpdates"`
	MaxDepth                  int           `json:"maxDepth"`
}

// DefaultConfig mirrors the defaults the map frontend ships with.
func DefaultConfig() Config {
	return Config{
		MaxAge:                    5 * time.Minute,
		BackgroundRefreshInterval: 30 * time.Second,
		EnableOptimisticUpdates:   true,
		MaxDepth:                  3,
	}
}

// State is the single source of truth for one map session. It is treated as
// immutable: the reducer returns fresh values and never mutates its input.
type State struct {
	ItemsByID       map[string]Tile           `json:"itemsById"`
	RegionMetadata  map[string]RegionMetadata `json:"regionMetadata"`
	CurrentCenter   string                    `json:"currentCenter,omitempty"`
	ExpandedItemIDs []string                  `json:"expandedItemIds"`
	IsLoading       bool                      `json:"isLoading"`
	Error           string                    `json:"error,omitempty"`
	LastUpdated     time.Time                 `json:"lastUpdated"`
	CacheConfig     Config                    `json:"cacheConfig"`
}

// NewState returns an empty state with the given config.
func NewState(cfg Config) State {
	return State{
		ItemsByID:      map[string]Tile{},
		RegionMetadata: map[string]RegionMetadata{},
		CacheConfig:    cfg,
	}
}

// Clone returns an independent copy of s. Tiles are value types whose nested
// slices are never mutated in place, so copying the maps is sufficient for a
// rollback snapshot.
func (s State) Clone() State {
	out := s
	out.ItemsByID = make(map[string]Tile, len(s.ItemsByID))
	for k, v := range s.ItemsByID {
		out.ItemsByID[k] = v
	}
	out.RegionMetadata = make(map[string]RegionMetadata, len(s.RegionMetadata))
	for k, v := range s.RegionMetadata {
		out.RegionMetadata[k] = v
	}
	out.ExpandedItemIDs = append([]string(nil), s.ExpandedItemIDs...)
	return out
}
