package cache

import (
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hexframe/mapcache/hexcoord"
)

// Selectors are pure reads over State. None of them mutate anything, and the
// memoized variants produce the same answers cold as warm.

// TileByID looks up one tile by coordinate id.
func TileByID(s *State, coordID string) (Tile, bool) {
	t, ok := s.ItemsByID[coordID]
	return t, ok
}

// ItemWithinRegion reports whether coord lies inside the region rooted at
// center with the given depth budget: same tree, center's path a strict
// prefix, and no more than maxDepth generations below it.
func ItemWithinRegion(coord, center hexcoord.Coord, maxDepth int) bool {
	return center.IsAncestorOf(coord) && coord.Depth()-center.Depth() <= maxDepth
}

// RegionItems returns the cached tiles belonging to the region rooted at
// centerCoordID, including the center tile itself when cached.
func RegionItems(s *State, centerCoordID string, maxDepth int) []Tile {
	center, err := hexcoord.Parse(centerCoordID)
	if err != nil {
		return nil
	}
	var out []Tile
	for _, t := range s.ItemsByID {
		if t.Metadata.Coord.Equal(center) || ItemWithinRegion(t.Metadata.Coord, center, maxDepth) {
			out = append(out, t)
		}
	}
	sortTiles(out)
	return out
}

// RegionLoadedAndFresh reports whether the region rooted at centerCoordID was
// loaded recently enough (per the cache config) and deeply enough.
func RegionLoadedAndFresh(s *State, centerCoordID string, requiredDepth int) bool {
	meta, ok := s.RegionMetadata[centerCoordID]
	if !ok {
		return false
	}
	if now().Sub(meta.LoadedAt) > s.CacheConfig.MaxAge {
		return false
	}
	return meta.MaxDepth >= requiredDepth
}

// ChildrenOf returns the direct children of coordID, ordered by direction.
func ChildrenOf(s *State, coordID string) []Tile {
	parent, err := hexcoord.Parse(coordID)
	if err != nil {
		return nil
	}
	var out []Tile
	for _, t := range s.ItemsByID {
		c := t.Metadata.Coord
		if c.Depth() == parent.Depth()+1 && parent.IsAncestorOf(c) {
			out = append(out, t)
		}
	}
	sortTiles(out)
	return out
}

// DescendantsOf returns every cached tile strictly below coordID, any depth.
func DescendantsOf(s *State, coordID string) []Tile {
	root, err := hexcoord.Parse(coordID)
	if err != nil {
		return nil
	}
	var out []Tile
	for _, t := range s.ItemsByID {
		if root.IsAncestorOf(t.Metadata.Coord) {
			out = append(out, t)
		}
	}
	sortTiles(out)
	return out
}

// ParentOf resolves the cached parent of coordID. ok is false for roots and
// for parents that exist logically but are not cached.
func ParentOf(s *State, coordID string) (Tile, bool) {
	coord, err := hexcoord.Parse(coordID)
	if err != nil {
		return Tile{}, false
	}
	p, ok := coord.Parent()
	if !ok {
		return Tile{}, false
	}
	return TileByID(s, p.String())
}

// Hierarchy walks cached parent links upward from coordID and returns the
// ancestors in root-to-immediate-parent order. The starting tile itself is
// excluded, and the walk stops at the first uncached ancestor.
func Hierarchy(s *State, coordID string) []Tile {
	var chain []Tile
	cur := coordID
	for {
		parent, ok := ParentOf(s, cur)
		if !ok {
			break
		}
		chain = append(chain, parent)
		cur = parent.Metadata.CoordID
	}
	// reverse to root-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// ShouldShowHierarchy reports whether a breadcrumb for coordID is worth
// rendering: suppressed when there are no cached ancestors or when the
// current center already is one of them.
func ShouldShowHierarchy(s *State, coordID string) bool {
	chain := Hierarchy(s, coordID)
	if len(chain) == 0 {
		return false
	}
	for _, t := range chain {
		if t.Metadata.CoordID == s.CurrentCenter {
			return false
		}
	}
	return true
}

// RecentRegions returns up to limit region keys, most recently loaded first,
// restricted to regions that are still fresh.
func RecentRegions(s *State, limit int) []string {
	type entry struct {
		key      string
		loadedAt time.Time
	}
	entries := make([]entry, 0, len(s.RegionMetadata))
	for k, meta := range s.RegionMetadata {
		if now().Sub(meta.LoadedAt) <= s.CacheConfig.MaxAge {
			entries = append(entries, entry{key: k, loadedAt: meta.LoadedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].loadedAt.After(entries[j].loadedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

func sortTiles(tiles []Tile) {
	sort.Slice(tiles, func(i, j int) bool {
		return tiles[i].Metadata.CoordID < tiles[j].Metadata.CoordID
	})
}

// ------------------------------
// Memoized descendant lookup
// ------------------------------

// Memo caches full-map descendant scans behind a bounded LRU. Keys include a
// fingerprint of the state (lastUpdated + item count), so a structurally
// changed state never serves a stale answer; a cold Memo returns exactly what
// DescendantsOf returns.
type Memo struct {
	cache *lru.Cache[string, []Tile]
}

// NewMemo builds a Memo with the given capacity.
func NewMemo(capacity int) (*Memo, error) {
	c, err := lru.New[string, []Tile](capacity)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: c}, nil
}

// Descendants is DescendantsOf with memoization.
func (m *Memo) Descendants(s *State, coordID string) []Tile {
	key := fmt.Sprintf("%s|%d|%d", coordID, s.LastUpdated.UnixNano(), len(s.ItemsByID))
	if v, ok := m.cache.Get(key); ok {
		return v
	}
	v := DescendantsOf(s, coordID)
	m.cache.Add(key, v)
	return v
}
