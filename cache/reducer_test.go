package cache

import (
	"reflect"
	"testing"
	"time"
)

// fixedClock makes lastUpdated deterministic and strictly increasing.
func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var ticks int64
	old := now
	now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	t.Cleanup(func() { now = old })
	return now
}

type unknownAction struct{}

func (unknownAction) isAction() {}

func serverItem(id, coords, name string) ServerItem {
	return ServerItem{ID: id, Coords: coords, Name: name, OwnerID: "owner-1"}
}

func seededState(t *testing.T, items ...ServerItem) *State {
	t.Helper()
	st := NewState(DefaultConfig())
	return Reduce(&st, LoadRegion{Items: items, CenterCoordID: "1,2", MaxDepth: 2})
}

func TestReduceUnknownActionIdentity(t *testing.T) {
	fixedClock(t)
	s := seededState(t, serverItem("a", "1,2:1", "alpha"))
	if got := Reduce(s, unknownAction{}); got != s {
		t.Fatal("unknown action must return the same state pointer")
	}
}

func TestReducePurity(t *testing.T) {
	fixedClock(t)
	s := seededState(t, serverItem("a", "1,2:1", "alpha"))
	before := s.Clone()

	action := SetCenter{CoordID: "1,2:1"}
	first := Reduce(s, action)
	second := Reduce(s, action)

	if !reflect.DeepEqual(*s, before) {
		t.Fatal("Reduce mutated its input state")
	}
	if first.CurrentCenter != second.CurrentCenter {
		t.Fatal("Reduce is not deterministic for equal inputs")
	}
	if !reflect.DeepEqual(first.ItemsByID, second.ItemsByID) {
		t.Fatal("Reduce produced differing item maps for equal inputs")
	}
}

func TestLoadRegion(t *testing.T) {
	fixedClock(t)
	st := NewState(DefaultConfig())
	s := Reduce(&st, LoadRegion{
		Items: []ServerItem{
			serverItem("a", "1,2:1", "alpha"),
			serverItem("b", "1,2:2", "beta"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      2,
	})

	if len(s.ItemsByID) != 2 {
		t.Fatalf("ItemsByID size = %d, want 2", len(s.ItemsByID))
	}
	meta, ok := s.RegionMetadata["1,2"]
	if !ok {
		t.Fatal("region metadata missing")
	}
	if meta.MaxDepth != 2 {
		t.Fatalf("MaxDepth = %d, want 2", meta.MaxDepth)
	}
	if len(meta.ItemCoordIDs) != 2 {
		t.Fatalf("ItemCoordIDs = %v, want 2 entries", meta.ItemCoordIDs)
	}
	if s.LastUpdated.IsZero() {
		t.Fatal("lastUpdated not bumped")
	}
}

func TestLoadRegionClearsError(t *testing.T) {
	fixedClock(t)
	st := NewState(DefaultConfig())
	s := Reduce(&st, SetError{Message: "boom"})
	s = Reduce(s, LoadRegion{CenterCoordID: "1,2", MaxDepth: 1})
	if s.Error != "" {
		t.Fatalf("LoadRegion must clear error, got %q", s.Error)
	}
	// Empty item list still records region metadata.
	if _, ok := s.RegionMetadata["1,2"]; !ok {
		t.Fatal("empty load must still stamp region metadata")
	}
}

func TestLoadRegionDropsSentinelAndMalformed(t *testing.T) {
	fixedClock(t)
	st := NewState(DefaultConfig())
	s := Reduce(&st, LoadRegion{
		Items: []ServerItem{
			serverItem("good", "1,2:1", "alpha"),
			serverItem("sentinel", "1,2:0:1", "bad-center"),
			serverItem("broken", "not-a-coord", "unparseable"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      2,
	})
	if len(s.ItemsByID) != 1 {
		t.Fatalf("ItemsByID size = %d, want 1 (sentinel and malformed dropped)", len(s.ItemsByID))
	}
	if _, ok := s.ItemsByID["1,2:1"]; !ok {
		t.Fatal("good item missing after filtered load")
	}
}

func TestLoadRegionLaterItemWins(t *testing.T) {
	fixedClock(t)
	st := NewState(DefaultConfig())
	s := Reduce(&st, LoadRegion{
		Items: []ServerItem{
			serverItem("a", "1,2:1", "first"),
			serverItem("a2", "1,2:1", "second"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      1,
	})
	if got := s.ItemsByID["1,2:1"].Data.Name; got != "second" {
		t.Fatalf("collision winner = %q, want later item", got)
	}
}

func TestLoadIdempotence(t *testing.T) {
	fixedClock(t)
	items := []ServerItem{serverItem("a", "1,2:1", "alpha"), serverItem("b", "1,2:2", "beta")}
	st := NewState(DefaultConfig())
	once := Reduce(&st, LoadRegion{Items: items, CenterCoordID: "1,2", MaxDepth: 2})
	twice := Reduce(once, LoadRegion{Items: items, CenterCoordID: "1,2", MaxDepth: 2})
	if !reflect.DeepEqual(once.ItemsByID, twice.ItemsByID) {
		t.Fatal("double load changed itemsById content")
	}
}

func TestLoadItemChildrenNoOpGuard(t *testing.T) {
	fixedClock(t)
	s := seededState(t, serverItem("a", "1,2:1", "alpha"))

	same := Reduce(s, LoadItemChildren{
		Items:         []ServerItem{serverItem("a", "1,2:1", "alpha")},
		ParentCoordID: "1,2",
		MaxDepth:      1,
	})
	if same != s {
		t.Fatal("unchanged children must return the identical state reference")
	}

	changed := Reduce(s, LoadItemChildren{
		Items:         []ServerItem{serverItem("a", "1,2:1", "renamed")},
		ParentCoordID: "1,2",
		MaxDepth:      1,
	})
	if changed == s {
		t.Fatal("changed children must produce new state")
	}
	if got := changed.ItemsByID["1,2:1"].Data.Name; got != "renamed" {
		t.Fatalf("merged name = %q, want renamed", got)
	}
}

func TestInvalidateRegionKeepsItems(t *testing.T) {
	fixedClock(t)
	s := seededState(t, serverItem("a", "1,2:1", "alpha"), serverItem("b", "1,2:2", "beta"))

	before := s.LastUpdated
	s = Reduce(s, InvalidateRegion{RegionKey: "1,2"})
	if _, ok := s.RegionMetadata["1,2"]; ok {
		t.Fatal("region metadata should be gone after invalidation")
	}
	if len(s.ItemsByID) != 2 {
		t.Fatalf("ItemsByID size = %d after region invalidation, want 2", len(s.ItemsByID))
	}
	if !s.LastUpdated.After(before) {
		t.Fatal("invalidating a region must bump lastUpdated")
	}
}

func TestInvalidateAll(t *testing.T) {
	fixedClock(t)
	s := seededState(t, serverItem("a", "1,2:1", "alpha"))
	s = Reduce(s, InvalidateAll{})
	if len(s.ItemsByID) != 0 || len(s.RegionMetadata) != 0 {
		t.Fatal("InvalidateAll must clear items and region metadata")
	}
	if !s.LastUpdated.IsZero() {
		t.Fatalf("InvalidateAll must reset lastUpdated, got %v", s.LastUpdated)
	}
}

func TestToggleItemExpansion(t *testing.T) {
	st := NewState(DefaultConfig())
	s := Reduce(&st, ToggleItemExpansion{DBID: "a"})
	if !reflect.DeepEqual(s.ExpandedItemIDs, []string{"a"}) {
		t.Fatalf("expanded = %v, want [a]", s.ExpandedItemIDs)
	}
	s = Reduce(s, ToggleItemExpansion{DBID: "b"})
	s = Reduce(s, ToggleItemExpansion{DBID: "a"})
	if !reflect.DeepEqual(s.ExpandedItemIDs, []string{"b"}) {
		t.Fatalf("expanded = %v, want [b]", s.ExpandedItemIDs)
	}
}

func TestUpdateConfigPartialMerge(t *testing.T) {
	st := NewState(DefaultConfig())
	maxAge := 42 * time.Second
	s := Reduce(&st, UpdateConfig{MaxAge: &maxAge})
	if s.CacheConfig.MaxAge != maxAge {
		t.Fatalf("MaxAge = %v, want %v", s.CacheConfig.MaxAge, maxAge)
	}
	if s.CacheConfig.MaxDepth != DefaultConfig().MaxDepth {
		t.Fatal("untouched config fields must survive a partial merge")
	}
}

func TestLastUpdatedStrictlyIncreases(t *testing.T) {
	fixedClock(t)
	st := NewState(DefaultConfig())
	a := Reduce(&st, LoadRegion{CenterCoordID: "1,2", MaxDepth: 1})
	b := Reduce(a, LoadRegion{CenterCoordID: "1,3", MaxDepth: 1})
	if !b.LastUpdated.After(a.LastUpdated) {
		t.Fatal("lastUpdated must strictly increase across structural mutations")
	}
	// UI-state toggles do not bump it.
	c := Reduce(b, ToggleItemExpansion{DBID: "x"})
	if !c.LastUpdated.Equal(b.LastUpdated) {
		t.Fatal("UI toggles must not bump lastUpdated")
	}
}
