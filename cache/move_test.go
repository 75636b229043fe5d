package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// fakeMoveService scripts move/swap responses for orchestrator tests.
type fakeMoveService struct {
	moveResp *MoveResponse
	moveErr  error
	swapResp *SwapResponse
	swapErr  error

	moves [][2]string
	swaps [][2]string
}

func (f *fakeMoveService) MoveMapItem(_ context.Context, oldCoords, newCoords string) (*MoveResponse, error) {
	f.moves = append(f.moves, [2]string{oldCoords, newCoords})
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	if f.moveResp != nil {
		return f.moveResp, nil
	}
	return &MoveResponse{}, nil
}

func (f *fakeMoveService) SwapMapItems(_ context.Context, coordsA, coordsB string) (*SwapResponse, error) {
	f.swaps = append(f.swaps, [2]string{coordsA, coordsB})
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	if f.swapResp != nil {
		return f.swapResp, nil
	}
	return &SwapResponse{}, nil
}

func moveFixture(t *testing.T) *Store {
	t.Helper()
	store := NewStore(DefaultConfig())
	store.Dispatch(LoadRegion{
		Items: []ServerItem{
			serverItem("p", "1,2:1", "parent"),
			serverItem("c", "1,2:1:3", "child"),
			serverItem("g", "1,2:1:3:5", "grandchild"),
			serverItem("o", "1,2:4", "other"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      3,
	})
	return store
}

func TestDetectMoveOperation(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)

	// Empty destination: plain move, no target.
	op, err := DetectMoveOperation(store.State(), "1,2:1", "1,2:2")
	if err != nil {
		t.Fatalf("DetectMoveOperation: %v", err)
	}
	if op.Type != OpMove || op.TargetTile != nil {
		t.Fatalf("op = %+v, want plain move with no target", op)
	}

	// Occupied destination: swap with the target set.
	op, err = DetectMoveOperation(store.State(), "1,2:1", "1,2:4")
	if err != nil {
		t.Fatalf("DetectMoveOperation: %v", err)
	}
	if op.Type != OpSwap || op.TargetTile == nil || op.TargetTile.Metadata.CoordID != "1,2:4" {
		t.Fatalf("op = %+v, want swap targeting 1,2:4", op)
	}
}

func TestValidateMoveCoordinatesSamePosition(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)
	before := *store.State()

	_, _, err := ValidateMoveCoordinates("1,2:1", "1,2:1")
	if !errors.Is(err, ErrSamePosition) {
		t.Fatalf("err = %v, want ErrSamePosition", err)
	}

	svc := &fakeMoveService{}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")
	if err := mover.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:1"}); !errors.Is(err, ErrSamePosition) {
		t.Fatalf("Move err = %v, want ErrSamePosition", err)
	}
	if len(svc.moves) != 0 {
		t.Fatal("validation failure must not reach the server")
	}
	if !reflect.DeepEqual(*store.State(), before) {
		t.Fatal("validation failure must leave the cache untouched")
	}
}

func TestMoveOntoOwnChildRejected(t *testing.T) {
	fixedClock(t)
	store := NewStore(DefaultConfig())
	store.Dispatch(LoadRegion{
		Items: []ServerItem{
			serverItem("p", "1,2:1", "parent"),
			serverItem("c", "1,2:1:3", "child"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      2,
	})
	before := *store.State()

	_, _, err := ValidateMoveCoordinates("1,2:1", "1,2:1:3")
	if !errors.Is(err, ErrNestedPosition) {
		t.Fatalf("err = %v, want ErrNestedPosition", err)
	}
	// The reverse direction is just as impossible.
	if _, _, err := ValidateMoveCoordinates("1,2:1:3", "1,2:1"); !errors.Is(err, ErrNestedPosition) {
		t.Fatalf("err = %v, want ErrNestedPosition", err)
	}

	svc := &fakeMoveService{}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")
	if err := mover.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:1:3"}); !errors.Is(err, ErrNestedPosition) {
		t.Fatalf("Move err = %v, want ErrNestedPosition", err)
	}
	if len(svc.moves) != 0 || len(svc.swaps) != 0 {
		t.Fatal("nested move must not reach the server")
	}

	s := store.State()
	if len(s.ItemsByID) != len(before.ItemsByID) {
		t.Fatalf("item count changed %d -> %d", len(before.ItemsByID), len(s.ItemsByID))
	}
	seen := map[string][]string{}
	for coordID, tile := range s.ItemsByID {
		seen[tile.Metadata.DBID] = append(seen[tile.Metadata.DBID], coordID)
	}
	for dbID, keys := range seen {
		if len(keys) > 1 {
			t.Fatalf("dbId %s duplicated at %v", dbID, keys)
		}
	}
	if !reflect.DeepEqual(*s, before) {
		t.Fatal("nested move must leave the cache untouched")
	}
}

func TestSwapWithinOwnSubtreeRejected(t *testing.T) {
	fixedClock(t)
	store := NewStore(DefaultConfig())
	store.Dispatch(LoadRegion{
		Items: []ServerItem{
			serverItem("p", "1,2:1", "parent"),
			serverItem("c", "1,2:1:3", "child"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      2,
	})
	before := *store.State()

	svc := &fakeMoveService{}
	swapper := NewSwapOrchestrator(store, svc)
	tileA, _ := TileByID(store.State(), "1,2:1")
	tileB, _ := TileByID(store.State(), "1,2:1:3")
	if err := swapper.Swap(context.Background(), SwapRequest{TileA: tileA, TileB: tileB}); !errors.Is(err, ErrNestedPosition) {
		t.Fatalf("Swap err = %v, want ErrNestedPosition", err)
	}
	if len(svc.swaps) != 0 {
		t.Fatal("nested swap must not reach the server")
	}
	if !reflect.DeepEqual(*store.State(), before) {
		t.Fatal("nested swap must leave the cache untouched")
	}
}

func TestValidateMoveCoordinatesUnparseable(t *testing.T) {
	if _, _, err := ValidateMoveCoordinates("garbage", "1,2:2"); err == nil {
		t.Fatal("unparseable source must be rejected")
	}
	if _, _, err := ValidateMoveCoordinates("1,2:1", "garbage"); err == nil {
		t.Fatal("unparseable destination must be rejected")
	}
}

func TestMoveRelocatesSubtree(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)
	sizeBefore := len(store.State().ItemsByID)

	svc := &fakeMoveService{}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")

	var completed bool
	err := mover.Move(context.Background(), MoveRequest{
		Tile:          tile,
		DestinationID: "1,2:2",
		OnComplete:    func() { completed = true },
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !completed {
		t.Fatal("OnComplete not invoked")
	}

	s := store.State()
	if len(s.ItemsByID) != sizeBefore {
		t.Fatalf("ItemsByID size = %d, want unchanged %d", len(s.ItemsByID), sizeBefore)
	}
	for _, gone := range []string{"1,2:1", "1,2:1:3", "1,2:1:3:5"} {
		if _, ok := s.ItemsByID[gone]; ok {
			t.Fatalf("stale entry %s remains after move", gone)
		}
	}
	for _, there := range []string{"1,2:2", "1,2:2:3", "1,2:2:3:5"} {
		tile, ok := s.ItemsByID[there]
		if !ok {
			t.Fatalf("missing entry %s after move", there)
		}
		if want := ColorFor(tile.Metadata.Coord); tile.Data.Color != want {
			t.Fatalf("tile %s carries stale color %q, want %q", there, tile.Data.Color, want)
		}
	}
	// Parent links follow the new paths.
	if got := s.ItemsByID["1,2:2:3"].Metadata.ParentID; got != "1,2:2" {
		t.Fatalf("migrated child parentId = %q, want 1,2:2", got)
	}
	if got := s.ItemsByID["1,2:2"].Metadata.DBID; got != "p" {
		t.Fatalf("dbId changed across move: %q", got)
	}
	if len(svc.moves) != 1 || svc.moves[0] != [2]string{"1,2:1", "1,2:2"} {
		t.Fatalf("server saw moves %v", svc.moves)
	}
}

func TestMoveWithOneChildScenario(t *testing.T) {
	fixedClock(t)
	store := NewStore(DefaultConfig())
	store.Dispatch(LoadRegion{
		Items: []ServerItem{
			serverItem("p", "1,2:1", "parent"),
			serverItem("c", "1,2:1:3", "child"),
		},
		CenterCoordID: "1,2",
		MaxDepth:      2,
	})

	mover := NewMoveOrchestrator(store, &fakeMoveService{})
	tile, _ := TileByID(store.State(), "1,2:1")
	if err := mover.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:2"}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	s := store.State()
	if _, ok := s.ItemsByID["1,2:1"]; ok {
		t.Fatal("old parent entry remains")
	}
	if _, ok := s.ItemsByID["1,2:1:3"]; ok {
		t.Fatal("old child entry remains")
	}
	p, ok := s.ItemsByID["1,2:2"]
	if !ok {
		t.Fatal("new parent entry missing")
	}
	c, ok := s.ItemsByID["1,2:2:3"]
	if !ok {
		t.Fatal("new child entry missing")
	}
	if p.Data.Color != ColorFor(p.Metadata.Coord) || c.Data.Color != ColorFor(c.Metadata.Coord) {
		t.Fatal("colors not recomputed from the new paths")
	}
}

func TestMoveRollbackOnServerFailure(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)
	before := *store.State()

	boom := errors.New("move rejected")
	svc := &fakeMoveService{moveErr: boom}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")

	var reported error
	err := mover.Move(context.Background(), MoveRequest{
		Tile:          tile,
		DestinationID: "1,2:2",
		OnError:       func(err error) { reported = err },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the server error", err)
	}
	if !errors.Is(reported, boom) {
		t.Fatalf("OnError got %v, want the server error", reported)
	}
	if !reflect.DeepEqual(*store.State(), before) {
		t.Fatal("state after rollback must be deep-equal to pre-move state")
	}
}

func TestMoveReconciliationUsesServerTruth(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)

	// Server redistributes the grandchild differently than the optimistic
	// guess: it lands at 1,2:2:6 instead of 1,2:2:3:5.
	svc := &fakeMoveService{moveResp: &MoveResponse{
		MovedItemID: "p",
		ModifiedItems: []ServerItem{
			serverItem("p", "1,2:2", "parent"),
			serverItem("c", "1,2:2:3", "child"),
			serverItem("g", "1,2:2:6", "grandchild"),
		},
	}}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")
	if err := mover.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:2"}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	s := store.State()
	if _, ok := s.ItemsByID["1,2:2:3:5"]; ok {
		t.Fatal("optimistic grandchild position must be superseded by server truth")
	}
	g, ok := s.ItemsByID["1,2:2:6"]
	if !ok {
		t.Fatal("server-confirmed grandchild position missing")
	}
	if g.Metadata.DBID != "g" {
		t.Fatalf("reconciled grandchild dbId = %q", g.Metadata.DBID)
	}
}

func TestMoveDelegatesToSwapOnOccupiedDestination(t *testing.T) {
	fixedClock(t)
	store := moveFixture(t)

	svc := &fakeMoveService{}
	mover := NewMoveOrchestrator(store, svc)
	tile, _ := TileByID(store.State(), "1,2:1")
	if err := mover.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:4"}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(svc.moves) != 0 {
		t.Fatal("occupied destination must not be sent as a move")
	}
	if len(svc.swaps) != 1 || svc.swaps[0] != [2]string{"1,2:1", "1,2:4"} {
		t.Fatalf("server saw swaps %v", svc.swaps)
	}
}

func TestMoveWithoutCacheDegradedMode(t *testing.T) {
	svc := &fakeMoveService{}
	mover := NewMoveOrchestrator(nil, svc)
	tile := Tile{Metadata: TileMetadata{CoordID: "1,2:1"}}

	var completed bool
	err := mover.Move(context.Background(), MoveRequest{
		Tile:          tile,
		DestinationID: "1,2:2",
		OnComplete:    func() { completed = true },
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !completed || len(svc.moves) != 1 {
		t.Fatal("degraded mode must still perform the server call and report completion")
	}

	// Errors still reach the caller in degraded mode.
	boom := errors.New("down")
	svc2 := &fakeMoveService{moveErr: boom}
	mover2 := NewMoveOrchestrator(nil, svc2)
	var reported error
	if err := mover2.Move(context.Background(), MoveRequest{Tile: tile, DestinationID: "1,2:2", OnError: func(e error) { reported = e }}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want server error", err)
	}
	if !errors.Is(reported, boom) {
		t.Fatal("degraded mode must report errors via the callback")
	}
}
