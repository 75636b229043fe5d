package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hexframe/mapcache/hexcoord"
)

// SwapRequest carries a two-tile exchange into the orchestrator. Both tiles
// are known to exist; swap is only reachable once occupancy is confirmed.
type SwapRequest struct {
	TileA      Tile
	TileB      Tile
	OnComplete func()
	OnError    func(error)
}

// SwapOrchestrator exchanges two tiles' positions, including both descendant
// subtrees, with the same rollback protection as moves. A nil store degrades
// to a server-only call.
type SwapOrchestrator struct {
	store   *Store
	service MoveService
}

// NewSwapOrchestrator wires an orchestrator. store may be nil.
func NewSwapOrchestrator(store *Store, service MoveService) *SwapOrchestrator {
	return &SwapOrchestrator{store: store, service: service}
}

// Swap exchanges TileA and TileB.
func (o *SwapOrchestrator) Swap(ctx context.Context, req SwapRequest) error {
	idA := req.TileA.Metadata.CoordID
	idB := req.TileB.Metadata.CoordID

	coordA := req.TileA.Metadata.Coord
	coordB := req.TileB.Metadata.Coord
	if !coordA.SameTree(coordB) {
		err := fmt.Errorf("cannot swap across trees: %s and %s", idA, idB)
		moveOpsTotal.WithLabelValues(string(OpSwap), "rejected").Inc()
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}
	if coordA.IsAncestorOf(coordB) || coordB.IsAncestorOf(coordA) {
		err := fmt.Errorf("%w: %s and %s", ErrNestedPosition, idA, idB)
		moveOpsTotal.WithLabelValues(string(OpSwap), "rejected").Inc()
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}

	if o.store == nil {
		return o.swapWithoutCache(ctx, idA, idB, req)
	}

	// Both descendant sets must come from the pre-swap snapshot: once the
	// parent keys move, a children query keyed by the old path prefix finds
	// nothing.
	removals, upserts, err := swapSubtrees(req.TileA, req.TileB, o.store.Descendants(idA), o.store.Descendants(idB))
	if err != nil {
		moveOpsTotal.WithLabelValues(string(OpSwap), "rejected").Inc()
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}

	_, err = ExecuteOptimistic(ctx, OptimisticOp[*State, *SwapResponse]{
		CaptureState: o.store.Snapshot,
		Rollback:     o.store.Restore,
		OptimisticUpdate: func() {
			o.store.UpdateCache(func(s *State) *State {
				return withTileChanges(s, removals, upserts)
			})
		},
		ServerOperation: func(ctx context.Context) (*SwapResponse, error) {
			return o.service.SwapMapItems(ctx, idA, idB)
		},
		OnSuccess: func(resp *SwapResponse) {
			o.store.UpdateCache(func(s *State) *State {
				return reconcileSwappedItems(s, resp.SwappedItems)
			})
			moveOpsTotal.WithLabelValues(string(OpSwap), "success").Inc()
			if req.OnComplete != nil {
				req.OnComplete()
			}
		},
		OnError: func(err error) {
			moveOpsTotal.WithLabelValues(string(OpSwap), "failure").Inc()
			log.Error().Err(err).
				Str("tile_a", idA).
				Str("tile_b", idB).
				Msg("swap failed, cache rolled back")
			if req.OnError != nil {
				req.OnError(err)
			}
		},
	})
	return err
}

func (o *SwapOrchestrator) swapWithoutCache(ctx context.Context, idA, idB string, req SwapRequest) error {
	_, err := o.service.SwapMapItems(ctx, idA, idB)
	if err != nil {
		moveOpsTotal.WithLabelValues(string(OpSwap), "failure").Inc()
		log.Error().Err(err).
			Str("tile_a", idA).
			Str("tile_b", idB).
			Msg("swap failed (no cache configured)")
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}
	moveOpsTotal.WithLabelValues(string(OpSwap), "success").Inc()
	if req.OnComplete != nil {
		req.OnComplete()
	}
	return nil
}

// swapSubtrees computes the one-transition key changes that exchange a and b
// and re-root each side's descendants under the other's old position.
func swapSubtrees(a, b Tile, descA, descB []Tile) (removals []string, upserts []Tile, err error) {
	coordA := a.Metadata.Coord
	coordB := b.Metadata.Coord

	removals = append(removals, a.Metadata.CoordID, b.Metadata.CoordID)
	upserts = append(upserts, relocated(a, coordB), relocated(b, coordA))

	for _, desc := range descA {
		newCoord, err := hexcoord.Rebase(desc.Metadata.Coord, coordA, coordB)
		if err != nil {
			return nil, nil, err
		}
		removals = append(removals, desc.Metadata.CoordID)
		upserts = append(upserts, relocated(desc, newCoord))
	}
	for _, desc := range descB {
		newCoord, err := hexcoord.Rebase(desc.Metadata.Coord, coordB, coordA)
		if err != nil {
			return nil, nil, err
		}
		removals = append(removals, desc.Metadata.CoordID)
		upserts = append(upserts, relocated(desc, newCoord))
	}
	return removals, upserts, nil
}

// reconcileSwappedItems patches local tiles with server-confirmed positions,
// matching by dbId and touching only tiles whose coordinates actually
// changed. Confirmations with no matching local tile are discarded; unlike
// move reconciliation, swap never inserts new tiles.
func reconcileSwappedItems(s *State, swapped []ServerItem) *State {
	byDBID := make(map[string]Tile, len(s.ItemsByID))
	for _, t := range s.ItemsByID {
		byDBID[t.Metadata.DBID] = t
	}

	var removals []string
	var upserts []Tile
	for _, item := range swapped {
		local, ok := byDBID[item.ID]
		if !ok {
			log.Debug().Str("db_id", item.ID).Msg("discarding swap confirmation for unknown tile")
			continue
		}
		coord, err := hexcoord.Parse(item.Coords)
		if err != nil {
			log.Warn().Err(err).Str("db_id", item.ID).Msg("discarding swap confirmation with bad coords")
			continue
		}
		if local.Metadata.Coord.Equal(coord) {
			continue
		}
		removals = append(removals, local.Metadata.CoordID)
		upserts = append(upserts, relocated(local, coord))
	}
	if len(removals) == 0 && len(upserts) == 0 {
		return s
	}
	return withTileChanges(s, removals, upserts)
}
