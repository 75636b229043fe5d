package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hexframe/mapcache/hexcoord"
)

// ErrSamePosition rejects a move whose source and destination are the same
// canonical coordinate.
var ErrSamePosition = errors.New("cannot move item to the same position")

// ErrNestedPosition rejects a move or swap between a coordinate and its own
// descendant. Relocating a subtree into itself has no consistent outcome: the
// destination key would live inside the very subtree being re-rooted.
var ErrNestedPosition = errors.New("cannot move item within its own subtree")

// MoveService is the server side of move and swap mutations.
type MoveService interface {
	MoveMapItem(ctx context.Context, oldCoords, newCoords string) (*MoveResponse, error)
	SwapMapItems(ctx context.Context, coordsA, coordsB string) (*SwapResponse, error)
}

// OperationType classifies a requested relocation.
type OperationType string

const (
	OpMove OperationType = "move"
	OpSwap OperationType = "swap"
)

// MoveOperation is the result of occupancy detection for a requested move.
// TargetTile is set only for swaps.
type MoveOperation struct {
	Type        OperationType
	Source      hexcoord.Coord
	Destination hexcoord.Coord
	TargetTile  *Tile
}

// ValidateMoveCoordinates parses both ids and rejects same-position moves and
// moves between a coordinate and its own descendant. It runs before any
// optimistic mutation, so a validation failure leaves the cache untouched.
func ValidateMoveCoordinates(sourceID, destinationID string) (src, dst hexcoord.Coord, err error) {
	src, err = hexcoord.Parse(sourceID)
	if err != nil {
		return src, dst, fmt.Errorf("invalid source coordinate: %w", err)
	}
	dst, err = hexcoord.Parse(destinationID)
	if err != nil {
		return src, dst, fmt.Errorf("invalid destination coordinate: %w", err)
	}
	if src.Equal(dst) {
		return src, dst, ErrSamePosition
	}
	if src.IsAncestorOf(dst) || dst.IsAncestorOf(src) {
		return src, dst, ErrNestedPosition
	}
	return src, dst, nil
}

// DetectMoveOperation validates the coordinates and classifies the request:
// an occupied destination makes it a swap, an empty one a plain move. A move
// onto an occupied cell is never a silent overwrite.
func DetectMoveOperation(s *State, sourceID, destinationID string) (MoveOperation, error) {
	src, dst, err := ValidateMoveCoordinates(sourceID, destinationID)
	if err != nil {
		return MoveOperation{}, err
	}
	op := MoveOperation{Type: OpMove, Source: src, Destination: dst}
	if target, ok := TileByID(s, destinationID); ok {
		op.Type = OpSwap
		op.TargetTile = &target
	}
	return op, nil
}

// MoveRequest carries one relocation request into the orchestrator.
type MoveRequest struct {
	Tile          Tile
	DestinationID string
	OnComplete    func()
	OnError       func(error)
}

// MoveOrchestrator coordinates optimistic relocation of a tile and its
// descendant subtree against the map service. A nil store degrades to a
// server-only call: no optimistic phase, no rollback, errors still reported.
type MoveOrchestrator struct {
	store   *Store
	service MoveService
}

// NewMoveOrchestrator wires an orchestrator. store may be nil.
func NewMoveOrchestrator(store *Store, service MoveService) *MoveOrchestrator {
	return &MoveOrchestrator{store: store, service: service}
}

// Move relocates req.Tile to req.DestinationID. An occupied destination is
// delegated to Swap with full equivalence.
func (o *MoveOrchestrator) Move(ctx context.Context, req MoveRequest) error {
	sourceID := req.Tile.Metadata.CoordID

	var state *State
	if o.store != nil {
		state = o.store.State()
	} else {
		state = &State{}
	}

	op, err := DetectMoveOperation(state, sourceID, req.DestinationID)
	if err != nil {
		moveOpsTotal.WithLabelValues(string(OpMove), "rejected").Inc()
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}

	if op.Type == OpSwap {
		swapper := NewSwapOrchestrator(o.store, o.service)
		return swapper.Swap(ctx, SwapRequest{
			TileA:      req.Tile,
			TileB:      *op.TargetTile,
			OnComplete: req.OnComplete,
			OnError:    req.OnError,
		})
	}

	if o.store == nil {
		return o.moveWithoutCache(ctx, sourceID, req)
	}

	// Compute the relocation from the pre-move state: the moving tile plus
	// its entire descendant subtree, each re-rooted under the destination.
	// Deep descendants migrate here too; relying on a per-level re-query
	// after the parent key moves would find nothing.
	removals, upserts, err := relocateSubtree(req.Tile, o.store.Descendants(op.Source.String()), op.Source, op.Destination)
	if err != nil {
		moveOpsTotal.WithLabelValues(string(OpMove), "rejected").Inc()
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}

	_, err = ExecuteOptimistic(ctx, OptimisticOp[*State, *MoveResponse]{
		CaptureState: o.store.Snapshot,
		Rollback:     o.store.Restore,
		OptimisticUpdate: func() {
			o.store.UpdateCache(func(s *State) *State {
				return withTileChanges(s, removals, upserts)
			})
		},
		ServerOperation: func(ctx context.Context) (*MoveResponse, error) {
			return o.service.MoveMapItem(ctx, sourceID, req.DestinationID)
		},
		OnSuccess: func(resp *MoveResponse) {
			o.store.UpdateCache(func(s *State) *State {
				return reconcileModifiedItems(s, resp.ModifiedItems)
			})
			moveOpsTotal.WithLabelValues(string(OpMove), "success").Inc()
			if req.OnComplete != nil {
				req.OnComplete()
			}
		},
		OnError: func(err error) {
			moveOpsTotal.WithLabelValues(string(OpMove), "failure").Inc()
			log.Error().Err(err).
				Str("source", sourceID).
				Str("destination", req.DestinationID).
				Msg("move failed, cache rolled back")
			if req.OnError != nil {
				req.OnError(err)
			}
		},
	})
	return err
}

func (o *MoveOrchestrator) moveWithoutCache(ctx context.Context, sourceID string, req MoveRequest) error {
	_, err := o.service.MoveMapItem(ctx, sourceID, req.DestinationID)
	if err != nil {
		moveOpsTotal.WithLabelValues(string(OpMove), "failure").Inc()
		log.Error().Err(err).
			Str("source", sourceID).
			Str("destination", req.DestinationID).
			Msg("move failed (no cache configured)")
		if req.OnError != nil {
			req.OnError(err)
		}
		return err
	}
	moveOpsTotal.WithLabelValues(string(OpMove), "success").Inc()
	if req.OnComplete != nil {
		req.OnComplete()
	}
	return nil
}

// relocateSubtree computes the single-transition key changes that move tile
// (rooted at src) and every cached descendant to dst.
func relocateSubtree(tile Tile, descendants []Tile, src, dst hexcoord.Coord) (removals []string, upserts []Tile, err error) {
	removals = append(removals, tile.Metadata.CoordID)
	upserts = append(upserts, relocated(tile, dst))

	for _, desc := range descendants {
		newCoord, err := hexcoord.Rebase(desc.Metadata.Coord, src, dst)
		if err != nil {
			return nil, nil, err
		}
		removals = append(removals, desc.Metadata.CoordID)
		upserts = append(upserts, relocated(desc, newCoord))
	}
	return removals, upserts, nil
}

// reconcileModifiedItems replaces optimistic guesses with server ground
// truth: every cached tile whose dbId matches a modified item is removed,
// then the server-confirmed versions are inserted at their confirmed
// coordinates. Items the server reports but the cache cannot adapt are
// dropped, batch-load style.
func reconcileModifiedItems(s *State, modified []ServerItem) *State {
	if len(modified) == 0 {
		return s
	}
	confirmed := make(map[string]bool, len(modified))
	for _, item := range modified {
		confirmed[item.ID] = true
	}

	var removals []string
	for coordID, t := range s.ItemsByID {
		if confirmed[t.Metadata.DBID] {
			removals = append(removals, coordID)
		}
	}
	upserts := adaptBatch(modified)
	return withTileChanges(s, removals, upserts)
}
