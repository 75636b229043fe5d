package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/hexframe/mapcache/cache"
)

// MutationHandler exposes write tools over the map cache: move, create,
// update, delete. Every tool goes through the optimistic cache path, so a
// server rejection leaves the cache as it was.
type MutationHandler struct {
	store     *cache.Store
	mover     *cache.MoveOrchestrator
	mutations *cache.MutationService
}

// NewMutationHandler creates a new mutation handler instance.
func NewMutationHandler(store *cache.Store, mover *cache.MoveOrchestrator, mutations *cache.MutationService) *MutationHandler {
	return &MutationHandler{store: store, mover: mover, mutations: mutations}
}

// RegisterTools registers all mutation tools with the MCP server.
func (h *MutationHandler) RegisterTools(s *server.MCPServer) error {
	moveTool := mcp.NewTool("move_item",
		mcp.WithDescription("Move a map item (with its whole subtree) to another coordinate. If the destination is occupied the two items are swapped instead."),
		mcp.WithString("source_coord_id", mcp.Required(), mcp.Description("Coordinate id of the item to move")),
		mcp.WithString("destination_coord_id", mcp.Required(), mcp.Description("Destination coordinate id")),
	)
	s.AddTool(moveTool, h.handleMove)

	createTool := mcp.NewTool("create_item",
		mcp.WithDescription("Create a new map item at an empty coordinate"),
		mcp.WithString("coord_id", mcp.Required(), mcp.Description("Coordinate id for the new item")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("url", mcp.Description("Optional URL")),
	)
	s.AddTool(createTool, h.handleCreate)

	updateTool := mcp.NewTool("update_item",
		mcp.WithDescription("Update a map item's name, description or URL"),
		mcp.WithString("coord_id", mcp.Required(), mcp.Description("Coordinate id of the item")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("url", mcp.Description("New URL")),
	)
	s.AddTool(updateTool, h.handleUpdate)

	deleteTool := mcp.NewTool("delete_item",
		mcp.WithDescription("CAUTION: Use ONLY after the human has explicitly confirmed the deletion. Deletes a map item and its whole subtree."),
		mcp.WithString("coord_id", mcp.Required(), mcp.Description("Coordinate id of the item to delete")),
	)
	s.AddTool(deleteTool, h.handleDelete)

	return nil
}

func (h *MutationHandler) handleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, _ := req.RequireString("source_coord_id")
	destID, _ := req.RequireString("destination_coord_id")

	tile, ok := cache.TileByID(h.store.State(), sourceID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no cached tile at %s", sourceID)), nil
	}

	start := time.Now()
	err := h.mover.Move(ctx, cache.MoveRequest{Tile: tile, DestinationID: destID})
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).
			Str("source", sourceID).
			Str("destination", destID).
			Dur("elapsed", elapsed).
			Msg("move_item failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to move item: %v", err)), nil
	}

	log.Debug().Str("source", sourceID).Str("destination", destID).Dur("elapsed", elapsed).Msg("move_item completed")
	return mcp.NewToolResultText(fmt.Sprintf("moved %s to %s", sourceID, destID)), nil
}

func (h *MutationHandler) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coordID, _ := req.RequireString("coord_id")
	name, _ := req.RequireString("name")
	payload := cache.CreatePayload{Name: name}
	if v, ok := req.GetArguments()["description"].(string); ok {
		payload.Description = v
	}
	if v, ok := req.GetArguments()["url"].(string); ok {
		payload.URL = v
	}

	item, err := h.mutations.CreateItem(ctx, coordID, payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create item: %v", err)), nil
	}
	b, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (h *MutationHandler) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coordID, _ := req.RequireString("coord_id")

	var payload cache.UpdatePayload
	if v, ok := req.GetArguments()["name"].(string); ok {
		payload.Name = &v
	}
	if v, ok := req.GetArguments()["description"].(string); ok {
		payload.Description = &v
	}
	if v, ok := req.GetArguments()["url"].(string); ok {
		payload.URL = &v
	}

	item, err := h.mutations.UpdateItem(ctx, coordID, payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update item: %v", err)), nil
	}
	b, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (h *MutationHandler) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coordID, _ := req.RequireString("coord_id")

	if err := h.mutations.DeleteItem(ctx, coordID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete item: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", coordID)), nil
}
