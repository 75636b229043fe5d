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

// MapHandler exposes read and navigation tools over the map cache.
type MapHandler struct {
	store *cache.Store
	nav   *cache.NavigationService
}

// NewMapHandler creates a new map handler instance.
func NewMapHandler(store *cache.Store, nav *cache.NavigationService) *MapHandler {
	return &MapHandler{store: store, nav: nav}
}

// RegisterTools registers all map read/navigation tools with the MCP server.
func (mh *MapHandler) RegisterTools(s *server.MCPServer) error {
	getTile := mcp.NewTool("get_tile",
		mcp.WithDescription("Get one cached map tile by its coordinate id (e.g. \"1,2:1:3\")"),
		mcp.WithString("coord_id", mcp.Required(), mcp.Description("Canonical coordinate id")),
	)
	s.AddTool(getTile, mh.handleGetTile)

	getRegion := mcp.NewTool("get_region",
		mcp.WithDescription("List the cached tiles of the region rooted at a center coordinate"),
		mcp.WithString("center_coord_id", mcp.Required(), mcp.Description("Center coordinate id")),
		mcp.WithNumber("max_depth", mcp.Description("Generations below the center to include (default: cache config)")),
	)
	s.AddTool(getRegion, mh.handleGetRegion)

	navigate := mcp.NewTool("navigate",
		mcp.WithDescription("Recenter the map on a coordinate, fetching the region from the map service if it is missing or stale"),
		mcp.WithString("coord_id", mcp.Required(), mcp.Description("Coordinate id to center on")),
	)
	s.AddTool(navigate, mh.handleNavigate)

	return nil
}

func (mh *MapHandler) handleGetTile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coordID, _ := req.RequireString("coord_id")

	tile, ok := cache.TileByID(mh.store.State(), coordID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no cached tile at %s", coordID)), nil
	}
	b, _ := json.MarshalIndent(tile, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (mh *MapHandler) handleGetRegion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	centerID, _ := req.RequireString("center_coord_id")

	state := mh.store.State()
	depth := state.CacheConfig.MaxDepth
	if v, ok := req.GetArguments()["max_depth"].(float64); ok && v >= 0 {
		depth = int(v)
	}

	tiles := cache.RegionItems(state, centerID, depth)
	payload := map[string]interface{}{
		"items": tiles,
		"count": len(tiles),
		"fresh": cache.RegionLoadedAndFresh(state, centerID, depth),
	}
	b, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (mh *MapHandler) handleNavigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coordID, _ := req.RequireString("coord_id")

	start := time.Now()
	err := mh.nav.NavigateTo(ctx, coordID)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).Str("coord_id", coordID).Dur("elapsed", elapsed).Msg("navigate failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to navigate: %v", err)), nil
	}

	log.Debug().Str("coord_id", coordID).Dur("elapsed", elapsed).Msg("navigate completed")
	return mcp.NewToolResultText(fmt.Sprintf("centered on %s", coordID)), nil
}
