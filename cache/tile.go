package cache

import (
	"fmt"

	"github.com/hexframe/mapcache/hexcoord"
	"github.com/rs/zerolog/log"
)

// ------------------------------
// Tile domain types
// ------------------------------

// TileMetadata is the identifying half of a cached map item. CoordID is the
// cache primary key; DBID is the server identity and survives moves.
type TileMetadata struct {
	CoordID  string         `json:"coordId"`
	DBID     string         `json:"dbId"`
	Coord    hexcoord.Coord `json:"coordinates"`
	ParentID string         `json:"parentId,omitempty"`
	Depth    int            `json:"depth"`
	OwnerID  string         `json:"ownerId"`
}

// TileData holds the user-visible content. Color is derived from the tile's
// coordinates and must be recomputed whenever the coordinates change.
type TileData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Color       string `json:"color"`
}

// TileState carries transient UI flags. It is never authoritative and is
// excluded from the comparisons that drive cache-hit decisions.
type TileState struct {
	IsDragged  bool `json:"isDragged"`
	IsHovered  bool `json:"isHovered"`
	IsSelected bool `json:"isSelected"`
	IsExpanded bool `json:"isExpanded"`
}

// Tile is one cached map item.
type Tile struct {
	Metadata TileMetadata `json:"metadata"`
	Data     TileData     `json:"data"`
	State    TileState    `json:"state"`
}

// ServerItem is the wire shape of a map item as the map service returns it,
// from both region fetches and mutation confirmations.
type ServerItem struct {
	ID       string `json:"id"`
	Coords   string `json:"coords"`
	Depth    int    `json:"depth"`
	Name     string `json:"name"`
	Descr    string `json:"descr"`
	URL      string `json:"url"`
	ParentID string `json:"parentId,omitempty"`
	OwnerID  string `json:"ownerId"`
}

// MoveResponse is the map service's answer to a move mutation. ModifiedItems
// carries the server-canonical versions of every item the move touched.
type MoveResponse struct {
	MovedItemID   string       `json:"movedItemId"`
	ModifiedItems []ServerItem `json:"modifiedItems"`
}

// SwapResponse is the map service's answer to a swap mutation.
type SwapResponse struct {
	SwappedItems []ServerItem `json:"swappedItems"`
}

// ------------------------------
// Color derivation
// ------------------------------

var directionColors = map[hexcoord.Direction]string{
	hexcoord.Center:    "zinc",
	hexcoord.NorthWest: "amber",
	hexcoord.NorthEast: "green",
	hexcoord.East:      "cyan",
	hexcoord.SouthEast: "indigo",
	hexcoord.SouthWest: "purple",
	hexcoord.West:      "rose",
}

var depthTints = []int{100, 200, 300, 400, 500, 600, 700, 800, 900}

// ColorFor derives a tile's color from its coordinates: the final direction
// step picks the hue, the depth cycles through the tint scale. Roots are
// neutral. The function is pure; equal coords always yield equal colors.
func ColorFor(c hexcoord.Coord) string {
	if c.IsRoot() {
		return "zinc-50"
	}
	last := c.Path[len(c.Path)-1]
	tint := depthTints[(c.Depth()-1)%len(depthTints)]
	return fmt.Sprintf("%s-%d", directionColors[last], tint)
}

// ------------------------------
// Adaptation
// ------------------------------

// AdaptItem converts a raw server item into a Tile, parsing its coordinate
// and deriving color, depth and parent id.
func AdaptItem(item ServerItem) (Tile, error) {
	coord, err := hexcoord.Parse(item.Coords)
	if err != nil {
		return Tile{}, fmt.Errorf("adapt item %s: %w", item.ID, err)
	}
	var parentID string
	if p, ok := coord.Parent(); ok {
		parentID = p.String()
	}
	return Tile{
		Metadata: TileMetadata{
			CoordID:  coord.String(),
			DBID:     item.ID,
			Coord:    coord,
			ParentID: parentID,
			Depth:    coord.Depth(),
			OwnerID:  item.OwnerID,
		},
		Data: TileData{
			Name:        item.Name,
			Description: item.Descr,
			URL:         item.URL,
			Color:       ColorFor(coord),
		},
	}, nil
}

// adaptBatch converts a load batch, dropping malformed items and items whose
// path carries the center sentinel. A single bad item never aborts the batch.
func adaptBatch(items []ServerItem) []Tile {
	tiles := make([]Tile, 0, len(items))
	for _, item := range items {
		tile, err := AdaptItem(item)
		if err != nil {
			log.Warn().Err(err).Str("item_id", item.ID).Msg("dropping unadaptable item from load batch")
			continue
		}
		if tile.Metadata.Coord.ContainsCenter() {
			log.Warn().Str("coord_id", tile.Metadata.CoordID).Msg("dropping item with center sentinel in path")
			continue
		}
		tiles = append(tiles, tile)
	}
	return tiles
}

// relocated returns a copy of t re-addressed to coord, with CoordID,
// ParentID, Depth and Color all recomputed. DBID and content are preserved.
func relocated(t Tile, coord hexcoord.Coord) Tile {
	out := t
	out.Metadata.CoordID = coord.String()
	out.Metadata.Coord = coord
	out.Metadata.Depth = coord.Depth()
	out.Metadata.ParentID = ""
	if p, ok := coord.Parent(); ok {
		out.Metadata.ParentID = p.String()
	}
	out.Data.Color = ColorFor(coord)
	return out
}
