package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hexframe/mapcache/cache"
)

// Map item mutations - all methods operate directly on Client.
// Mutations are never retried here; failure handling (rollback, error
// surfacing) belongs to the cache orchestrators.

type moveRequest struct {
	OldCoords string `json:"oldCoords"`
	NewCoords string `json:"newCoords"`
}

type swapRequest struct {
	CoordsA string `json:"coordsA"`
	CoordsB string `json:"coordsB"`
}

type createItemRequest struct {
	Coords string `json:"coords"`
	cache.CreatePayload
}

// MoveMapItem relocates the item at oldCoords to newCoords. The response
// lists every item the server touched, in server-canonical form.
func (c *Client) MoveMapItem(ctx context.Context, oldCoords, newCoords string) (*cache.MoveResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, ErrReadOnly
	}
	body, err := json.Marshal(moveRequest{OldCoords: oldCoords, NewCoords: newCoords})
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/items/move", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("move item: status %d", resp.StatusCode)
	}
	var mr cache.MoveResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// SwapMapItems exchanges the items at coordsA and coordsB.
func (c *Client) SwapMapItems(ctx context.Context, coordsA, coordsB string) (*cache.SwapResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, ErrReadOnly
	}
	body, err := json.Marshal(swapRequest{CoordsA: coordsA, CoordsB: coordsB})
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/items/swap", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap items: status %d", resp.StatusCode)
	}
	var sr cache.SwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// CreateItem creates a new item at coords.
func (c *Client) CreateItem(ctx context.Context, coords string, payload cache.CreatePayload) (*cache.ServerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, ErrReadOnly
	}
	body, err := json.Marshal(createItemRequest{Coords: coords, CreatePayload: payload})
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/items", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create item: status %d", resp.StatusCode)
	}
	var item cache.ServerItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem patches the item at coords with the non-nil payload fields.
func (c *Client) UpdateItem(ctx context.Context, coords string, payload cache.UpdatePayload) (*cache.ServerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, ErrReadOnly
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/items/%s", c.baseURL, url.PathEscape(coords))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update item: status %d", resp.StatusCode)
	}
	var item cache.ServerItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem deletes the item at coords. Expected status 204 No Content.
func (c *Client) DeleteItem(ctx context.Context, coords string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.readOnly {
		return ErrReadOnly
	}
	u := fmt.Sprintf("%s/api/map/items/%s", c.baseURL, url.PathEscape(coords))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete item: status %d", resp.StatusCode)
	}
	return nil
}
