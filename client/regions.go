package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"

	"github.com/hexframe/mapcache/cache"
)

// Region read operations - all methods operate directly on Client

// regionResponse mirrors the backend region fetch shape.
type regionResponse struct {
	Items []cache.ServerItem `json:"items"`
	Count int                `json:"count"`
}

// FetchRegion retrieves every item within maxDepth generations of the center
// coordinate. Raw items still require adaptation before entering the cache.
func (c *Client) FetchRegion(ctx context.Context, centerCoordID string, maxDepth int) ([]cache.ServerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/regions/%s?maxDepth=%d", c.baseURL, url.PathEscape(centerCoordID), maxDepth)
	return c.fetchItems(ctx, u, "fetch region")
}

// FetchItemChildren retrieves the children of one parent item, maxDepth
// levels deep.
func (c *Client) FetchItemChildren(ctx context.Context, parentCoordID string, maxDepth int) ([]cache.ServerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/map/items/%s/children?maxDepth=%d", c.baseURL, url.PathEscape(parentCoordID), maxDepth)
	return c.fetchItems(ctx, u, "fetch children")
}

func (c *Client) fetchItems(ctx context.Context, url, what string) ([]cache.ServerItem, error) {
	op := func() ([]cache.ServerItem, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%s: status %d", what, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		var rr regionResponse
		if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
			return nil, backoff.Permanent(err)
		}
		return rr.Items, nil
	}

	if c.retryMaxElapsed <= 0 {
		return op()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryMaxElapsed
	return backoff.RetryWithData(op, backoff.WithContext(bo, ctx))
}
