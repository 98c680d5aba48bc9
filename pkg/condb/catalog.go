package condb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calib-hub/condfetch/pkg/httpclient"
)

// Catalog components addressable through ListEntries.
const (
	ComponentTags    = "tags"
	ComponentDomains = "domains"
)

func componentEndpoint(component string) (string, error) {
	switch component {
	case ComponentTags:
		return "/gt", nil
	case ComponentDomains:
		return "/pt", nil
	}
	return "", fmt.Errorf("unknown catalog component %q", component)
}

// ListEntries fetches the catalog entries for a component. A non-nil id
// narrows the lookup to a single record. Non-list responses are wrapped
// into a one-entry list; every entry must carry an id.
func (c *Client) ListEntries(ctx context.Context, component string, id *int64) ([]CatalogEntry, error) {
	endpoint, err := componentEndpoint(component)
	if err != nil {
		return nil, err
	}

	u := c.cfg.URL() + endpoint
	if id != nil {
		u += "/" + strconv.FormatInt(*id, 10)
	}
	c.log.DebugObj("querying catalog", "url", u)

	resp, err := c.http.Get(ctx, u, map[string]string{"User-Agent": httpclient.TransportUserAgent()})
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{URL: u, StatusCode: resp.StatusCode()}
	}

	entries, err := decodeCatalogEntries(resp.Body())
	if err != nil {
		return nil, &DecodeError{URL: u, Err: err}
	}
	for i := range entries {
		if entries[i].ID == nil {
			return nil, &ShapeError{Index: i, Field: "id"}
		}
	}
	return entries, nil
}

// ListTags lists the global tags known to the service.
func (c *Client) ListTags(ctx context.Context) ([]CatalogEntry, error) {
	return c.ListEntries(ctx, ComponentTags, nil)
}

// ListDomains lists the payload domains known to the service.
func (c *Client) ListDomains(ctx context.Context) ([]CatalogEntry, error) {
	return c.ListEntries(ctx, ComponentDomains, nil)
}

// GetTag fetches one global tag record by id.
func (c *Client) GetTag(ctx context.Context, id int64) (CatalogEntry, error) {
	entries, err := c.ListEntries(ctx, ComponentTags, &id)
	if err != nil {
		return CatalogEntry{}, err
	}
	if len(entries) == 0 {
		return CatalogEntry{}, fmt.Errorf("tag %d not found", id)
	}
	return entries[0], nil
}

// GetDomain fetches one payload domain record by id.
func (c *Client) GetDomain(ctx context.Context, id int64) (CatalogEntry, error) {
	entries, err := c.ListEntries(ctx, ComponentDomains, &id)
	if err != nil {
		return CatalogEntry{}, err
	}
	if len(entries) == 0 {
		return CatalogEntry{}, fmt.Errorf("domain %d not found", id)
	}
	return entries[0], nil
}

func decodeCatalogEntries(body []byte) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	err := json.Unmarshal(body, &entries)
	if err == nil {
		return entries, nil
	}
	if isJSONArray(body) {
		return nil, err
	}
	var single CatalogEntry
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []CatalogEntry{single}, nil
}
