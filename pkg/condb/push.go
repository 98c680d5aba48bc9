package condb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/pkg/httpclient"
	"github.com/go-resty/resty/v2"
)

// Endpoints accepted for write calls. Anything else is rejected before a
// request is made.
var (
	postEndpoints = map[string]bool{
		"gttype":   true,
		"gtstatus": true,
		"gt":       true,
		"pt":       true,
		"pl":       true,
		"piov":     true,
		"pil":      true,
		"tag":      true,
	}
	putEndpoints = map[string]bool{
		"pl_attach":        true,
		"piov_attach":      true,
		"gt_change_status": true,
	}
)

// Pusher performs the write-side calls used when publishing staged tags and
// payload intervals to the service.
type Pusher struct {
	cfg    Config
	client *resty.Client
	log    logger.Logger
}

// NewPusher builds a Pusher. A nil resty client falls back to a transport
// with no timeout.
func NewPusher(cfg Config, client *resty.Client, log logger.Logger) *Pusher {
	if client == nil {
		client = httpclient.NewRestyHTTPClient(0)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Pusher{cfg: cfg, client: client, log: log}
}

// Post sends params as JSON to an allowlisted creation endpoint and returns
// the created record.
func (p *Pusher) Post(ctx context.Context, endpoint string, params map[string]any) (CatalogEntry, error) {
	if !postEndpoints[endpoint] {
		return CatalogEntry{}, fmt.Errorf("wrong POST endpoint %q", endpoint)
	}
	return p.write(ctx, http.MethodPost, endpoint, params)
}

// Put sends params as JSON to an allowlisted linking endpoint and returns
// the affected record.
func (p *Pusher) Put(ctx context.Context, endpoint string, params map[string]any) (CatalogEntry, error) {
	if !putEndpoints[endpoint] {
		return CatalogEntry{}, fmt.Errorf("wrong PUT endpoint %q", endpoint)
	}
	return p.write(ctx, http.MethodPut, endpoint, params)
}

func (p *Pusher) write(ctx context.Context, method, endpoint string, params map[string]any) (CatalogEntry, error) {
	u := p.cfg.URL() + "/" + endpoint
	p.log.DebugObj("writing to conditions database", "request", map[string]any{
		"method": method,
		"url":    u,
		"params": params,
	})

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Execute(method, u)
	if err != nil {
		return CatalogEntry{}, &TransportError{URL: u, Err: err}
	}
	if resp.IsError() {
		return CatalogEntry{}, &TransportError{URL: u, StatusCode: resp.StatusCode()}
	}

	var entry CatalogEntry
	if err := json.Unmarshal(resp.Body(), &entry); err != nil {
		return CatalogEntry{}, &DecodeError{URL: u, Err: err}
	}
	if entry.ID == nil {
		return CatalogEntry{}, &ShapeError{Index: 0, Field: "id"}
	}
	return entry, nil
}

// CreateTag creates a global tag and links each named domain list to it.
func (p *Pusher) CreateTag(ctx context.Context, name, tagType, status string, domains []string) (CatalogEntry, error) {
	entry, err := p.Post(ctx, "gt", map[string]any{
		"name":   name,
		"type":   tagType,
		"status": status,
	})
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("create tag %q: %w", name, err)
	}

	for _, domain := range domains {
		if _, err := p.Put(ctx, "pl_attach", map[string]any{
			"global_tag":   name,
			"payload_list": domain,
		}); err != nil {
			return CatalogEntry{}, fmt.Errorf("attach domain %q to tag %q: %w", domain, name, err)
		}
	}
	return entry, nil
}

// CreatePayloadIOV registers one payload file under a tag and domain with
// its validity interval. A nil end leaves the interval open.
func (p *Pusher) CreatePayloadIOV(ctx context.Context, tag, domain, payloadName string, start uint64, end *uint64) (CatalogEntry, error) {
	params := map[string]any{
		"payload_url": payloadName,
		"major_iov":   0,
		"minor_iov":   start,
	}
	if end != nil {
		params["minor_iov_end"] = *end
	}

	entry, err := p.Post(ctx, "piov", params)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("create payload iov %q: %w", payloadName, err)
	}

	if _, err := p.Put(ctx, "piov_attach", map[string]any{
		"piov_id":      *entry.ID,
		"global_tag":   tag,
		"payload_list": domain,
	}); err != nil {
		return CatalogEntry{}, fmt.Errorf("attach payload iov %q: %w", payloadName, err)
	}
	return entry, nil
}
