package condb

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/pkg/httpclient"
)

// Config supplies the connection parameters the client needs: the service
// base URL and the local prefix under which payload files live.
type Config interface {
	URL() string
	PathPrefix() string
}

// Client queries the conditions database over HTTP. A Client is stateless
// across calls and safe for concurrent use.
type Client struct {
	http httpclient.Client
	cfg  Config
	log  logger.Logger
}

// New builds a Client. A nil http client falls back to a resty transport
// with no timeout; a nil logger discards diagnostics.
func New(cfg Config, http httpclient.Client, log logger.Logger) *Client {
	if http == nil {
		http = httpclient.NewRestyClient(0)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Client{http: http, cfg: cfg, log: log}
}

// payloadIOVsURL builds the query endpoint for one tag and timestamp.
// majorIOV is always literal zero; the timestamp rides in minorIOV. Values
// are percent-encoded, and encoding preserves the gtName, majorIOV,
// minorIOV parameter order.
func (c *Client) payloadIOVsURL(tag string, timestamp uint64) string {
	q := url.Values{}
	q.Set("gtName", tag)
	q.Set("majorIOV", "0")
	q.Set("minorIOV", strconv.FormatUint(timestamp, 10))
	return c.cfg.URL() + "/payloadiovs/?" + q.Encode()
}

// FetchEntries retrieves and decodes the IOV entries valid for tag at
// timestamp. A non-empty domain keeps only entries whose payload_type
// matches it. The returned Result carries body size and HTTP status even
// when err is set; its Paths are left empty.
func (c *Client) FetchEntries(ctx context.Context, tag, domain string, timestamp uint64) ([]IOVEntry, Result, error) {
	u := c.payloadIOVsURL(tag, timestamp)
	c.log.InfoObj("querying payload iovs", "url", u)

	resp, err := c.http.Get(ctx, u, map[string]string{"User-Agent": httpclient.TransportUserAgent()})
	if err != nil {
		return nil, Result{}, &TransportError{URL: u, Err: err}
	}

	res := Result{ByteCount: len(resp.Body()), ResponseCode: resp.StatusCode()}
	if resp.IsError() {
		return nil, res, &TransportError{URL: u, StatusCode: resp.StatusCode()}
	}

	entries, err := decodeIOVEntries(resp.Body())
	if err != nil {
		return nil, res, &DecodeError{URL: u, Err: err}
	}

	if domain != "" {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.PayloadType == domain {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}
	return entries, res, nil
}

// FetchResult resolves the payload paths valid for tag at timestamp, one
// per IOV entry in response order, each formed as prefix + "/" +
// payload_url. An entry without the expected nested shape fails the whole
// call; no partial path list is surfaced.
func (c *Client) FetchResult(ctx context.Context, tag, domain string, timestamp uint64) (Result, error) {
	entries, res, err := c.FetchEntries(ctx, tag, domain, timestamp)
	if err != nil {
		return res, err
	}

	prefix := c.cfg.PathPrefix()
	paths := make([]string, 0, len(entries))
	for i, entry := range entries {
		if len(entry.PayloadIOV) == 0 {
			return res, &ShapeError{Index: i, Field: "payload_iov"}
		}
		if entry.PayloadIOV[0].PayloadURL == nil {
			return res, &ShapeError{Index: i, Field: "payload_iov[0].payload_url"}
		}
		paths = append(paths, prefix+"/"+*entry.PayloadIOV[0].PayloadURL)
	}
	res.Paths = paths
	return res, nil
}

// Fetch is the compatibility surface: every failure mode collapses to an
// empty path list, with the cause reported through the logger only.
func (c *Client) Fetch(ctx context.Context, tag string, timestamp uint64) []string {
	res, err := c.FetchResult(ctx, tag, "", timestamp)
	if err != nil {
		c.log.ErrorObj("payload iov fetch failed", "error", err)
		return nil
	}
	return res.Paths
}

// decodeIOVEntries parses the body as a list of IOV entries. A single
// top-level object is wrapped into a one-entry list. When the body is an
// array, its decode error is the one reported; the single-object fallback
// only applies to non-array bodies.
func decodeIOVEntries(body []byte) ([]IOVEntry, error) {
	var entries []IOVEntry
	err := json.Unmarshal(body, &entries)
	if err == nil {
		return entries, nil
	}
	if isJSONArray(body) {
		return nil, err
	}
	var single IOVEntry
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []IOVEntry{single}, nil
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
