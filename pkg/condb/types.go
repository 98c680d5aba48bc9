package condb

// Package condb implements the client for the conditions-database HTTP
// service: payload IOV resolution, catalog listing, and the write-side
// calls used when pushing staged tags and payload intervals.

// PayloadIOV references one versioned payload file inside an IOV entry.
// PayloadURL is a pointer so an absent field is distinguishable from an
// empty string.
type PayloadIOV struct {
	PayloadURL *string `json:"payload_url"`
}

// IOVEntry is one element of the payloadiovs response array.
type IOVEntry struct {
	PayloadType string       `json:"payload_type"`
	PayloadIOV  []PayloadIOV `json:"payload_iov"`
}

// Result carries the resolved payload paths for one fetch together with
// transfer diagnostics.
type Result struct {
	Paths        []string
	ByteCount    int
	ResponseCode int
}

// CatalogEntry is an id/name record returned by the catalog endpoints.
// Every valid entry carries an id; the remaining fields depend on the
// component.
type CatalogEntry struct {
	ID      *int64   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Status  string   `json:"status,omitempty"`
	Domains []string `json:"domains,omitempty"`
}
