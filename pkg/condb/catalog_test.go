package condb

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestListTags(t *testing.T) {
	body := `[{"id": 1, "name": "Tag_17"}, {"id": 2, "name": "Tag_18"}]`
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"},
		mockHTTPClient{t: t, expectURL: "http://db.example/api/gt", body: body}, nil)

	entries, err := client.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "Tag_17" || *entries[0].ID != 1 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestListDomainsEndpoint(t *testing.T) {
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"},
		mockHTTPClient{t: t, expectURL: "http://db.example/api/pt", body: `[]`}, nil)

	entries, err := client.ListDomains(context.Background())
	if err != nil {
		t.Fatalf("ListDomains returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestGetTagByID(t *testing.T) {
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"},
		mockHTTPClient{t: t, expectURL: "http://db.example/api/gt/7", body: `{"id": 7, "name": "Tag_19"}`}, nil)

	entry, err := client.GetTag(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetTag returned error: %v", err)
	}
	if entry.Name != "Tag_19" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestListEntriesRejectsMissingID(t *testing.T) {
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"},
		mockHTTPClient{t: t, body: `[{"name": "Tag_17"}]`}, nil)

	_, err := client.ListTags(context.Background())
	var serr *ShapeError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ShapeError for missing id, got %v", err)
	}
}

func TestListEntriesUnknownComponent(t *testing.T) {
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"}, mockHTTPClient{t: t}, nil)

	if _, err := client.ListEntries(context.Background(), "payloads", nil); err == nil {
		t.Fatalf("expected error for unknown component, got nil")
	}
}

func TestListEntriesTransportError(t *testing.T) {
	client := New(staticConfig{url: "http://db.example/api", prefix: "/p"},
		mockHTTPClient{t: t, status: http.StatusBadGateway, body: "bad gateway"}, nil)

	_, err := client.ListTags(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
