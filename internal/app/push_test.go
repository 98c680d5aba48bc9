package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/calib-hub/condfetch/internal/staging"
	"github.com/calib-hub/condfetch/pkg/condb"
	"github.com/calib-hub/condfetch/pkg/httpclient"
	"github.com/calib-hub/condfetch/pkg/payload"
)

// memStage is an in-memory staging.Store for push tests.
type memStage struct {
	tags      []staging.TagEntry
	intervals []staging.IntervalEntry
}

func (m *memStage) Close() error { return nil }
func (m *memStage) StageTag(entry staging.TagEntry) error {
	m.tags = append(m.tags, entry)
	return nil
}
func (m *memStage) StageInterval(tag, domain string, p staging.PayloadRecord) error {
	m.intervals = append(m.intervals, staging.IntervalEntry{Tag: tag, Domain: domain, Payloads: []staging.PayloadRecord{p}})
	return nil
}
func (m *memStage) Tags() ([]staging.TagEntry, error)           { return m.tags, nil }
func (m *memStage) Intervals() ([]staging.IntervalEntry, error) { return m.intervals, nil }
func (m *memStage) ClearTags() error                            { m.tags = nil; return nil }
func (m *memStage) ClearIntervals() error                       { m.intervals = nil; return nil }

type pushConfig struct{ url, prefix string }

func (c pushConfig) URL() string        { return c.url }
func (c pushConfig) PathPrefix() string { return c.prefix }

func writeServer(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" "+r.URL.Path)
		fmt.Fprint(w, `{"id": 1}`)
	}))
}

func TestPushPublishesTagsAndIntervals(t *testing.T) {
	var calls []string
	srv := writeServer(t, &calls)
	defer srv.Close()

	prefix := t.TempDir()
	src := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(src, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	stage := &memStage{}
	if err := stage.StageTag(staging.TagEntry{Name: "Tag_17", Type: "online", Status: "unlocked", Domains: []string{"Domain_5"}}); err != nil {
		t.Fatalf("stage tag: %v", err)
	}
	if err := stage.StageInterval("Tag_17", "Domain_5", staging.PayloadRecord{Path: src, Start: 300}); err != nil {
		t.Fatalf("stage interval: %v", err)
	}

	writer := condb.NewPusher(pushConfig{url: srv.URL, prefix: prefix}, httpclient.NewRestyHTTPClient(0), nil)
	pusher, err := NewPusher(stage, writer, payload.NewResolver([]string{prefix}), nil)
	if err != nil {
		t.Fatalf("NewPusher: %v", err)
	}

	if err := pusher.Push(context.Background(), false); err != nil {
		t.Fatalf("Push: %v", err)
	}

	want := []string{"POST /gt", "PUT /pl_attach", "POST /piov", "PUT /piov_attach"}
	if len(calls) != len(want) {
		t.Fatalf("unexpected call sequence %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}

	if len(stage.tags) != 0 || len(stage.intervals) != 0 {
		t.Fatalf("expected stage cleared after push")
	}

	entries, err := os.ReadDir(filepath.Join(prefix, "Domain_5"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one installed payload, err=%v entries=%v", err, entries)
	}
}

func TestPushDryRunTouchesNothing(t *testing.T) {
	var calls []string
	srv := writeServer(t, &calls)
	defer srv.Close()

	prefix := t.TempDir()
	src := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(src, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	stage := &memStage{}
	if err := stage.StageTag(staging.TagEntry{Name: "Tag_17", Type: "online", Status: "unlocked"}); err != nil {
		t.Fatalf("stage tag: %v", err)
	}
	if err := stage.StageInterval("Tag_17", "Domain_5", staging.PayloadRecord{Path: src, Start: 300}); err != nil {
		t.Fatalf("stage interval: %v", err)
	}

	writer := condb.NewPusher(pushConfig{url: srv.URL, prefix: prefix}, httpclient.NewRestyHTTPClient(0), nil)
	pusher, err := NewPusher(stage, writer, payload.NewResolver([]string{prefix}), nil)
	if err != nil {
		t.Fatalf("NewPusher: %v", err)
	}

	if err := pusher.Push(context.Background(), true); err != nil {
		t.Fatalf("Push dry run: %v", err)
	}

	if len(calls) != 0 {
		t.Fatalf("dry run must not call the service, got %v", calls)
	}
	if len(stage.tags) != 1 || len(stage.intervals) != 1 {
		t.Fatalf("dry run must keep the stage intact")
	}
	if _, err := os.Stat(filepath.Join(prefix, "Domain_5")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not copy payload files")
	}
}

func TestPushEmptyStageFails(t *testing.T) {
	writer := condb.NewPusher(pushConfig{url: "http://db.example", prefix: "/p"}, nil, nil)
	pusher, err := NewPusher(&memStage{}, writer, payload.NewResolver([]string{"/p"}), nil)
	if err != nil {
		t.Fatalf("NewPusher: %v", err)
	}
	if err := pusher.Push(context.Background(), false); err == nil {
		t.Fatalf("expected error for empty stage, got nil")
	}
}

func TestPushStopsOnMissingPayload(t *testing.T) {
	var calls []string
	srv := writeServer(t, &calls)
	defer srv.Close()

	prefix := t.TempDir()
	stage := &memStage{}
	if err := stage.StageInterval("Tag_17", "Domain_5", staging.PayloadRecord{Path: "/no/such/file", Start: 300}); err != nil {
		t.Fatalf("stage interval: %v", err)
	}

	writer := condb.NewPusher(pushConfig{url: srv.URL, prefix: prefix}, httpclient.NewRestyHTTPClient(0), nil)
	pusher, err := NewPusher(stage, writer, payload.NewResolver([]string{prefix}), nil)
	if err != nil {
		t.Fatalf("NewPusher: %v", err)
	}

	if err := pusher.Push(context.Background(), false); err == nil {
		t.Fatalf("expected error for missing payload file, got nil")
	}
	if len(calls) != 0 {
		t.Fatalf("failed dry run must prevent service calls, got %v", calls)
	}
	if len(stage.intervals) != 1 {
		t.Fatalf("failed push must keep the stage intact")
	}
}
