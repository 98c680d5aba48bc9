package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile file: %v", err)
	}
	return file
}

func TestLoadProfileFromJSONFile(t *testing.T) {
	file := writeProfile(t, "test.json", `{
  "host": "db.example",
  "port": "8000",
  "apiroot": "/api/cdb_rest",
  "apiver": "v1",
  "path": "/data/payloads",
  "verbosity": 2
}`)

	p, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got, want := p.URL(), "http://db.example:8000/api/cdb_rest"; got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
	if got, want := p.PathPrefix(), "/data/payloads"; got != want {
		t.Fatalf("PathPrefix() = %q, want %q", got, want)
	}
	if p.Verbosity != 2 {
		t.Fatalf("Verbosity = %d, want 2", p.Verbosity)
	}
	if p.File == "" {
		t.Fatalf("expected resolved profile file path")
	}
}

func TestLoadProfilePathList(t *testing.T) {
	file := writeProfile(t, "multi.yaml", `
host: db.example
port: "8000"
apiroot: /api
path:
  - /fast/payloads
  - /slow/payloads
`)

	p, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(p.Paths) != 2 {
		t.Fatalf("expected 2 prefixes, got %d", len(p.Paths))
	}
	if p.PathPrefix() != "/fast/payloads" {
		t.Fatalf("unexpected first prefix: %s", p.PathPrefix())
	}
}

func TestLoadProfileByNameFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "staging.json")
	content := `{"host": "stage.example", "port": "80", "apiroot": "/api", "path": "/tmp/payloads"}`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile file: %v", err)
	}
	t.Setenv(envProfileDir, dir)

	p, err := Load("staging")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.Host != "stage.example" {
		t.Fatalf("unexpected host: %s", p.Host)
	}
}

func TestLoadProfileRequiresPath(t *testing.T) {
	file := writeProfile(t, "bad.json", `{"host": "db.example", "port": "80", "apiroot": "/api"}`)

	if _, err := Load(file); err == nil {
		t.Fatalf("expected missing path error, got nil")
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	t.Setenv(envProfileDir, t.TempDir())

	if _, err := Load("nonexistent"); err == nil {
		t.Fatalf("expected error for missing profile, got nil")
	}
}
