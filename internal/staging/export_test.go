package staging

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	source := openTestStore(t)

	end := uint64(400)
	if err := source.StageTag(TagEntry{Name: "Tag_17", Type: "online", Status: "unlocked", Domains: []string{"Domain_5"}}); err != nil {
		t.Fatalf("StageTag: %v", err)
	}
	if err := source.StageInterval("Tag_17", "Domain_5", PayloadRecord{Path: "/a", Start: 300, End: &end}); err != nil {
		t.Fatalf("StageInterval: %v", err)
	}
	if err := source.StageInterval("Tag_17", "Domain_6", PayloadRecord{Path: "/b", Start: 300}); err != nil {
		t.Fatalf("StageInterval: %v", err)
	}

	var out bytes.Buffer
	if err := Export(source, &out); err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, want := range []string{"tags:", "intervals:", "Tag_17", "Domain_6", "/a"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("export missing %q:\n%s", want, out.String())
		}
	}

	target := openTestStore(t)
	if err := Import(target, bytes.NewReader(out.Bytes())); err != nil {
		t.Fatalf("Import: %v", err)
	}

	sourceTags, err := source.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	targetTags, err := target.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if !reflect.DeepEqual(sourceTags, targetTags) {
		t.Fatalf("tags differ after round trip: %+v vs %+v", sourceTags, targetTags)
	}

	sourceIntervals, err := source.Intervals()
	if err != nil {
		t.Fatalf("Intervals: %v", err)
	}
	targetIntervals, err := target.Intervals()
	if err != nil {
		t.Fatalf("Intervals: %v", err)
	}
	if !reflect.DeepEqual(sourceIntervals, targetIntervals) {
		t.Fatalf("intervals differ after round trip: %+v vs %+v", sourceIntervals, targetIntervals)
	}
}

func TestImportValidatesEntries(t *testing.T) {
	store := openTestStore(t)

	doc := `
intervals:
  - tag: Tag_17
    domain: Domain_5
    payloads:
      - path: /a
        start: 300
        end: 200
`
	if err := Import(store, strings.NewReader(doc)); err == nil {
		t.Fatalf("expected validation error for end <= start, got nil")
	}
}

func TestImportInvalidYAML(t *testing.T) {
	store := openTestStore(t)

	if err := Import(store, strings.NewReader("tags: [unclosed")); err == nil {
		t.Fatalf("expected decode error, got nil")
	}
}
