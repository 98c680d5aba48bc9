package staging

import (
	"fmt"
	"sort"
)

// Package staging keeps tags and payload intervals staged locally until
// they are pushed to the conditions database.

// TagEntry is a staged global tag.
type TagEntry struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"`
	Status  string   `json:"status" yaml:"status"`
	Domains []string `json:"domains" yaml:"domains"`
}

// PayloadRecord is one staged payload file with its validity interval.
// A nil End leaves the interval open.
type PayloadRecord struct {
	Path  string  `json:"path" yaml:"path"`
	Start uint64  `json:"start" yaml:"start"`
	End   *uint64 `json:"end" yaml:"end"`
}

// IntervalEntry groups the staged payload records for one tag and domain.
type IntervalEntry struct {
	Tag      string          `json:"tag" yaml:"tag"`
	Domain   string          `json:"domain" yaml:"domain"`
	Payloads []PayloadRecord `json:"payloads" yaml:"payloads"`
}

// Store is the staging backend contract.
type Store interface {
	Close() error
	StageTag(entry TagEntry) error
	StageInterval(tag, domain string, payload PayloadRecord) error
	Tags() ([]TagEntry, error)
	Intervals() ([]IntervalEntry, error)
	ClearTags() error
	ClearIntervals() error
}

func validateTag(entry TagEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("tag name must not be empty")
	}
	if entry.Type == "" {
		return fmt.Errorf("tag type must not be empty")
	}
	if entry.Status == "" {
		return fmt.Errorf("tag status must not be empty")
	}
	return nil
}

func validatePayload(tag, domain string, payload PayloadRecord) error {
	if tag == "" || domain == "" {
		return fmt.Errorf("tag and domain must not be empty")
	}
	if payload.Path == "" {
		return fmt.Errorf("payload path must not be empty")
	}
	if payload.End != nil && (payload.Start == 0 || *payload.End <= payload.Start) {
		return fmt.Errorf("start must be greater than zero and end greater than start")
	}
	return nil
}

// dedupeDomains drops duplicate domain names, keeping a sorted list.
func dedupeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
