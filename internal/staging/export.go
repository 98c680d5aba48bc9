package staging

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// stageDump is the YAML document produced by Export and consumed by Import.
type stageDump struct {
	Tags      []TagEntry      `yaml:"tags"`
	Intervals []IntervalEntry `yaml:"intervals"`
}

// Export writes every staged tag and payload interval to w as YAML.
func Export(store Store, w io.Writer) error {
	tags, err := store.Tags()
	if err != nil {
		return fmt.Errorf("read staged tags: %w", err)
	}
	intervals, err := store.Intervals()
	if err != nil {
		return fmt.Errorf("read staged intervals: %w", err)
	}

	enc := yaml.NewEncoder(w)
	if err := enc.Encode(stageDump{Tags: tags, Intervals: intervals}); err != nil {
		return fmt.Errorf("encode stage: %w", err)
	}
	return enc.Close()
}

// Import stages every entry from the YAML document in r. Entries go through
// the regular staging calls, so validation and replace-by-key semantics
// apply as if each entry had been staged by hand.
func Import(store Store, r io.Reader) error {
	var dump stageDump
	if err := yaml.NewDecoder(r).Decode(&dump); err != nil {
		return fmt.Errorf("decode stage: %w", err)
	}

	for _, tag := range dump.Tags {
		if err := store.StageTag(tag); err != nil {
			return fmt.Errorf("stage tag %q: %w", tag.Name, err)
		}
	}
	for _, interval := range dump.Intervals {
		for _, record := range interval.Payloads {
			if err := store.StageInterval(interval.Tag, interval.Domain, record); err != nil {
				return fmt.Errorf("stage interval %s/%s: %w", interval.Tag, interval.Domain, err)
			}
		}
	}
	return nil
}
