package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/calib-hub/condfetch/internal/logger"
	"github.com/calib-hub/condfetch/internal/staging"
	"github.com/calib-hub/condfetch/pkg/condb"
	"github.com/calib-hub/condfetch/pkg/payload"
)

// Pusher publishes staged tags and payload intervals to the conditions
// database. The policy is all-or-nothing per kind: intervals get a dry run
// before anything is copied or linked, and the stage is cleared only after
// a fully successful push.
type Pusher struct {
	stage    staging.Store
	writer   *condb.Pusher
	resolver *payload.Resolver
	log      logger.Logger
}

// NewPusher wires a push runtime over the stage, the database writer, and
// the local payload resolver.
func NewPusher(stage staging.Store, writer *condb.Pusher, resolver *payload.Resolver, log logger.Logger) (*Pusher, error) {
	if stage == nil {
		return nil, fmt.Errorf("stage must not be nil")
	}
	if writer == nil {
		return nil, fmt.Errorf("database writer must not be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("payload resolver must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Pusher{stage: stage, writer: writer, resolver: resolver, log: log}, nil
}

// Push publishes all staged entries. With dryRun set, every step is
// validated but nothing is copied, created, or cleared.
func (p *Pusher) Push(ctx context.Context, dryRun bool) error {
	tags, err := p.stage.Tags()
	if err != nil {
		return fmt.Errorf("read staged tags: %w", err)
	}
	intervals, err := p.stage.Intervals()
	if err != nil {
		return fmt.Errorf("read staged intervals: %w", err)
	}
	if len(tags) == 0 && len(intervals) == 0 {
		return fmt.Errorf("no stage found, use the add action to stage tags or intervals")
	}

	if len(tags) > 0 {
		if err := p.pushTags(ctx, tags, dryRun); err != nil {
			return err
		}
	}
	if len(intervals) > 0 {
		if err := p.pushIntervals(ctx, intervals, dryRun); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pusher) pushTags(ctx context.Context, tags []staging.TagEntry, dryRun bool) error {
	for _, tag := range tags {
		if dryRun {
			p.log.InfoObj("would create tag", "tag", tag)
			continue
		}
		entry, err := p.writer.CreateTag(ctx, tag.Name, tag.Type, tag.Status, tag.Domains)
		if err != nil {
			return err
		}
		p.log.InfoObj("tag created", "tag_meta", map[string]any{
			"name": tag.Name,
			"id":   *entry.ID,
		})
	}

	if dryRun {
		return nil
	}
	if err := p.stage.ClearTags(); err != nil {
		return fmt.Errorf("clear staged tags: %w", err)
	}
	return nil
}

func (p *Pusher) pushIntervals(ctx context.Context, intervals []staging.IntervalEntry, dryRun bool) error {
	// Dry run first; the real run only starts when every copy and link
	// can be expected to succeed.
	if err := p.runIntervals(ctx, intervals, true); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	if err := p.runIntervals(ctx, intervals, false); err != nil {
		return err
	}
	if err := p.stage.ClearIntervals(); err != nil {
		return fmt.Errorf("clear staged intervals: %w", err)
	}
	return nil
}

func (p *Pusher) runIntervals(ctx context.Context, intervals []staging.IntervalEntry, dryRun bool) error {
	for _, interval := range intervals {
		for _, record := range interval.Payloads {
			destination, err := p.resolver.Install(record.Path, interval.Domain, dryRun)
			if err != nil {
				return fmt.Errorf("install payload for %s/%s: %w", interval.Tag, interval.Domain, err)
			}
			p.log.DebugObj("copying payload file", "destination", destination)

			if dryRun {
				continue
			}
			name := filepath.Base(destination)
			if _, err := p.writer.CreatePayloadIOV(ctx, interval.Tag, interval.Domain, name, record.Start, record.End); err != nil {
				return fmt.Errorf("link payload for %s/%s: %w", interval.Tag, interval.Domain, err)
			}
		}
	}
	return nil
}
