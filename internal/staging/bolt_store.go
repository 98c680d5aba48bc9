package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	tagBucket      = "tags"
	intervalBucket = "intervals"
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db *bolt.DB
}

// Open initializes a BoltDB-backed stage at the given path, creating the
// parent directory when needed.
func Open(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create stage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open stage db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tagBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(intervalBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init stage buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the underlying BoltDB file.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// StageTag stages a tag, replacing any staged entry with the same name.
func (b *boltStore) StageTag(entry TagEntry) error {
	if err := validateTag(entry); err != nil {
		return err
	}
	entry.Domains = dedupeDomains(entry.Domains)

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode staged tag: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(tagBucket))
		if bucket == nil {
			return fmt.Errorf("tag bucket missing")
		}
		return bucket.Put([]byte(entry.Name), value)
	})
}

// StageInterval stages one payload record under (tag, domain). A staged
// record with the same start and end values is replaced.
func (b *boltStore) StageInterval(tag, domain string, payload PayloadRecord) error {
	if err := validatePayload(tag, domain, payload); err != nil {
		return err
	}

	key := intervalKey(tag, domain)
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(intervalBucket))
		if bucket == nil {
			return fmt.Errorf("interval bucket missing")
		}

		entry := IntervalEntry{Tag: tag, Domain: domain}
		if raw := bucket.Get(key); raw != nil {
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("decode staged interval: %w", err)
			}
		}

		kept := entry.Payloads[:0]
		for _, p := range entry.Payloads {
			if p.Start == payload.Start && equalEnd(p.End, payload.End) {
				continue
			}
			kept = append(kept, p)
		}
		entry.Payloads = append(kept, payload)

		value, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode staged interval: %w", err)
		}
		return bucket.Put(key, value)
	})
}

// Tags returns all staged tags in key order.
func (b *boltStore) Tags() ([]TagEntry, error) {
	var entries []TagEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(tagBucket))
		if bucket == nil {
			return fmt.Errorf("tag bucket missing")
		}
		return bucket.ForEach(func(_, value []byte) error {
			var entry TagEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode staged tag: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// Intervals returns all staged payload intervals in key order.
func (b *boltStore) Intervals() ([]IntervalEntry, error) {
	var entries []IntervalEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(intervalBucket))
		if bucket == nil {
			return fmt.Errorf("interval bucket missing")
		}
		return bucket.ForEach(func(_, value []byte) error {
			var entry IntervalEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode staged interval: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// ClearTags removes every staged tag.
func (b *boltStore) ClearTags() error { return b.clear(tagBucket) }

// ClearIntervals removes every staged payload interval.
func (b *boltStore) ClearIntervals() error { return b.clear(intervalBucket) }

func (b *boltStore) clear(bucket string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucket))
		return err
	})
}

func intervalKey(tag, domain string) []byte {
	return []byte(tag + "\x00" + domain)
}

func equalEnd(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
