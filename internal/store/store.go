// Package store persists per-image rating and viewed state in a BoltDB
// database. Each scanned root directory gets its own database file; roots
// that are not writable fall back to a per-user location keyed by a stable
// hash of the root path.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"imgview/internal/catalog"
)

const (
	// dbFileName is stored alongside the images when the root is writable.
	dbFileName = ".image-viewer.db"
	// fallbackDirName lives under the user config directory.
	fallbackDirName = "image-viewer"
	// imagesBucket maps absolute image path to a JSON-encoded record.
	imagesBucket = "images"
)

// ErrStorageUnavailable means neither the root directory nor the per-user
// fallback location could hold the database. The session continues with
// in-memory-only state for that root.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrRecordNotFound is returned by single-record updates for unknown paths.
var ErrRecordNotFound = errors.New("record not found")

// DB manages the record database for a single root directory.
type DB struct {
	db   *bolt.DB
	root string
	path string
	log  zerolog.Logger
}

// FallbackPath returns the per-user database location for a root that is
// not writable: <UserConfigDir>/image-viewer/<sha256(absRoot)[:16]>.db.
func FallbackPath(absRoot string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	dir := filepath.Join(configDir, fallbackDirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating fallback dir %s: %w", dir, err)
	}
	sum := sha256.Sum256([]byte(absRoot))
	return filepath.Join(dir, hex.EncodeToString(sum[:])[:16]+".db"), nil
}

// Open creates or opens the database for root. The primary location is
// <root>/.image-viewer.db; if that cannot be opened the fallback location
// is tried. Failure of both wraps ErrStorageUnavailable.
func Open(root string, log zerolog.Logger) (*DB, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	primary := filepath.Join(absRoot, dbFileName)
	db, err := openBolt(primary)
	if err != nil {
		log.Debug().Str("path", primary).Err(err).Msg("primary store location not writable, trying fallback")
		fallback, fbErr := FallbackPath(absRoot)
		if fbErr == nil {
			db, fbErr = openBolt(fallback)
			primary = fallback
		}
		if fbErr != nil {
			return nil, fmt.Errorf("%w for root %s: primary: %v, fallback: %v", ErrStorageUnavailable, absRoot, err, fbErr)
		}
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(imagesBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket in %s: %w", primary, err)
	}

	log.Debug().Str("root", absRoot).Str("db", primary).Msg("opened store")
	return &DB{db: db, root: absRoot, path: primary, log: log}, nil
}

func openBolt(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
}

// Root returns the absolute root directory this store covers.
func (s *DB) Root() string { return s.root }

// Path returns the database file location actually in use.
func (s *DB) Path() string { return s.path }

// Close closes the database file.
func (s *DB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or refreshes a single record. See UpsertBatch.
func (s *DB) Upsert(rec catalog.ImageRecord) error {
	return s.UpsertBatch([]catalog.ImageRecord{rec})
}

// UpsertBatch writes records in one transaction. New paths are inserted as
// given; for existing paths only the file metadata is refreshed — rating,
// viewed state, view count and timestamps stored previously are preserved.
func (s *DB) UpsertBatch(recs []catalog.ImageRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(imagesBucket))
		for _, rec := range recs {
			key := []byte(rec.Path)
			stored := rec
			if raw := b.Get(key); raw != nil {
				var existing catalog.ImageRecord
				if err := json.Unmarshal(raw, &existing); err != nil {
					return fmt.Errorf("decoding record %s: %w", rec.Path, err)
				}
				existing.RefreshFileMetadata(rec)
				stored = existing
			}
			raw, err := json.Marshal(stored)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", rec.Path, err)
			}
			if err := b.Put(key, raw); err != nil {
				return fmt.Errorf("storing record %s: %w", rec.Path, err)
			}
		}
		return nil
	})
}

// update applies fn to the stored record at path inside one transaction.
func (s *DB) update(path string, fn func(*catalog.ImageRecord)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(imagesBucket))
		raw := b.Get([]byte(path))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, path)
		}
		var rec catalog.ImageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decoding record %s: %w", path, err)
		}
		fn(&rec)
		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", path, err)
		}
		return b.Put([]byte(path), out)
	})
}

// UpdateRating stores a new rating for path, clamped to [0,5]. Applying the
// same rating twice yields the same stored value.
func (s *DB) UpdateRating(path string, rating int) error {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return s.update(path, func(rec *catalog.ImageRecord) {
		rec.Rating = rating
	})
}

// MarkViewed records one display of path: sets the viewed flag, increments
// the view count and stamps the last-viewed time.
func (s *DB) MarkViewed(path string, ts time.Time) error {
	return s.update(path, func(rec *catalog.ImageRecord) {
		rec.Viewed = true
		rec.ViewCount++
		t := ts
		rec.LastViewedAt = &t
	})
}

// Get fetches a single record by path.
func (s *DB) Get(path string) (catalog.ImageRecord, bool, error) {
	var rec catalog.ImageRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(imagesBucket)).Get([]byte(path))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	return rec, found, err
}

// LoadAll returns every record in the store. Order is unspecified; the
// catalog imposes it.
func (s *DB) LoadAll() ([]catalog.ImageRecord, error) {
	var out []catalog.ImageRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(imagesBucket)).ForEach(func(k, v []byte) error {
			var rec catalog.ImageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// A corrupt row is skipped, not fatal to the load.
				s.log.Warn().Str("path", string(k)).Err(err).Msg("skipping undecodable record")
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading records from %s: %w", s.path, err)
	}
	return out, nil
}
