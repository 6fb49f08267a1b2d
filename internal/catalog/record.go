// Package catalog holds the in-memory, sorted, merged view over all stored
// image records for the active session, along with the cursor that the
// thumbnail grid and the slideshow share.
package catalog

import (
	"os"
	"path/filepath"
	"time"
)

// ImageRecord is one row per distinct image file. The path is the identity
// key; filename and directory are derived from it and cached for sorting.
type ImageRecord struct {
	Path         string     `json:"path"`
	Filename     string     `json:"filename"`
	Directory    string     `json:"directory"`
	SizeBytes    int64      `json:"size_bytes"`
	ModifiedAt   time.Time  `json:"modified_at"`
	Rating       int        `json:"rating"` // 0 = unrated, 1-5 stars
	Viewed       bool       `json:"viewed"`
	ViewCount    int        `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
}

// NewRecord builds a fresh record for a newly discovered file.
// Rating, viewed state and view count start at their zero values; the
// store's upsert preserves existing values for paths it already knows.
func NewRecord(path string, info os.FileInfo, now time.Time) ImageRecord {
	return ImageRecord{
		Path:        path,
		Filename:    filepath.Base(path),
		Directory:   filepath.Dir(path),
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
		FirstSeenAt: now,
	}
}

// RefreshFileMetadata copies the fields owned by the scanner from src.
// Everything owned by the mutator path (rating, viewed, view count,
// timestamps) is left untouched.
func (r *ImageRecord) RefreshFileMetadata(src ImageRecord) {
	r.Filename = src.Filename
	r.Directory = src.Directory
	r.SizeBytes = src.SizeBytes
	r.ModifiedAt = src.ModifiedAt
}

// Stars renders the rating as filled/empty star runes for display.
func (r ImageRecord) Stars() string {
	const filled, empty = "★", "☆"
	s := ""
	for i := 0; i < 5; i++ {
		if i < r.Rating {
			s += filled
		} else {
			s += empty
		}
	}
	return s
}
