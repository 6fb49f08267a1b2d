// Package service wires the scanner, stores, catalog, navigator and
// slideshow manager into one session-scoped object. One Session exists
// per application run; all catalog mutations go through it on the UI
// goroutine while durable writes drain through per-root background
// queues.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"imgview/internal/catalog"
	"imgview/internal/config"
	"imgview/internal/navigation"
	"imgview/internal/scan"
	"imgview/internal/slideshow"
	"imgview/internal/store"
)

// FileScanner abstracts file scanning for easier testing.
type FileScanner interface {
	Run(roots []string, recursive bool, log zerolog.Logger) <-chan scan.FileItem
}

// rootStore pairs one scanned root with its store and write queue. A root
// whose storage is unavailable degrades to memory-only: db and queue are
// nil and its records live only in the catalog for this session.
type rootStore struct {
	root       string
	db         *store.DB
	queue      *store.Queue
	memRecords []catalog.ImageRecord
}

// Session is the main entry point for business logic.
type Session struct {
	cfg     *config.AppConfig
	log     zerolog.Logger
	scanner FileScanner
	clock   func() time.Time

	roots []*rootStore
	cat   *catalog.Catalog
	nav   *navigation.Navigator
	show  *slideshow.Manager

	writeFailures atomic.Int64
}

// New constructs a Session from the merged configuration. Roots whose
// storage is unavailable are kept with a warning; every root failing is
// a fatal startup condition.
func New(cfg *config.AppConfig, log zerolog.Logger) (*Session, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("no paths to scan")
	}
	sortKey, err := catalog.ParseSortKey(cfg.Sort)
	if err != nil {
		return nil, err
	}
	mode, err := navigation.ParseMode(cfg.SlideshowOrder)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		scanner: scan.FileScannerImpl{},
		clock:   time.Now,
	}

	available := 0
	for _, root := range scan.BaseDirs(cfg.Paths) {
		rs := &rootStore{root: root}
		db, err := store.Open(root, log)
		switch {
		case err == nil:
			rs.db = db
			rs.queue = store.NewQueue(db, log, s.onWriteFailure)
			available++
		case errors.Is(err, store.ErrStorageUnavailable):
			log.Warn().Str("root", root).Err(err).
				Msg("ratings and viewed state will not be persisted for this root")
		default:
			s.closeStores()
			return nil, err
		}
		s.roots = append(s.roots, rs)
	}
	if available == 0 {
		s.closeStores()
		return nil, fmt.Errorf("no usable storage for any configured root: %w", store.ErrStorageUnavailable)
	}

	s.cat = catalog.New(sortKey)
	s.nav = navigation.New(s.cat, mode, cfg.Loop)
	s.show = slideshow.NewManager(cfg.BaseTime(), cfg.PerStar())
	return s, nil
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.cat }

// Navigator returns the session's navigation engine.
func (s *Session) Navigator() *navigation.Navigator { return s.nav }

// Slideshow returns the session's slideshow manager.
func (s *Session) Slideshow() *slideshow.Manager { return s.show }

// WriteFailures reports how many background writes exhausted their
// retries this session. In-memory state stays authoritative either way.
func (s *Session) WriteFailures() int64 { return s.writeFailures.Load() }

func (s *Session) onWriteFailure(err error) {
	s.writeFailures.Add(1)
}

// storeFor routes a path to the root store owning it: the store whose
// root is the longest prefix of the path, falling back to the first.
func (s *Session) storeFor(path string) *rootStore {
	var best *rootStore
	bestLen := -1
	for _, rs := range s.roots {
		if path == rs.root || strings.HasPrefix(path, rs.root+string(os.PathSeparator)) {
			if len(rs.root) > bestLen {
				best = rs
				bestLen = len(rs.root)
			}
		}
	}
	if best == nil {
		best = s.roots[0]
	}
	return best
}

// ScanAndLoad discovers images under the configured paths, records new
// ones in their stores, then rebuilds the catalog from every store's
// full contents. Records for files no longer on disk are kept. It
// returns the number of files discovered by this scan.
func (s *Session) ScanAndLoad() (int, error) {
	now := s.clock()
	discovered := 0
	seen := make(map[string]bool)
	batches := make(map[*rootStore][]catalog.ImageRecord)

	for item := range s.scanner.Run(s.cfg.Paths, s.cfg.Recursive, s.log) {
		if seen[item.Path] {
			continue
		}
		seen[item.Path] = true
		discovered++
		rs := s.storeFor(item.Path)
		batches[rs] = append(batches[rs], catalog.NewRecord(item.Path, item.Info, now))
	}

	for rs, recs := range batches {
		if rs.db == nil {
			rs.memRecords = recs
			continue
		}
		if err := rs.db.UpsertBatch(recs); err != nil {
			// This root's scan results stay usable in memory.
			s.log.Warn().Str("root", rs.root).Err(err).Msg("failed to record scan results")
			rs.memRecords = recs
		}
	}

	var merged []catalog.ImageRecord
	for _, rs := range s.roots {
		if rs.db == nil {
			merged = append(merged, rs.memRecords...)
			continue
		}
		recs, err := rs.db.LoadAll()
		if err != nil {
			s.log.Warn().Str("root", rs.root).Err(err).Msg("failed to load records")
			merged = append(merged, rs.memRecords...)
			continue
		}
		merged = append(merged, recs...)
	}

	s.cat.Build(merged)
	s.log.Info().Int("discovered", discovered).Int("loaded", len(merged)).Msg("scan complete")
	return discovered, nil
}

// Reorder switches the catalog to a new sort key by name.
func (s *Session) Reorder(sortName string) error {
	key, err := catalog.ParseSortKey(sortName)
	if err != nil {
		return err
	}
	s.cat.Reorder(key)
	return nil
}

// AdjustRating changes the rating of the record at path by delta,
// clamped to [0,5]. The catalog copy is updated synchronously so the
// next render sees it; the durable write is queued. Hitting a bound is
// a no-op that still succeeds. Returns the new rating.
func (s *Session) AdjustRating(path string, delta int) (int, error) {
	rec, ok := s.cat.Record(path)
	if !ok {
		return 0, fmt.Errorf("%w: %s", catalog.ErrUnknownPath, path)
	}
	rating := rec.Rating + delta
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	if err := s.cat.ApplyMutation(path, func(r *catalog.ImageRecord) { r.Rating = rating }); err != nil {
		return 0, err
	}
	if rs := s.storeFor(path); rs.queue != nil {
		rs.queue.EnqueueRating(path, rating)
	}
	return rating, nil
}

// AdjustCurrentRating applies a rating delta to the cursored record.
func (s *Session) AdjustCurrentRating(delta int) (int, error) {
	rec, err := s.cat.Current()
	if err != nil {
		return 0, err
	}
	return s.AdjustRating(rec.Path, delta)
}

// MarkViewedIfDue records one display of the record at path if it
// stayed on screen at least the viewed threshold. Every qualifying call
// counts a view, including on records viewed in earlier sessions; the
// viewed flag only ever flips to true. Returns whether a view was
// recorded.
func (s *Session) MarkViewedIfDue(path string, elapsed time.Duration) (bool, error) {
	if elapsed < slideshow.ViewedThreshold {
		return false, nil
	}
	if _, ok := s.cat.Record(path); !ok {
		return false, fmt.Errorf("%w: %s", catalog.ErrUnknownPath, path)
	}
	now := s.clock()
	err := s.cat.ApplyMutation(path, func(r *catalog.ImageRecord) {
		r.Viewed = true
		r.ViewCount++
		t := now
		r.LastViewedAt = &t
	})
	if err != nil {
		return false, err
	}
	if rs := s.storeFor(path); rs.queue != nil {
		rs.queue.EnqueueMarkViewed(path, now)
	}
	return true, nil
}

// MarkCurrentViewedIfDue applies MarkViewedIfDue to the cursored record.
func (s *Session) MarkCurrentViewedIfDue(elapsed time.Duration) (bool, error) {
	rec, err := s.cat.Current()
	if err != nil {
		return false, err
	}
	return s.MarkViewedIfDue(rec.Path, elapsed)
}

// Stats summarizes the loaded catalog.
type Stats struct {
	Total    int
	Viewed   int
	Unviewed int
	ByRating [6]int
	Missing  int // records whose file is gone from disk (never pruned)
}

// Stats computes summary counts over the catalog.
func (s *Session) Stats() Stats {
	var st Stats
	for _, rec := range s.cat.Records() {
		st.Total++
		if rec.Viewed {
			st.Viewed++
		} else {
			st.Unviewed++
		}
		if rec.Rating >= 0 && rec.Rating <= 5 {
			st.ByRating[rec.Rating]++
		}
		if _, err := os.Stat(rec.Path); os.IsNotExist(err) {
			st.Missing++
		}
	}
	return st
}

// Close drains every write queue (bounded by ctx) and closes the
// stores. Queued writes are waited for, not discarded, so ratings set
// moments before exit are not lost.
func (s *Session) Close(ctx context.Context) error {
	var firstErr error
	for _, rs := range s.roots {
		if rs.queue != nil {
			if err := rs.queue.Close(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("draining writes for %s: %w", rs.root, err)
			}
		}
	}
	if err := s.closeStores(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Session) closeStores() error {
	var firstErr error
	for _, rs := range s.roots {
		if rs.db != nil {
			if err := rs.db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			rs.db = nil
		}
	}
	return firstErr
}

// RoutedStorePath reports which database file backs path, for
// diagnostics. Empty for memory-only roots.
func (s *Session) RoutedStorePath(path string) string {
	rs := s.storeFor(filepath.Clean(path))
	if rs.db == nil {
		return ""
	}
	return rs.db.Path()
}
