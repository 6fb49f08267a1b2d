package store

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgview/internal/catalog"
)

func newRec(t *testing.T, dir, name string) catalog.ImageRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return catalog.NewRecord(path, info, time.Unix(1700000000, 0))
}

func openTestStore(t *testing.T, root string) *DB {
	t.Helper()
	db, err := Open(root, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenUsesRootLocation(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	assert.Equal(t, filepath.Join(root, ".image-viewer.db"), db.Path())
}

func TestOpenFallsBackWhenRootNotWritable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	root := t.TempDir()
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, os.Chmod(root, 0555))
	t.Cleanup(func() { os.Chmod(root, 0755) })

	// Point the fallback at a temp config dir.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	db := openTestStore(t, root)
	assert.NotEqual(t, filepath.Join(root, ".image-viewer.db"), db.Path())
	assert.Contains(t, db.Path(), "image-viewer")

	// Round trip through the fallback location.
	require.NoError(t, db.Upsert(rec))
	all, err := db.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.Path, all[0].Path)
}

func TestUpsertPreservesUserFields(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, db.Upsert(rec))

	require.NoError(t, db.UpdateRating(rec.Path, 4))
	require.NoError(t, db.MarkViewed(rec.Path, time.Unix(1700000100, 0)))

	// Rescan discovers the same file with fresh metadata.
	rescan := rec
	rescan.SizeBytes = 999
	rescan.Rating = 0
	rescan.Viewed = false
	require.NoError(t, db.Upsert(rescan))

	got, found, err := db.Get(rec.Path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(999), got.SizeBytes, "file metadata refreshed")
	assert.Equal(t, 4, got.Rating, "rating preserved on conflict")
	assert.True(t, got.Viewed, "viewed preserved on conflict")
	assert.Equal(t, 1, got.ViewCount)
	require.NotNil(t, got.LastViewedAt)
	assert.Equal(t, time.Unix(1700000100, 0).Unix(), got.LastViewedAt.Unix())
}

func TestUpdateRatingClampsAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, db.Upsert(rec))

	require.NoError(t, db.UpdateRating(rec.Path, 9))
	got, _, err := db.Get(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)

	require.NoError(t, db.UpdateRating(rec.Path, 5))
	got, _, err = db.Get(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)
}

func TestUpdateRatingUnknownPath(t *testing.T) {
	db := openTestStore(t, t.TempDir())
	err := db.UpdateRating("/nope.jpg", 3)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMarkViewedAccumulatesViewCount(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, db.Upsert(rec))

	require.NoError(t, db.MarkViewed(rec.Path, time.Unix(100, 0)))
	require.NoError(t, db.MarkViewed(rec.Path, time.Unix(200, 0)))

	got, _, err := db.Get(rec.Path)
	require.NoError(t, err)
	assert.True(t, got.Viewed)
	assert.Equal(t, 2, got.ViewCount)
	require.NotNil(t, got.LastViewedAt)
	assert.Equal(t, int64(200), got.LastViewedAt.Unix())
}

func TestLoadAllReturnsEveryRecord(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	want := []string{}
	for _, name := range []string{"a.jpg", "b.png", "c.gif"} {
		rec := newRec(t, root, name)
		require.NoError(t, db.Upsert(rec))
		want = append(want, rec.Path)
	}
	all, err := db.LoadAll()
	require.NoError(t, err)
	got := []string{}
	for _, r := range all {
		got = append(got, r.Path)
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestQueueAppliesInSubmissionOrder(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, db.Upsert(rec))

	q := NewQueue(db, zerolog.Nop(), nil)
	for _, rating := range []int{1, 2, 3, 4, 5, 2} {
		q.EnqueueRating(rec.Path, rating)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))

	got, _, err := db.Get(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rating, "last submitted write wins")
}

func TestQueueSurfacesFailureOnce(t *testing.T) {
	db := openTestStore(t, t.TempDir())

	failures := 0
	q := NewQueue(db, zerolog.Nop(), func(error) { failures++ })
	q.EnqueueRating("/does/not/exist.jpg", 3) // no record -> every try fails

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, 1, failures)
}

func TestQueueDropsAfterClose(t *testing.T) {
	root := t.TempDir()
	db := openTestStore(t, root)
	rec := newRec(t, root, "a.jpg")
	require.NoError(t, db.Upsert(rec))

	q := NewQueue(db, zerolog.Nop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))

	// Must not panic or write.
	q.EnqueueRating(rec.Path, 5)
	got, _, err := db.Get(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Rating)
}
