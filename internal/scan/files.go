// Package scan discovers image files under a set of root paths.
package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FileItem is one discovered image file.
type FileItem struct {
	Path string // absolute path
	Info os.FileInfo
}

// FileItems is a slice of FileItem.
type FileItems []FileItem

// NewFileItem creates a new FileItem.
func NewFileItem(p string, info os.FileInfo) FileItem {
	return FileItem{Path: p, Info: info}
}

// FileScannerImpl is the production scanner.
type FileScannerImpl struct{}

// Run implements the scanner interface used by the session service.
func (FileScannerImpl) Run(roots []string, recursive bool, log zerolog.Logger) <-chan FileItem {
	return Run(roots, recursive, log)
}

// Run walks the given roots and sends every supported image file on the
// returned channel. Roots may be directories or single image files.
// Per-entry errors (permission denied, broken symlinks) are logged and
// skipped; they never abort the scan. The channel is closed when every
// root has been visited.
func Run(roots []string, recursive bool, log zerolog.Logger) <-chan FileItem {
	out := make(chan FileItem, 64)
	go func() {
		defer close(out)
		for _, root := range roots {
			scanRoot(root, recursive, log, out)
		}
	}()
	return out
}

func scanRoot(root string, recursive bool, log zerolog.Logger, out chan<- FileItem) {
	abs, err := filepath.Abs(root)
	if err != nil {
		log.Warn().Str("root", root).Err(err).Msg("skipping unresolvable root")
		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		log.Warn().Str("root", abs).Err(err).Msg("skipping unreadable root")
		return
	}

	if info.Mode().IsRegular() {
		if info.Size() > 0 && IsImage(abs) {
			out <- NewFileItem(abs, info)
		}
		return
	}

	visit := func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Str("path", p).Err(err).Msg("skipping unreadable entry")
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() {
			if p == abs {
				return nil
			}
			// Hidden directories (.thumbnails, .git, ...) are never scanned.
			if strings.HasPrefix(filepath.Base(p), ".") || !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.Mode().IsRegular() && fi.Size() > 0 && IsImage(p) {
			out <- NewFileItem(p, fi)
		}
		return nil
	}

	if err := filepath.Walk(abs, visit); err != nil {
		log.Warn().Str("root", abs).Err(err).Msg("scan of root ended early")
	}
}

// IsImage checks if a file has a supported image extension.
func IsImage(n string) bool {
	switch strings.ToLower(filepath.Ext(n)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	default:
		return false
	}
}

// BaseDirs returns the unique store roots for a list of scan paths: the
// parent directory for file paths, the directory itself otherwise.
// Order of first appearance is preserved.
func BaseDirs(paths []string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		base := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			base = filepath.Dir(abs)
		}
		if !seen[base] {
			seen[base] = true
			dirs = append(dirs, base)
		}
	}
	return dirs
}
