package scan

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewFileItem(t *testing.T) {
	path := "test/path"
	dummyInfo, err := os.Stat(".")
	if err != nil {
		t.Fatalf("Failed to create dummy FileInfo: %v", err)
	}
	item := NewFileItem(path, dummyInfo)
	if item.Path != path {
		t.Errorf("expected Path %s, got %s", path, item.Path)
	}
	if item.Info == nil {
		t.Errorf("expected Info to be non-nil, got nil")
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"image.PNG", true},
		{"image.jpg", true},
		{"image.jpeg", true},
		{"image.gif", true},
		{"image.BMP", true},
		{"image.webp", true},
		{"image.txt", false},
		{"image", false},
		{".jpeg", true}, // only extension
	}

	for _, test := range tests {
		result := IsImage(test.name)
		if result != test.expected {
			t.Errorf("IsImage(%s) = %v; want %v", test.name, result, test.expected)
		}
	}
}

func collect(t *testing.T, items <-chan FileItem) FileItems {
	t.Helper()
	var found FileItems
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-items:
			if !ok {
				return found
			}
			found = append(found, item)
		case <-timeout:
			t.Fatal("timed out waiting for items from channel")
		}
	}
}

func mustWrite(t *testing.T, path string, size int) {
	t.Helper()
	content := make([]byte, size)
	if size > 0 {
		content[0] = 'a'
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write test file %s: %v", path, err)
	}
}

func TestRun(t *testing.T) {
	rootDir := t.TempDir()

	// --- Setup test file structure ---
	topImage1 := filepath.Join(rootDir, "image1.png")
	topImage2 := filepath.Join(rootDir, "image2.JPG") // case-insensitive extension
	topText := filepath.Join(rootDir, "document.txt")
	topEmptyImage := filepath.Join(rootDir, "empty.gif") // 0-byte image, skipped

	subDir1 := filepath.Join(rootDir, "sub1")
	if err := os.Mkdir(subDir1, 0755); err != nil {
		t.Fatalf("Failed to create subDir1: %v", err)
	}
	subImage1 := filepath.Join(subDir1, "image3.jpeg")
	subText1 := filepath.Join(subDir1, "notes.md")

	hiddenDir := filepath.Join(rootDir, ".thumbnails")
	if err := os.Mkdir(hiddenDir, 0755); err != nil {
		t.Fatalf("Failed to create hidden dir: %v", err)
	}
	hiddenImage := filepath.Join(hiddenDir, "cached.png")

	subSubDir := filepath.Join(subDir1, "subsub")
	if err := os.Mkdir(subSubDir, 0755); err != nil {
		t.Fatalf("Failed to create subSubDir: %v", err)
	}
	subSubImage1 := filepath.Join(subSubDir, "image4.PNG")

	for path, size := range map[string]int{
		topImage1:     10,
		topImage2:     10,
		topText:       10,
		topEmptyImage: 0,
		subImage1:     10,
		subText1:      10,
		hiddenImage:   10,
		subSubImage1:  10,
	} {
		mustWrite(t, path, size)
	}

	t.Run("recursive", func(t *testing.T) {
		expected := []string{topImage1, topImage2, subImage1, subSubImage1}
		sort.Strings(expected)

		found := collect(t, Run([]string{rootDir}, true, zerolog.Nop()))

		var actual []string
		for _, item := range found {
			actual = append(actual, item.Path)
			if item.Info == nil {
				t.Errorf("FileItem for %s has nil FileInfo", item.Path)
				continue
			}
			if item.Info.IsDir() {
				t.Errorf("FileItem for %s is a directory, should be a file", item.Path)
			}
			if item.Info.Size() == 0 {
				t.Errorf("FileItem for %s has 0 size, should have been skipped", item.Path)
			}
			if !filepath.IsAbs(item.Path) {
				t.Errorf("FileItem path %s is not absolute", item.Path)
			}
		}
		sort.Strings(actual)

		if len(actual) != len(expected) {
			t.Fatalf("Run() found %d image files, want %d\nExpected: %v\nGot: %v",
				len(actual), len(expected), expected, actual)
		}
		for i := range actual {
			if actual[i] != expected[i] {
				t.Errorf("Mismatch in found paths.\nExpected: %v\nGot:      %v", expected, actual)
				break
			}
		}
	})

	t.Run("non-recursive", func(t *testing.T) {
		expected := []string{topImage1, topImage2}
		sort.Strings(expected)

		found := collect(t, Run([]string{rootDir}, false, zerolog.Nop()))
		var actual []string
		for _, item := range found {
			actual = append(actual, item.Path)
		}
		sort.Strings(actual)

		if len(actual) != len(expected) {
			t.Fatalf("Run() found %d image files, want %d\nExpected: %v\nGot: %v",
				len(actual), len(expected), expected, actual)
		}
	})

	t.Run("single file root", func(t *testing.T) {
		found := collect(t, Run([]string{topImage1}, true, zerolog.Nop()))
		if len(found) != 1 || found[0].Path != topImage1 {
			t.Errorf("Run() over a file root = %v, want just %s", found, topImage1)
		}
	})

	t.Run("missing root is skipped", func(t *testing.T) {
		missing := filepath.Join(rootDir, "does-not-exist")
		found := collect(t, Run([]string{missing, topImage1}, true, zerolog.Nop()))
		if len(found) != 1 {
			t.Errorf("Run() with a missing root found %d items, want 1", len(found))
		}
	})
}

func TestBaseDirs(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.jpg")
	mustWrite(t, img, 4)

	dirs := BaseDirs([]string{dir, img, dir})
	if len(dirs) != 1 {
		t.Fatalf("BaseDirs returned %v, want a single deduplicated dir", dirs)
	}
	if dirs[0] != dir {
		t.Errorf("BaseDirs[0] = %s, want %s", dirs[0], dir)
	}

	other := t.TempDir()
	dirs = BaseDirs([]string{dir, other})
	if len(dirs) != 2 {
		t.Fatalf("BaseDirs returned %v, want two dirs", dirs)
	}
}
