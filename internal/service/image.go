package service

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageDetails holds on-demand metadata about an image file, for the
// info overlay. Cheap fields live in the catalog record; these require
// opening the file.
type ImageDetails struct {
	Width    int
	Height   int
	Format   string
	Size     int64
	ModTime  time.Time
	EXIFData map[string]string
}

// exifFields are the EXIF tags worth surfacing in the info overlay.
var exifFields = []string{
	"DateTime", "Model", "Make", "ExposureTime", "FNumber", "ISOSpeedRatings", "FocalLength",
}

// extractEXIF pulls common EXIF fields from an image stream. Most
// non-JPEG images carry no EXIF block; that is not an error.
func extractEXIF(r io.Reader) map[string]string {
	x, err := exif.Decode(r)
	if err != nil {
		return nil
	}
	result := make(map[string]string)
	for _, field := range exifFields {
		tag, err := x.Get(exif.FieldName(field))
		if err == nil && tag != nil {
			result[field] = tag.String()
		}
	}
	return result
}

// Inspect returns dimensions, format, file size, mod time and EXIF data
// for the image at path. Only the header is decoded, not the pixels.
func Inspect(path string) (*ImageDetails, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image for info: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	exifData := extractEXIF(f)

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek in image file: %w", err)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for info: %w", err)
	}

	return &ImageDetails{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		EXIFData: exifData,
	}, nil
}
