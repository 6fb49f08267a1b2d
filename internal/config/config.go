// Package config loads and saves the application configuration.
//
// The config file lives at ~/.config/image-viewer/config.toml and is
// created with defaults on first run. CLI flags override file values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	configDirName  = "image-viewer"
	configFileName = "config.toml"
)

// AppConfig is the merged configuration from the config file and CLI
// arguments. Paths and StartSlideshow come from the CLI only.
type AppConfig struct {
	// Scanning
	Recursive bool
	Paths     []string

	// Display mode
	StartSlideshow bool
	Fullscreen     bool

	// Thumbnail view
	ThumbnailSize int
	Sort          string // alpha|directory|unviewed|viewed|rating|rating-desc

	// Slideshow
	SlideshowTime    float64 // base display time in seconds
	SlideshowOrder   string  // forward|backward|random
	Loop             bool
	RatingMultiplier float64 // extra seconds per rating star

	// Appearance
	HighlightColor    string
	UnviewedIndicator string // border|dot|none
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Recursive:         true,
		Fullscreen:        true,
		ThumbnailSize:     200,
		Sort:              "unviewed",
		SlideshowTime:     5.0,
		SlideshowOrder:    "forward",
		Loop:              false,
		RatingMultiplier:  0.5,
		HighlightColor:    "#4a90d9",
		UnviewedIndicator: "border",
	}
}

// BaseTime returns the slideshow base display time as a duration.
func (c *AppConfig) BaseTime() time.Duration {
	return time.Duration(c.SlideshowTime * float64(time.Second))
}

// PerStar returns the per-rating-star display time increment.
func (c *AppConfig) PerStar() time.Duration {
	return time.Duration(c.RatingMultiplier * float64(time.Second))
}

// fileConfig mirrors the on-disk TOML layout.
type fileConfig struct {
	Defaults   defaultsSection   `toml:"defaults"`
	Appearance appearanceSection `toml:"appearance"`
}

type defaultsSection struct {
	Recursive        *bool    `toml:"recursive"`
	Sort             *string  `toml:"sort"`
	ThumbnailSize    *int     `toml:"thumbnail_size"`
	SlideshowTime    *float64 `toml:"slideshow_time"`
	SlideshowOrder   *string  `toml:"slideshow_order"`
	Loop             *bool    `toml:"loop"`
	Fullscreen       *bool    `toml:"fullscreen"`
	RatingMultiplier *float64 `toml:"rating_multiplier"`
}

type appearanceSection struct {
	HighlightColor    *string `toml:"highlight_color"`
	UnviewedIndicator *string `toml:"unviewed_indicator"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// Load reads the config file at path, filling in defaults for missing
// keys. A missing file is created with defaults; a malformed file is an
// error (the caller decides whether to warn and continue with defaults).
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return cfg, fmt.Errorf("writing default config: %w", err)
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()
	return cfg, cfg.read(f)
}

func (c *AppConfig) read(r io.Reader) error {
	var fc fileConfig
	if _, err := toml.NewDecoder(r).Decode(&fc); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	d := fc.Defaults
	if d.Recursive != nil {
		c.Recursive = *d.Recursive
	}
	if d.Sort != nil {
		c.Sort = *d.Sort
	}
	if d.ThumbnailSize != nil {
		c.ThumbnailSize = *d.ThumbnailSize
	}
	if d.SlideshowTime != nil {
		c.SlideshowTime = *d.SlideshowTime
	}
	if d.SlideshowOrder != nil {
		c.SlideshowOrder = *d.SlideshowOrder
	}
	if d.Loop != nil {
		c.Loop = *d.Loop
	}
	if d.Fullscreen != nil {
		c.Fullscreen = *d.Fullscreen
	}
	if d.RatingMultiplier != nil {
		c.RatingMultiplier = *d.RatingMultiplier
	}

	a := fc.Appearance
	if a.HighlightColor != nil {
		c.HighlightColor = *a.HighlightColor
	}
	if a.UnviewedIndicator != nil {
		c.UnviewedIndicator = *a.UnviewedIndicator
	}
	return nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config %s: %w", path, err)
	}
	defer f.Close()
	return cfg.write(f)
}

func (c *AppConfig) write(w io.Writer) error {
	fc := fileConfig{
		Defaults: defaultsSection{
			Recursive:        &c.Recursive,
			Sort:             &c.Sort,
			ThumbnailSize:    &c.ThumbnailSize,
			SlideshowTime:    &c.SlideshowTime,
			SlideshowOrder:   &c.SlideshowOrder,
			Loop:             &c.Loop,
			Fullscreen:       &c.Fullscreen,
			RatingMultiplier: &c.RatingMultiplier,
		},
		Appearance: appearanceSection{
			HighlightColor:    &c.HighlightColor,
			UnviewedIndicator: &c.UnviewedIndicator,
		},
	}
	if err := toml.NewEncoder(w).Encode(fc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
