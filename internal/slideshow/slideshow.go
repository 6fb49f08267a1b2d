// Package slideshow manages the automatic cycling of content.
package slideshow

import (
	"sync"
	"time"
)

const (
	defaultBaseTime = 5 * time.Second
	defaultPerStar  = 500 * time.Millisecond
	// ViewedThreshold is how long an image must stay on screen before a
	// display counts as a view.
	ViewedThreshold = time.Second
)

// Manager handles the slideshow play/pause state and owns the per-image
// display time. The view layer runs the actual timer and calls the
// navigator on expiry.
type Manager struct {
	mu                 sync.Mutex
	isPaused           bool
	wasPlayingBeforeOp bool // Tracks if slideshow was playing before a temp pause
	baseTime           time.Duration
	perStar            time.Duration
}

// NewManager creates a new Manager. baseTime is the display time for an
// unrated image; perStar is added per rating star.
func NewManager(baseTime, perStar time.Duration) *Manager {
	if baseTime <= 0 {
		baseTime = defaultBaseTime
	}
	if perStar < 0 {
		perStar = defaultPerStar
	}
	return &Manager{
		isPaused: false, // Start unpaused (playing) by default
		baseTime: baseTime,
		perStar:  perStar,
	}
}

// DisplayTime returns how long an image with the given rating stays on
// screen: baseTime + rating*perStar.
func (sm *Manager) DisplayTime(rating int) time.Duration {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if rating < 0 {
		rating = 0
	}
	return sm.baseTime + time.Duration(rating)*sm.perStar
}

// SetTiming replaces the base time and per-star increment.
func (sm *Manager) SetTiming(baseTime, perStar time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if baseTime > 0 {
		sm.baseTime = baseTime
	}
	if perStar >= 0 {
		sm.perStar = perStar
	}
}

// TogglePlayPause toggles the play/pause state.
func (sm *Manager) TogglePlayPause() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.isPaused = !sm.isPaused
	sm.wasPlayingBeforeOp = false // User toggle overrides any operation-specific state
}

// Pause forces the slideshow to pause.
// If forOperation is true, it remembers if the slideshow was playing.
func (sm *Manager) Pause(forOperation bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if forOperation {
		sm.wasPlayingBeforeOp = !sm.isPaused
	}
	sm.isPaused = true
}

// ResumeAfterOperation resumes the slideshow only if it was playing before
// Pause(true) was called.
func (sm *Manager) ResumeAfterOperation() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.wasPlayingBeforeOp {
		sm.isPaused = false
	}
	sm.wasPlayingBeforeOp = false
}

// IsPaused returns true if the slideshow is currently paused.
func (sm *Manager) IsPaused() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.isPaused
}
