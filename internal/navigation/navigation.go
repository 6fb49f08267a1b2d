// Package navigation translates view-relative movement requests (slideshow
// next/previous, grid arrow keys) into catalog cursor changes.
package navigation

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"imgview/internal/catalog"
)

// ErrAtBoundary signals that an advance or retreat hit the end of the
// sequence while looping is disabled. The cursor does not move.
var ErrAtBoundary = errors.New("at catalog boundary")

// Mode is the slideshow traversal direction.
type Mode int

const (
	// Forward advances toward higher indices.
	Forward Mode = iota
	// Backward advances toward lower indices.
	Backward
	// Random jumps to a fresh index distinct from the current one.
	// Random navigation is not reversible: Retreat also picks a new
	// random index, no history is kept.
	Random
)

// ModeNames lists the accepted order names.
var ModeNames = []string{"forward", "backward", "random"}

// ParseMode maps a config/CLI order name to its Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "random":
		return Random, nil
	default:
		return 0, fmt.Errorf("unknown slideshow order %q (valid: forward|backward|random)", name)
	}
}

func (m Mode) String() string {
	switch m {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Direction is a 2-D grid movement request.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Navigator owns the direction mode and loop flag and moves the shared
// catalog cursor. It is a synchronous index transform; auto-advance timing
// belongs to the view layer, which calls Advance on timer expiry.
type Navigator struct {
	cat  *catalog.Catalog
	mode Mode
	loop bool
	rng  *rand.Rand
}

// New creates a Navigator over cat.
func New(cat *catalog.Catalog, mode Mode, loop bool) *Navigator {
	return &Navigator{
		cat:  cat,
		mode: mode,
		loop: loop,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetMode switches the traversal mode.
func (n *Navigator) SetMode(mode Mode) { n.mode = mode }

// Mode returns the active traversal mode.
func (n *Navigator) Mode() Mode { return n.mode }

// SetLoop toggles wrap-around at the sequence ends.
func (n *Navigator) SetLoop(loop bool) { n.loop = loop }

// Loop reports whether wrap-around is enabled.
func (n *Navigator) Loop() bool { return n.loop }

// Advance moves to the next image for the active mode and returns the new
// cursor index. At a boundary without loop it returns the unchanged index
// and ErrAtBoundary.
func (n *Navigator) Advance() (int, error) {
	switch n.mode {
	case Backward:
		return n.step(-1)
	case Random:
		return n.randomJump()
	default:
		return n.step(+1)
	}
}

// Retreat is the inverse of Advance. In random mode there is no inverse;
// it picks a new random index.
func (n *Navigator) Retreat() (int, error) {
	switch n.mode {
	case Backward:
		return n.step(+1)
	case Random:
		return n.randomJump()
	default:
		return n.step(-1)
	}
}

func (n *Navigator) step(delta int) (int, error) {
	count := n.cat.Len()
	if count == 0 {
		return -1, catalog.ErrEmptyCatalog
	}
	cur := n.cat.Cursor()
	next := cur + delta
	if next < 0 || next >= count {
		if !n.loop {
			return cur, ErrAtBoundary
		}
		next = ((next % count) + count) % count
	}
	if err := n.cat.SetCursor(next); err != nil {
		return cur, err
	}
	return next, nil
}

func (n *Navigator) randomJump() (int, error) {
	count := n.cat.Len()
	if count == 0 {
		return -1, catalog.ErrEmptyCatalog
	}
	cur := n.cat.Cursor()
	if count == 1 {
		return cur, nil
	}
	// Pick among all indices except the current one: no immediate repeat.
	next := n.rng.Intn(count - 1)
	if next >= cur {
		next++
	}
	if err := n.cat.SetCursor(next); err != nil {
		return cur, err
	}
	return next, nil
}

// MoveGrid moves the cursor over the sequence treated as a row-major grid
// of the given column count. Up/down move by whole rows, left/right by one.
// Movement clamps at the edges and never wraps, regardless of the loop
// flag. Returns the (possibly unchanged) cursor index.
func (n *Navigator) MoveGrid(dir Direction, columns int) (int, error) {
	count := n.cat.Len()
	if count == 0 {
		return -1, catalog.ErrEmptyCatalog
	}
	if columns < 1 {
		columns = 1
	}
	cur := n.cat.Cursor()
	next := cur
	switch dir {
	case Up:
		if cur-columns >= 0 {
			next = cur - columns
		}
	case Down:
		if cur+columns < count {
			next = cur + columns
		}
	case Left:
		if cur > 0 {
			next = cur - 1
		}
	case Right:
		if cur < count-1 {
			next = cur + 1
		}
	}
	if next != cur {
		if err := n.cat.SetCursor(next); err != nil {
			return cur, err
		}
	}
	return next, nil
}

// JumpTo sets the cursor directly, used when a grid selection is opened
// into the slideshow.
func (n *Navigator) JumpTo(index int) error {
	return n.cat.SetCursor(index)
}
