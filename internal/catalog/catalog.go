package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when an index does not address a
	// record in the current sequence. Views must re-check bounds after any
	// reorder or mutation event before indexing again.
	ErrIndexOutOfRange = errors.New("catalog index out of range")
	// ErrEmptyCatalog is returned by cursor operations while no records
	// are loaded.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrUnknownPath is returned when a mutation names a path the catalog
	// has never loaded.
	ErrUnknownPath = errors.New("path not in catalog")
)

// EventKind says why the catalog changed.
type EventKind int

const (
	// EventRebuilt fires after Build replaced the whole sequence.
	EventRebuilt EventKind = iota
	// EventReordered fires after the sort key changed.
	EventReordered
	// EventMutated fires after a single record's fields changed.
	EventMutated
)

// Event is delivered to subscribers after every catalog change so views
// know to re-render. Path is set for mutations, empty otherwise.
type Event struct {
	Kind   EventKind
	Path   string
	Cursor int
}

// Catalog is the single in-memory ordered view over every store's records.
// All mutations come from one goroutine (the UI/event thread), so no
// locking happens here; background writers touch the stores, never this.
type Catalog struct {
	records []ImageRecord
	byPath  map[string]int
	key     SortKey
	cursor  int // -1 while empty
	subs    []func(Event)
}

// New returns an empty catalog ordered by key.
func New(key SortKey) *Catalog {
	return &Catalog{
		byPath: make(map[string]int),
		key:    key,
		cursor: -1,
	}
}

// Subscribe registers a callback fired after any mutation or reorder.
func (c *Catalog) Subscribe(fn func(Event)) {
	c.subs = append(c.subs, fn)
}

func (c *Catalog) notify(ev Event) {
	ev.Cursor = c.cursor
	for _, fn := range c.subs {
		fn(ev)
	}
}

func (c *Catalog) reindex() {
	for i := range c.records {
		c.byPath[c.records[i].Path] = i
	}
}

// Build replaces the sequence with a sorted copy of records. The cursor
// resets to the first record, or goes absent when records is empty.
func (c *Catalog) Build(records []ImageRecord) {
	c.records = make([]ImageRecord, len(records))
	copy(c.records, records)
	Sort(c.records, c.key)

	c.byPath = make(map[string]int, len(c.records))
	c.reindex()

	if len(c.records) == 0 {
		c.cursor = -1
	} else {
		c.cursor = 0
	}
	c.notify(Event{Kind: EventRebuilt})
}

// Reorder switches the active sort key and recomputes the sequence. The
// cursor follows the record it referenced, not its old index.
func (c *Catalog) Reorder(key SortKey) {
	c.key = key

	var cursorPath string
	if c.cursor >= 0 && c.cursor < len(c.records) {
		cursorPath = c.records[c.cursor].Path
	}

	Sort(c.records, c.key)
	c.reindex()
	c.restoreCursor(cursorPath)
	c.notify(Event{Kind: EventReordered})
}

// restoreCursor points the cursor back at path, clamping to 0 when the
// record is gone and to absent when the catalog is empty.
func (c *Catalog) restoreCursor(path string) {
	if len(c.records) == 0 {
		c.cursor = -1
		return
	}
	if i, ok := c.byPath[path]; ok {
		c.cursor = i
		return
	}
	c.cursor = 0
}

// ApplyMutation updates the in-memory copy of the record at path via apply.
// When the active sort key reads rating or viewed state, the record is
// relocated to its new sorted position; the cursor keeps tracking whatever
// record it referenced before the move.
func (c *Catalog) ApplyMutation(path string, apply func(*ImageRecord)) error {
	i, ok := c.byPath[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	apply(&c.records[i])

	if c.key.DependsOnMutableFields() {
		var cursorPath string
		if c.cursor >= 0 {
			cursorPath = c.records[c.cursor].Path
		}
		Sort(c.records, c.key)
		c.reindex()
		c.restoreCursor(cursorPath)
	}
	c.notify(Event{Kind: EventMutated, Path: path})
	return nil
}

// Get returns a copy of the record at index.
func (c *Catalog) Get(index int) (ImageRecord, error) {
	if index < 0 || index >= len(c.records) {
		return ImageRecord{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.records))
	}
	return c.records[index], nil
}

// Record returns a copy of the record for path, if loaded.
func (c *Catalog) Record(path string) (ImageRecord, bool) {
	i, ok := c.byPath[path]
	if !ok {
		return ImageRecord{}, false
	}
	return c.records[i], true
}

// Len returns the number of records in the sequence.
func (c *Catalog) Len() int { return len(c.records) }

// SortKey returns the active sort key.
func (c *Catalog) SortKey() SortKey { return c.key }

// Cursor returns the current index, or -1 while the catalog is empty.
func (c *Catalog) Cursor() int { return c.cursor }

// SetCursor moves the cursor to index.
func (c *Catalog) SetCursor(index int) error {
	if index < 0 || index >= len(c.records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.records))
	}
	c.cursor = index
	return nil
}

// Current returns the record under the cursor.
func (c *Catalog) Current() (ImageRecord, error) {
	if c.cursor < 0 {
		return ImageRecord{}, ErrEmptyCatalog
	}
	return c.Get(c.cursor)
}

// Records returns a copy of the ordered sequence, for read-only rendering.
func (c *Catalog) Records() []ImageRecord {
	out := make([]ImageRecord, len(c.records))
	copy(out, c.records)
	return out
}
