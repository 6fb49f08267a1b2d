package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey selects the total ordering applied to the catalog. The set is
// closed; every key ties-break on lowercased filename and then on path, so
// the same input set always produces the same sequence.
type SortKey int

const (
	// SortAlpha orders by filename ascending.
	SortAlpha SortKey = iota
	// SortDirectory groups by directory ascending, then filename.
	SortDirectory
	// SortUnviewed puts unviewed images before viewed ones.
	SortUnviewed
	// SortViewed puts viewed images before unviewed ones.
	SortViewed
	// SortRating orders by rating ascending, unrated (0) first.
	SortRating
	// SortRatingDesc orders by rating descending.
	SortRatingDesc
)

// SortNames lists the accepted sort key names in their canonical order.
var SortNames = []string{"alpha", "directory", "unviewed", "viewed", "rating", "rating-desc"}

var sortKeysByName = map[string]SortKey{
	"alpha":       SortAlpha,
	"directory":   SortDirectory,
	"unviewed":    SortUnviewed,
	"viewed":      SortViewed,
	"rating":      SortRating,
	"rating-desc": SortRatingDesc,
}

// ParseSortKey maps a config/CLI name to its SortKey.
func ParseSortKey(name string) (SortKey, error) {
	key, ok := sortKeysByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown sort key %q (valid: %s)", name, strings.Join(SortNames, "|"))
	}
	return key, nil
}

func (k SortKey) String() string {
	for name, key := range sortKeysByName {
		if key == k {
			return name
		}
	}
	return fmt.Sprintf("SortKey(%d)", int(k))
}

// DependsOnMutableFields reports whether the ordering reads fields the
// mutator can change. Only those keys require relocating a record after a
// rating or viewed-state change.
func (k SortKey) DependsOnMutableFields() bool {
	switch k {
	case SortUnviewed, SortViewed, SortRating, SortRatingDesc:
		return true
	default:
		return false
	}
}

// less is the single comparison function behind every sort key.
func (k SortKey) less(a, b *ImageRecord) bool {
	switch k {
	case SortDirectory:
		da, db := strings.ToLower(a.Directory), strings.ToLower(b.Directory)
		if da != db {
			return da < db
		}
	case SortUnviewed:
		if a.Viewed != b.Viewed {
			return !a.Viewed // unviewed first
		}
	case SortViewed:
		if a.Viewed != b.Viewed {
			return a.Viewed // viewed first
		}
	case SortRating:
		if a.Rating != b.Rating {
			return a.Rating < b.Rating
		}
	case SortRatingDesc:
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
	}
	fa, fb := strings.ToLower(a.Filename), strings.ToLower(b.Filename)
	if fa != fb {
		return fa < fb
	}
	return a.Path < b.Path
}

// Sort orders records in place by the given key.
func Sort(records []ImageRecord, key SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		return key.less(&records[i], &records[j])
	})
}
