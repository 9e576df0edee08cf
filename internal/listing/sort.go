// Package listing orders the most recent listing result for presentation.
// It is a pure in-memory layer over the storage client's listing output and
// holds no remote state.
package listing

import (
	"sort"
	"strings"

	"github.com/lolrus/lolrus/internal/storage"
)

// Column selects the sort key for a listing view.
type Column int

const (
	// None preserves provider order.
	None Column = iota
	ByName
	BySize
	ByLastModified
	ByStorageClass
)

// ParseColumn maps a column name to a Column. Unknown names map to None.
func ParseColumn(s string) Column {
	switch strings.ToLower(s) {
	case "name":
		return ByName
	case "size":
		return BySize
	case "modified", "last-modified":
		return ByLastModified
	case "class", "storage-class":
		return ByStorageClass
	default:
		return None
	}
}

// Apply orders objects and prefixes in place by the given column and
// direction. Sorts are stable: ties keep their original relative order, so
// repeated re-sorts are idempotent and never jitter. Only ByName touches
// prefixes; the size, modified, and class keys leave them in provider
// order. Interleaving of prefixes with objects is a presentation decision
// left to the caller.
func Apply(objects []storage.Object, prefixes []string, col Column, ascending bool) {
	SortObjects(objects, col, ascending)
	SortPrefixes(prefixes, col, ascending)
}

// SortObjects orders objects in place. None is a no-op.
func SortObjects(objects []storage.Object, col Column, ascending bool) {
	var less func(a, b storage.Object) bool
	switch col {
	case ByName:
		less = func(a, b storage.Object) bool {
			return strings.ToLower(a.Name()) < strings.ToLower(b.Name())
		}
	case BySize:
		less = func(a, b storage.Object) bool { return a.Size < b.Size }
	case ByLastModified:
		less = func(a, b storage.Object) bool { return a.LastModified.Before(b.LastModified) }
	case ByStorageClass:
		less = func(a, b storage.Object) bool { return a.StorageClass < b.StorageClass }
	default:
		return
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if ascending {
			return less(objects[i], objects[j])
		}
		return less(objects[j], objects[i])
	})
}

// SortPrefixes orders common prefixes in place. Prefixes carry only a name,
// so every column other than ByName leaves them untouched.
func SortPrefixes(prefixes []string, col Column, ascending bool) {
	if col != ByName {
		return
	}
	sort.SliceStable(prefixes, func(i, j int) bool {
		a, b := strings.ToLower(prefixes[i]), strings.ToLower(prefixes[j])
		if ascending {
			return a < b
		}
		return b < a
	})
}
