// Package navigation marks the active entry of a metadata navigation tree
// for one page and derives its breadcrumbs.
package navigation

import (
	"path"
	"strings"
)

// Metadata keys read and written by this package.
const (
	KeyNavigation  = "navigation"
	KeyBreadcrumbs = "breadcrumbs"

	KeyTitle    = "title"
	KeyLocation = "location"
	KeyChildren = "children"
	KeyActive   = "active"
	KeyOnPath   = "active_path"
)

// Mark returns a copy of nav in which the entry pointing at docFile is
// flagged active and each of its ancestors is flagged as being on the
// active path. docFile and entry locations are relative to the page's
// directory. The breadcrumbs list the matched chain root first; it is nil
// when no entry matches. nav itself is never modified.
func Mark(nav any, docFile string) (any, []map[string]any) {
	entries, ok := nav.([]any)
	if !ok {
		return nav, nil
	}

	target := path.Clean(docFile)
	copied := make([]any, len(entries))
	for i, e := range entries {
		copied[i] = copyEntry(e)
	}

	chain := find(copied, target)
	if chain == nil {
		return copied, nil
	}

	crumbs := make([]map[string]any, 0, len(chain))
	for i, entry := range chain {
		entry[KeyOnPath] = true
		if i == len(chain)-1 {
			entry[KeyActive] = true
		}
		crumb := map[string]any{KeyTitle: entry[KeyTitle]}
		if loc, ok := entry[KeyLocation]; ok {
			crumb[KeyLocation] = loc
		}
		crumbs = append(crumbs, crumb)
	}
	return copied, crumbs
}

func find(entries []any, target string) []map[string]any {
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if loc, ok := entry[KeyLocation].(string); ok && matches(loc, target) {
			return []map[string]any{entry}
		}
		if children, ok := entry[KeyChildren].([]any); ok {
			if sub := find(children, target); sub != nil {
				return append([]map[string]any{entry}, sub...)
			}
		}
	}
	return nil
}

func matches(location, target string) bool {
	if i := strings.IndexAny(location, "#?"); i >= 0 {
		location = location[:i]
	}
	if location == "" {
		return false
	}
	return path.Clean(location) == target
}

func copyEntry(e any) any {
	switch t := e.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = copyEntry(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = copyEntry(v)
		}
		return out
	default:
		return t
	}
}
