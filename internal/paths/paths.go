package paths

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	documentLocation = regexp.MustCompile(`^[^ "']+\.md(?:[#?]|$)`)
	urlScheme        = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)
)

// CleanDir canonicalises a directory key: forward slashes, cleaned, relative,
// with the root represented as ".".
func CleanDir(dir string) string {
	dir = filepath.ToSlash(dir)
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return "."
	}
	return dir
}

// Depth returns the number of segments in a canonical directory key.
func Depth(dir string) int {
	dir = CleanDir(dir)
	if dir == "." {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

// HasScheme reports whether s starts with a URL scheme such as "https:".
func HasScheme(s string) bool {
	return urlScheme.MatchString(s)
}

// IsAbsolute reports whether a link target is root-absolute or carries a scheme.
func IsAbsolute(s string) bool {
	return strings.HasPrefix(s, "/") || HasScheme(s)
}

// IsDocumentLocation reports whether s looks like a reference to a local
// Markdown document, optionally followed by a fragment or query.
func IsDocumentLocation(s string) bool {
	return !HasScheme(s) && documentLocation.MatchString(s)
}

// Relativize rewrites location, which is either root-absolute or relative to
// originalBase, so that it is relative to newBase.
func Relativize(location, originalBase, newBase string) string {
	originalBase = strings.Trim(originalBase, "/")
	newBase = strings.Trim(newBase, "/")

	var abs string
	if strings.HasPrefix(location, "/") {
		abs = strings.TrimRight(location, "/")
		if abs == "" {
			abs = "/"
		}
	} else {
		abs = "/" + strings.Trim(path.Join(originalBase, location), "/")
	}
	return RelPath(abs, "/"+newBase)
}

// RelPath returns target expressed relative to base with POSIX relpath
// semantics. Relative inputs are resolved against a common virtual working
// directory, so leading ".." segments are preserved.
func RelPath(target, base string) string {
	target = filepath.ToSlash(target)
	base = filepath.ToSlash(base)

	targetAbs := strings.HasPrefix(target, "/")
	baseAbs := strings.HasPrefix(base, "/")
	if !targetAbs || !baseAbs {
		anchor := virtualRoot(max(leadingParents(target), leadingParents(base)))
		if !targetAbs {
			target = anchor + target
		}
		if !baseAbs {
			base = anchor + base
		}
	}

	t := splitClean(target)
	b := splitClean(base)

	i := 0
	for i < len(t) && i < len(b) && t[i] == b[i] {
		i++
	}

	rel := make([]string, 0, len(b)-i+len(t)-i)
	for range b[i:] {
		rel = append(rel, "..")
	}
	rel = append(rel, t[i:]...)
	if len(rel) == 0 {
		return "."
	}
	return strings.Join(rel, "/")
}

// IsAncestor reports whether dir is target or one of its ancestors.
func IsAncestor(dir, target string) bool {
	rel := RelPath(CleanDir(target), CleanDir(dir))
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// RelativizeTree returns a deep copy of item in which every string that looks
// like a document location has been relativized from originalBase to newBase.
// The input is never modified.
func RelativizeTree(item any, originalBase, newBase string) any {
	switch v := item.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = RelativizeTree(child, originalBase, newBase)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, child := range v {
			out[k] = RelativizeTree(child, originalBase, newBase)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = RelativizeTree(child, originalBase, newBase)
		}
		return out
	case string:
		if IsDocumentLocation(v) {
			return Relativize(v, originalBase, newBase)
		}
		return v
	default:
		return v
	}
}

func splitClean(p string) []string {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func leadingParents(p string) int {
	n := 0
	for _, seg := range strings.Split(path.Clean(p), "/") {
		if seg != ".." {
			break
		}
		n++
	}
	return n
}

// virtualRoot builds an absolute prefix deep enough to absorb n leading
// ".." segments. NUL cannot occur in real path segments.
func virtualRoot(n int) string {
	return "/" + strings.Repeat("\x00/", n)
}
