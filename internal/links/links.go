// Package links rewrites href and src attribute values in rendered HTML so
// that they are correct in the output tree.
package links

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/documentation-builder/internal/paths"
)

// attrPrefix matches the start of an href or src attribute value. The
// attribute name must follow whitespace or "<" so that data-src and similar
// names are not matched.
const attrPrefix = `((?:^|[\s<])(?:href|src)\s*=\s*["'])`

// internalLink matches an href/src attribute whose value ends in ".md",
// optionally followed by a fragment or query.
var internalLink = regexp.MustCompile(attrPrefix + `([^"'\s]+?)\.md([#?][^"']*)?(["'])`)

// RewriteInternal replaces the ".md" suffix of local document links with
// extension, which may be empty to strip it. Links carrying a scheme or a
// leading "/" are left untouched, as is any ".md" outside attribute values.
func RewriteInternal(html, extension string) string {
	return internalLink.ReplaceAllStringFunc(html, func(match string) string {
		m := internalLink.FindStringSubmatch(match)
		prefix, target, suffix, quote := m[1], m[2], m[3], m[4]
		if paths.IsAbsolute(target) {
			return match
		}
		return prefix + target + extension + suffix + quote
	})
}

// RewriteMedia replaces media references that start an href/src value with
// oldPath followed by "/" so they point at newPath. Non-absolute paths are
// first made relative to contextDir. An empty oldPath is a no-op.
func RewriteMedia(html, oldPath, newPath, contextDir string) string {
	if oldPath == "" {
		return html
	}
	if !paths.IsAbsolute(oldPath) {
		oldPath = paths.RelPath(oldPath, contextDir)
	}
	if !paths.IsAbsolute(newPath) {
		newPath = paths.RelPath(newPath, contextDir)
	}
	return ReplacePathPrefix(html, oldPath, newPath)
}

// ReplacePathPrefix swaps oldPrefix for newPrefix at the start of every
// href/src value where oldPrefix is followed by "/". A leading "./" on the
// value is absorbed.
func ReplacePathPrefix(html, oldPrefix, newPrefix string) string {
	oldPrefix = strings.TrimRight(oldPrefix, "/")
	newPrefix = strings.TrimRight(newPrefix, "/")
	if oldPrefix == "" || oldPrefix == newPrefix {
		return html
	}
	re := regexp.MustCompile(attrPrefix + `(?:\./)?` + regexp.QuoteMeta(oldPrefix) + `/`)
	return re.ReplaceAllString(html, "${1}"+strings.ReplaceAll(newPrefix, "$", "$$")+"/")
}
