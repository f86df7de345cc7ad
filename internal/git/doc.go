// Package git acquires documentation sources with go-git: cloning a remote
// repository and exporting the tree of a named branch or tag.
//
// Errors are returned as classified errors so the CLI can map them to exit
// codes. The typed errors in this package remain reachable through
// errors.As for callers that need the underlying failure kind.
package git
