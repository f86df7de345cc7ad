// Package paths implements the slash-separated path algebra used when
// metadata and links move between directories of the documentation tree.
//
// All functions operate on forward-slash paths regardless of the host OS.
// Directory keys are canonicalised with CleanDir; the documentation root is ".".
package paths
