// Package incremental decides which Markdown sources need (re)building by
// comparing source, metadata and output modification times.
package incremental
