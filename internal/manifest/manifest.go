// Package manifest records what a build read and wrote.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Build status values.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// BuildManifest is a complete record of one build invocation.
type BuildManifest struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Force      bool      `json:"force"`
	Targets    []Target  `json:"targets"`
	Error      string    `json:"error,omitempty"`
}

// Target is one source/output pair, a single tree or one version.
type Target struct {
	Name        string         `json:"name"`
	SourceDir   string         `json:"source_dir"`
	OutputDir   string         `json:"output_dir"`
	Commit      string         `json:"commit,omitempty"`
	Counts      map[string]int `json:"counts"`
	Pages       []Page         `json:"pages"`
	MediaCopied bool           `json:"media_copied"`
}

// Page is one written output file.
type Page struct {
	Source      string `json:"source"`
	Output      string `json:"output"`
	Title       string `json:"title,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// New starts a manifest with a fresh id.
func New(now time.Time) *BuildManifest {
	return &BuildManifest{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
	}
}

// PagesWritten returns the total number of pages across targets.
func (m *BuildManifest) PagesWritten() int {
	n := 0
	for _, t := range m.Targets {
		n += len(t.Pages)
	}
	return n
}

// ToJSON serializes the manifest to JSON.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// WriteFile stores the manifest as indented JSON, creating parent directories.
func (m *BuildManifest) WriteFile(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadFile loads a manifest written by WriteFile.
func ReadFile(path string) (*BuildManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return FromJSON(data)
}

// ContentHash is a deterministic hash over every written page's output path
// and fingerprint. Two builds writing identical content share a hash.
func (m *BuildManifest) ContentHash() string {
	var entries []string
	for _, t := range m.Targets {
		for _, p := range t.Pages {
			entries = append(entries, t.Name+"\x00"+p.Output+"\x00"+p.Fingerprint)
		}
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileSink writes every recorded manifest to Path, replacing the previous one.
type FileSink struct {
	Path string
}

// Record implements the build report sink.
func (s FileSink) Record(_ context.Context, m *BuildManifest) error {
	return m.WriteFile(s.Path)
}

// Destination is the file Record writes.
func (s FileSink) Destination() string { return s.Path }
