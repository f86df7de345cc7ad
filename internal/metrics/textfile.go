package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
)

// WriteTextfile writes all metrics gathered from g to path in the text
// exposition format, atomically.
func WriteTextfile(g prom.Gatherer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// TextfileSink rewrites the textfile after every build so a node exporter
// picks up the latest values.
type TextfileSink struct {
	Gatherer prom.Gatherer
	Path     string
}

// Record implements the build report sink. The manifest itself is not
// exported; the recorder has already observed the build.
func (s TextfileSink) Record(_ context.Context, _ *manifest.BuildManifest) error {
	return WriteTextfile(s.Gatherer, s.Path)
}

// Destination is the file Record writes.
func (s TextfileSink) Destination() string { return s.Path }
