package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Validate checks field combinations that ApplyDefaults cannot repair.
// Filesystem preconditions are checked by the build orchestrator.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	known := DefaultMarkdownExtensions()
	for _, ext := range c.Markdown.Extensions {
		if !slices.Contains(known, ext) {
			return fmt.Errorf("unknown markdown extension: %s", ext)
		}
	}
	if c.MediaURL != "" && !strings.HasPrefix(c.MediaURL, "/") {
		u, err := url.Parse(c.MediaURL)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("media_url must be root-absolute or a full URL: %s", c.MediaURL)
		}
	}
	if c.SourceBranch != "" && c.SourceRepository == "" {
		return fmt.Errorf("source_branch requires source_repository")
	}
	for _, name := range c.IgnoreFiles {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("ignore_files entries must be file names, got %s", name)
		}
	}
	return nil
}
