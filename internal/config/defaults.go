package config

import (
	"path/filepath"
	"runtime"
)

const (
	DefaultBaseDirectory = "."
	DefaultSourceFolder  = "."
	DefaultMediaFolder   = "media"
	DefaultOutputPath    = "build"
	DefaultNATSSubject   = "docbuild.build.completed"

	// ExtensionHTML is the output file extension and, unless disabled, the
	// extension of rewritten internal links.
	ExtensionHTML = ".html"
)

// Recognised goldmark extension names.
const (
	ExtTable          = "table"
	ExtDefinitionList = "definition_list"
	ExtFootnote       = "footnote"
	ExtStrikethrough  = "strikethrough"
	ExtAttributes     = "attributes"
	ExtHeadingIDs     = "heading_ids"
	// ExtMeta reads MultiMarkdown "Key: value" headers into page metadata.
	ExtMeta = "meta"
)

// DefaultMarkdownExtensions returns the extension set enabled when none is configured.
func DefaultMarkdownExtensions() []string {
	return []string{ExtTable, ExtDefinitionList, ExtFootnote, ExtStrikethrough, ExtAttributes, ExtHeadingIDs, ExtMeta}
}

// ApplyDefaults fills unset fields. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.BaseDirectory == "" {
		c.BaseDirectory = DefaultBaseDirectory
	}
	if c.SourceFolder == "" {
		c.SourceFolder = DefaultSourceFolder
	}
	if c.MediaFolder == "" {
		c.MediaFolder = DefaultMediaFolder
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if len(c.Markdown.Extensions) == 0 {
		c.Markdown.Extensions = DefaultMarkdownExtensions()
	}
	if c.Reporting.NATSURL != "" && c.Reporting.NATSSubject == "" {
		c.Reporting.NATSSubject = DefaultNATSSubject
	}
	if c.NoLinkExtensions {
		c.LinkExtension = ""
	} else {
		c.LinkExtension = ExtensionHTML
	}
}

// Resolved absolute-or-base-relative locations.

// SourceDir is the documentation source root.
func (c *Config) SourceDir() string { return c.resolve(c.SourceFolder) }

// MediaDir is the source media directory, relative to the source root.
func (c *Config) MediaDir() string {
	if filepath.IsAbs(c.MediaFolder) {
		return filepath.Clean(c.MediaFolder)
	}
	return filepath.Join(c.SourceDir(), c.MediaFolder)
}

// OutputDir is the output root.
func (c *Config) OutputDir() string { return c.resolve(c.OutputPath) }

// OutputMediaDir is the output media directory. It defaults to "media"
// inside the output root.
func (c *Config) OutputMediaDir() string {
	if c.OutputMediaPath == "" {
		return filepath.Join(c.OutputDir(), DefaultMediaFolder)
	}
	return c.resolve(c.OutputMediaPath)
}

// TemplateFile is the explicit template path, or "" for the embedded default.
func (c *Config) TemplateFile() string {
	if c.TemplatePath == "" {
		return ""
	}
	return c.resolve(c.TemplatePath)
}

// VersionsFile is the versions declaration at the source root.
func (c *Config) VersionsFile() string {
	return filepath.Join(c.SourceDir(), "versions")
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.BaseDirectory, p)
}
