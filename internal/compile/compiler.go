// Package compile turns one Markdown source into a finished HTML page:
// metadata merge, templating and link rewriting. It performs no writes.
package compile

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"path/filepath"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/links"
	"git.home.luguber.info/inful/documentation-builder/internal/markdown"
	"git.home.luguber.info/inful/documentation-builder/internal/navigation"
	"git.home.luguber.info/inful/documentation-builder/internal/render"
)

// Page metadata keys set by the compiler.
const (
	KeyContent        = "content"
	KeyTitle          = "title"
	KeySiteRoot       = "site_root"
	KeyTagManagerCode = "tag_manager_code"
)

// Parser converts one source file into an HTML fragment and its frontmatter.
type Parser interface {
	ParseFile(path string) (markdown.Page, error)
}

// Renderer wraps page metadata in the site template.
type Renderer interface {
	Render(metadata map[string]any) (string, error)
}

// MetadataSource provides inherited directory metadata. Returned maps are
// owned by the caller.
type MetadataSource interface {
	Effective(dir string) map[string]any
}

// Settings are the per-target locations and site values.
type Settings struct {
	SourceRoot     string
	OutputRoot     string
	SourceMediaDir string
	OutputMediaDir string
	// MediaURL replaces the computed relative output media path when set.
	MediaURL       string
	SiteRoot       string
	TagManagerCode string
	// LinkExtension replaces ".md" in internal links; empty strips it.
	LinkExtension string
}

// Page is a compiled document.
type Page struct {
	HTML        string
	Title       string
	Fingerprint string
}

// Compiler compiles documents of one source tree. It holds a Parser and is
// therefore owned by a single worker.
type Compiler struct {
	settings Settings
	metadata MetadataSource
	parser   Parser
	renderer Renderer

	oldMedia string
	newMedia string
}

// New creates a compiler. Media paths are resolved once, relative to the
// source and output roots respectively.
func New(settings Settings, metadata MetadataSource, parser Parser, renderer Renderer) (*Compiler, error) {
	c := &Compiler{
		settings: settings,
		metadata: metadata,
		parser:   parser,
		renderer: renderer,
	}

	if settings.SourceMediaDir != "" {
		old, err := relDir(settings.SourceMediaDir, settings.SourceRoot)
		if err != nil {
			return nil, err
		}
		c.oldMedia = old
	}
	c.newMedia = settings.MediaURL
	if c.newMedia == "" && settings.OutputMediaDir != "" {
		rel, err := relDir(settings.OutputMediaDir, settings.OutputRoot)
		if err != nil {
			return nil, err
		}
		c.newMedia = rel
	}
	return c, nil
}

func relDir(target, base string) (string, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", derrors.ConfigError("media path cannot be expressed relative to its root").
			WithCause(err).
			WithContext("path", target).
			Build()
	}
	return filepath.ToSlash(rel), nil
}

// Compile produces the final HTML for doc.
func (c *Compiler) Compile(doc incremental.Document) (Page, error) {
	parsed, err := c.parser.ParseFile(doc.SourcePath)
	if err != nil {
		var pathErr *fs.PathError
		if stderrors.As(err, &pathErr) {
			return Page{}, derrors.FileSystemError("failed to read source").
				WithCause(err).
				WithContext("file", doc.RelPath).
				Build()
		}
		return Page{}, derrors.BuildError("failed to parse source").
			WithCause(err).
			WithContext("file", doc.RelPath).
			Build()
	}

	data := c.metadata.Effective(doc.Dir)
	maps.Copy(data, parsed.Metadata)
	data[KeyContent] = parsed.HTML

	if c.settings.SiteRoot != "" {
		data[KeySiteRoot] = c.settings.SiteRoot
	}
	if c.settings.TagManagerCode != "" {
		data[KeyTagManagerCode] = c.settings.TagManagerCode
	}
	var title string
	switch v := data[KeyTitle].(type) {
	case nil:
		title = render.TitleFromFilename(doc.RelPath)
		data[KeyTitle] = title
	case string:
		title = v
	default:
		// Non-string titles (title: 2024) are kept as declared.
		title = fmt.Sprint(v)
	}

	if nav, ok := data[navigation.KeyNavigation]; ok {
		marked, crumbs := navigation.Mark(nav, path.Base(doc.RelPath))
		data[navigation.KeyNavigation] = marked
		if crumbs != nil {
			data[navigation.KeyBreadcrumbs] = crumbs
		}
	}

	html, err := c.renderer.Render(data)
	if err != nil {
		return Page{}, derrors.BuildError("failed to render page").
			WithCause(err).
			WithContext("file", doc.RelPath).
			Build()
	}

	html = links.RewriteMedia(html, c.oldMedia, c.newMedia, doc.Dir)
	html = links.RewriteInternal(html, c.settings.LinkExtension)

	return Page{HTML: html, Title: title, Fingerprint: parsed.Fingerprint}, nil
}
