// Package markdown converts Markdown sources with optional YAML frontmatter
// into HTML fragments and page metadata.
package markdown

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/inful/mdfp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	"git.home.luguber.info/inful/documentation-builder/internal/frontmatter"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
)

// Metadata keys populated by the parser.
const (
	KeyTableOfContents = "table_of_contents"
	KeyTOCItems        = "toc_items"
)

// Options configures a Parser.
type Options struct {
	Extensions []string
	Sanitize   bool
	Logger     *slog.Logger
}

// Page is the parsed form of one source file.
type Page struct {
	HTML     string
	Metadata map[string]any
	// Fingerprint is the mdfp hash of frontmatter and body.
	Fingerprint string
}

// Parser holds one goldmark instance. A Parser must not be shared between
// goroutines; create one per worker.
type Parser struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
	meta      bool
}

// NewParser builds a parser with the requested extension set.
func NewParser(opts Options) *Parser {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = config.DefaultMarkdownExtensions()
	}

	var extenders []goldmark.Extender
	var parserOpts []parser.Option
	var meta bool
	for _, name := range exts {
		switch name {
		case config.ExtTable:
			extenders = append(extenders, extension.Table)
		case config.ExtDefinitionList:
			extenders = append(extenders, extension.DefinitionList)
		case config.ExtFootnote:
			extenders = append(extenders, extension.Footnote)
		case config.ExtStrikethrough:
			extenders = append(extenders, extension.Strikethrough)
		case config.ExtAttributes:
			parserOpts = append(parserOpts, parser.WithAttribute())
		case config.ExtHeadingIDs:
			parserOpts = append(parserOpts, parser.WithAutoHeadingID())
		case config.ExtMeta:
			meta = true
		}
	}

	p := &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(extenders...),
			goldmark.WithParserOptions(parserOpts...),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		logger: opts.Logger,
		meta:   meta,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if opts.Sanitize {
		p.sanitizer = bluemonday.UGCPolicy()
	}
	return p
}

// ParseFile reads and parses a source file. Filesystem errors are returned;
// malformed frontmatter is not an error.
func (p *Parser) ParseFile(path string) (Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Page{}, err
	}
	page, err := p.Parse(content)
	if err != nil {
		return Page{}, fmt.Errorf("%s: %w", path, err)
	}
	return page, nil
}

// Parse converts content. A frontmatter block that cannot be split or
// decoded as a mapping is treated as part of the Markdown body.
func (p *Parser) Parse(content []byte) (Page, error) {
	doc, fmErr := frontmatter.ParseLenient(content)
	if fmErr != nil {
		p.logger.Debug("Ignoring unreadable frontmatter", logfields.Error(fmErr))
	}

	fields := doc.Fields
	if fields == nil {
		fields = make(map[string]any)
	}
	body := doc.Body
	if p.meta {
		var headers map[string]any
		headers, body = SplitMetaHeaders(body)
		// Headers override frontmatter, matching the order they are read.
		maps.Copy(fields, headers)
	}

	var buf bytes.Buffer
	if err := p.md.Convert(body, &buf); err != nil {
		return Page{}, fmt.Errorf("failed to render markdown: %w", err)
	}

	out := buf.Bytes()
	if p.sanitizer != nil {
		out = p.sanitizer.SanitizeBytes(out)
	}

	page := Page{
		HTML:        string(out),
		Metadata:    fields,
		Fingerprint: mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(doc.Raw), "\n"), string(doc.Body)),
	}

	if truthy(page.Metadata[KeyTableOfContents]) {
		items, err := TableOfContents(page.HTML)
		if err != nil {
			return Page{}, err
		}
		page.Metadata[KeyTOCItems] = items
	}
	return page, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return slices.Contains([]string{"true", "yes", "on", "1"}, strings.ToLower(strings.TrimSpace(t)))
	case int:
		return t != 0
	default:
		return false
	}
}
