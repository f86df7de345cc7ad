// Package render substitutes page metadata into an HTML wrapper template.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

//go:embed templates/default.html
var defaultTemplates embed.FS

const defaultTemplateName = "templates/default.html"

// Keys whose values are trusted HTML and must not be escaped.
var rawHTMLKeys = []string{"content", "toc_items"}

// Renderer wraps a parsed html/template. Execute is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	name string
}

// Load parses the template at path, or the embedded default when path is
// empty. A missing explicit template is a configuration error.
func Load(path string) (*Renderer, error) {
	if path == "" {
		tmpl, err := template.New("default.html").ParseFS(defaultTemplates, defaultTemplateName)
		if err != nil {
			return nil, derrors.InternalError("failed to parse embedded template").WithCause(err).Build()
		}
		return &Renderer{tmpl: tmpl, name: "default.html"}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.MissingTemplate(path, err)
		}
		return nil, derrors.FileSystemError("failed to read template").WithCause(err).WithContext("path", path).Build()
	}
	return Parse(filepath.Base(path), string(data))
}

// Parse builds a renderer from template source.
func Parse(name, src string) (*Renderer, error) {
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return nil, derrors.ConfigError("invalid template").WithCause(err).WithContext("template", name).Build()
	}
	return &Renderer{tmpl: tmpl, name: name}, nil
}

// Name identifies the loaded template.
func (r *Renderer) Name() string { return r.name }

// Render executes the template against metadata. String values of content
// and toc_items are inserted unescaped.
func (r *Renderer) Render(metadata map[string]any) (string, error) {
	data := maps.Clone(metadata)
	if data == nil {
		data = map[string]any{}
	}
	for _, key := range rawHTMLKeys {
		if s, ok := data[key].(string); ok {
			data[key] = template.HTML(s) //nolint:gosec // rendered markdown is trusted input
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", r.name, err)
	}
	return buf.String(), nil
}

var titleCaser = cases.Title(language.English)

// TitleFromFilename derives a readable title from a source file name:
// "getting-started.md" becomes "Getting Started".
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	if len(words) == 0 {
		return base
	}
	return titleCaser.String(strings.Join(words, " "))
}
