package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
)

func TestSplitMetaHeaders(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     map[string]any
		wantBody string
	}{
		{
			name:     "single values",
			in:       "Title: Install guide\nAuthor: Docs Team\n\n# Install\n",
			want:     map[string]any{"title": "Install guide", "author": "Docs Team"},
			wantBody: "# Install\n",
		},
		{
			name:     "continuation lines",
			in:       "Authors: Ann\n    Bob\nDate: 2024\n\nBody\n",
			want:     map[string]any{"authors": []any{"Ann", "Bob"}, "date": "2024"},
			wantBody: "Body\n",
		},
		{
			name:     "no headers",
			in:       "# Heading\n\nText: not a header\n",
			want:     map[string]any{},
			wantBody: "# Heading\n\nText: not a header\n",
		},
		{
			name:     "leading blank line",
			in:       "\nTitle: x\n",
			want:     map[string]any{},
			wantBody: "\nTitle: x\n",
		},
		{
			name:     "headers end at first plain line",
			in:       "Title: x\nplain paragraph\n",
			want:     map[string]any{"title": "x"},
			wantBody: "plain paragraph\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body := SplitMetaHeaders([]byte(tt.in))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestParseMergesMetaHeadersOverFrontmatter(t *testing.T) {
	p := NewParser(Options{})
	page, err := p.Parse([]byte("---\ntitle: From frontmatter\ncolour: red\n---\nTitle: From header\n\n# Body\n"))
	require.NoError(t, err)

	assert.Equal(t, "From header", page.Metadata["title"])
	assert.Equal(t, "red", page.Metadata["colour"])
	assert.NotContains(t, page.HTML, "From header")
	assert.Contains(t, page.HTML, "Body</h1>")
}

func TestParseMetaHeadersDisabled(t *testing.T) {
	p := NewParser(Options{Extensions: []string{config.ExtTable}})
	page, err := p.Parse([]byte("Title: literal\n"))
	require.NoError(t, err)

	assert.NotContains(t, page.Metadata, "title")
	assert.Contains(t, page.HTML, "Title: literal")
}
