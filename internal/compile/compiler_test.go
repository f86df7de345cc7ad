package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/markdown"
	"git.home.luguber.info/inful/documentation-builder/internal/metadata"
	"git.home.luguber.info/inful/documentation-builder/internal/render"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func newCompiler(t *testing.T, src, out string, settings Settings, tmpl string) *Compiler {
	t.Helper()
	store, err := metadata.Discover(src)
	require.NoError(t, err)
	r, err := render.Parse("test.html", tmpl)
	require.NoError(t, err)

	settings.SourceRoot = src
	settings.OutputRoot = out
	c, err := New(settings, store, markdown.NewParser(markdown.Options{}), r)
	require.NoError(t, err)
	return c
}

func doc(src, out, rel string) incremental.Document {
	return incremental.Document{
		SourcePath: filepath.Join(src, filepath.FromSlash(rel)),
		RelPath:    rel,
		OutputPath: incremental.OutputPathFor(out, rel),
		Dir:        filepath.ToSlash(filepath.Dir(rel)),
	}
}

func TestCompileMergesMetadataAndRewritesLinks(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "site_title: Demo\ncolour: blue\n")
	writeFile(t, src, "en/page.md", "---\ncolour: red\n---\n[next](next.md) ![img](../media/logo.png) [ext](https://example.com/a.md)\n")

	c := newCompiler(t, src, out, Settings{
		SourceMediaDir: filepath.Join(src, "media"),
		OutputMediaDir: filepath.Join(out, "static"),
		LinkExtension:  ".html",
		SiteRoot:       "/docs/",
	}, `{{ .site_title }}|{{ .colour }}|{{ .title }}|{{ .site_root }}|{{ .content }}`)

	page, err := c.Compile(doc(src, out, "en/page.md"))
	require.NoError(t, err)

	assert.Contains(t, page.HTML, "Demo|red|Page|/docs/|")
	assert.Contains(t, page.HTML, `href="next.html"`)
	assert.Contains(t, page.HTML, `src="../static/logo.png"`)
	assert.Contains(t, page.HTML, `href="https://example.com/a.md"`)
	assert.NotContains(t, page.HTML, `next.md"`)
	assert.Equal(t, "Page", page.Title)
	assert.NotEmpty(t, page.Fingerprint)
}

func TestCompileMediaURLOverride(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "")
	writeFile(t, src, "index.md", "![a](media/a.png)\n")

	c := newCompiler(t, src, out, Settings{
		SourceMediaDir: filepath.Join(src, "media"),
		OutputMediaDir: filepath.Join(out, "media"),
		MediaURL:       "https://cdn.example.com/media",
	}, `{{ .content }}`)

	page, err := c.Compile(doc(src, out, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, page.HTML, `src="https://cdn.example.com/media/a.png"`)
}

func TestCompileStripsExtensionsWhenDisabled(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "")
	writeFile(t, src, "index.md", "[a](a.md#x)\n")

	c := newCompiler(t, src, out, Settings{}, `{{ .content }}`)
	page, err := c.Compile(doc(src, out, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, page.HTML, `href="a#x"`)
}

func TestCompileNavigationAndBreadcrumbs(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "navigation:\n  - title: Home\n    location: index.md\n  - title: Guide\n    children:\n      - title: Install\n        location: guide/install.md\n")
	writeFile(t, src, "guide/install.md", "# Install\n")

	tmpl := `{{ range .breadcrumbs }}[{{ .title }}]{{ end }}{{ range .navigation }}{{ .title }}:{{ if .active_path }}on{{ end }};{{ end }}`
	c := newCompiler(t, src, out, Settings{LinkExtension: ".html"}, tmpl)

	page, err := c.Compile(doc(src, out, "guide/install.md"))
	require.NoError(t, err)
	assert.Equal(t, "[Guide][Install]Home:;Guide:on;", page.HTML)
}

func TestCompileFrontmatterTitleWins(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "title: Inherited\n")
	writeFile(t, src, "index.md", "---\ntitle: Local\n---\nx\n")

	c := newCompiler(t, src, out, Settings{}, `{{ .title }}`)
	page, err := c.Compile(doc(src, out, "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "Local", page.HTML)
}

func TestCompileKeepsNonStringTitle(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "")
	writeFile(t, src, "release-notes.md", "---\ntitle: 2024\n---\nx\n")

	c := newCompiler(t, src, out, Settings{}, `{{ .title }}`)
	page, err := c.Compile(doc(src, out, "release-notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "2024", page.HTML)
	assert.Equal(t, "2024", page.Title)
}

func TestCompileMissingSource(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "metadata.yaml", "")

	c := newCompiler(t, src, out, Settings{}, `{{ .content }}`)
	_, err := c.Compile(doc(src, out, "gone.md"))
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryFileSystem))
}
