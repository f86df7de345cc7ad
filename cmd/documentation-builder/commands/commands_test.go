package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

var past = time.Now().Add(-time.Hour)

func writeTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	files := map[string]string{
		"metadata.yaml":  "site_title: CLI\n",
		"index.md":       "# Home\n\n[Guide](guide/start.md)\n",
		"guide/start.md": "# Start\n",
	}
	for rel, content := range files {
		p := filepath.Join(base, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		require.NoError(t, os.Chtimes(p, past, past))
	}
	return base
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false, false))
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true, false))
	assert.Equal(t, slog.LevelError, parseLogLevel(false, true))

	t.Setenv(LogLevelEnv, "WARN")
	assert.Equal(t, slog.LevelWarn, parseLogLevel(true, false))
}

func TestLoadConfigMergesFlagsOverFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "docs.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output_path: from-file\nsite_root: /docs/\nignore_files: [CHANGELOG.md]\n"), 0o600))

	flags := &SourceFlags{OutputPath: "from-flag", IgnoreFiles: []string{"draft.md"}, Force: true}
	cfg, err := loadConfig(&CLI{Config: cfgPath}, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutputPath)
	assert.Equal(t, "/docs/", cfg.SiteRoot)
	assert.Equal(t, []string{"CHANGELOG.md", "draft.md"}, cfg.IgnoreFiles)
	assert.True(t, cfg.Force)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(&CLI{Config: filepath.Join(t.TempDir(), "nope.yaml")}, nil)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestBuildPlanAndHistory(t *testing.T) {
	base := writeTree(t)
	db := filepath.Join(t.TempDir(), "history.db")
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")
	var out bytes.Buffer
	g := &Global{Out: &out}

	plan := &PlanCmd{SourceFlags: SourceFlags{BaseDirectory: base}}
	require.NoError(t, plan.Run(g, &CLI{}))
	assert.Contains(t, out.String(), "[new] index.md")
	assert.Contains(t, out.String(), "guide/")
	assert.NoDirExists(t, filepath.Join(base, "build"))

	out.Reset()
	cmd := &BuildCmd{
		SourceFlags: SourceFlags{BaseDirectory: base},
		ReportFlags: ReportFlags{HistoryDB: db, Manifest: manifestPath},
	}
	require.NoError(t, cmd.Run(g, &CLI{}))
	assert.Contains(t, out.String(), "default: 2 written")
	assert.FileExists(t, filepath.Join(base, "build", "guide", "start.html"))
	assert.FileExists(t, manifestPath)

	out.Reset()
	require.NoError(t, (&HistoryCmd{DB: db, Limit: 5}).Run(g, &CLI{}))
	assert.Contains(t, out.String(), "success")

	out.Reset()
	require.NoError(t, plan.Run(g, &CLI{}))
	assert.Contains(t, out.String(), "[unmodified] index.md")
}

func TestBuildWithoutMetadataFails(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "index.md"), []byte("# x"), 0o600))

	err := (&BuildCmd{SourceFlags: SourceFlags{BaseDirectory: base}}).Run(&Global{Out: &bytes.Buffer{}}, &CLI{})
	require.Error(t, err)
	assert.Equal(t, 7, derrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, err.Error(), derrors.MsgNoMetadataFound)
}

func TestHistoryRequiresDatabase(t *testing.T) {
	err := (&HistoryCmd{Limit: 1}).Run(&Global{}, &CLI{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryValidation))
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	var out bytes.Buffer
	require.NoError(t, (&InitCmd{}).Run(&Global{Out: &out}, &CLI{Config: path}))
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.OutputPath)

	require.Error(t, (&InitCmd{}).Run(&Global{Out: &out}, &CLI{Config: path}))
}
