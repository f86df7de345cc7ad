package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/git"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
	"git.home.luguber.info/inful/documentation-builder/internal/metrics"
)

var past = time.Now().Add(-time.Hour)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(p, past, past))
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

type recordingSink struct {
	manifests []*manifest.BuildManifest
}

func (r *recordingSink) Record(_ context.Context, m *manifest.BuildManifest) error {
	r.manifests = append(r.manifests, m)
	return nil
}

func demoTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeSource(t, base, "metadata.yaml", "site_title: Demo\n")
	writeSource(t, base, "index.md", "# Welcome\n\nSee [the guide](guide/intro.md#start).\n")
	writeSource(t, base, "guide/intro.md", "---\ntitle: Intro\n---\nBack to [home](../index.md).\n")
	writeSource(t, base, "README.md", "not documentation\n")
	return base
}

func TestRunEndToEnd(t *testing.T) {
	base := demoTree(t)
	sink := &recordingSink{}
	cfg := &config.Config{BaseDirectory: base, Workers: 2}

	report, err := NewService().WithSinks(sink).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, BuildStatusSuccess, report.Status)

	out := filepath.Join(base, "build")
	assert.ElementsMatch(t, []string{
		filepath.Join(out, "index.html"),
		filepath.Join(out, "guide", "intro.html"),
	}, report.Written())

	index := readFile(t, filepath.Join(out, "index.html"))
	assert.Contains(t, index, "Demo")
	assert.Contains(t, index, `href="guide/intro.html#start"`)
	assert.NotContains(t, index, `.md"`)
	assert.NotContains(t, index, `.md#`)

	intro := readFile(t, filepath.Join(out, "guide", "intro.html"))
	assert.Contains(t, intro, "<title>Intro | Demo</title>")
	assert.Contains(t, intro, `href="../index.html"`)

	assert.NoFileExists(t, filepath.Join(out, "README.html"))

	require.Len(t, report.Targets, 1)
	counts := report.Targets[0].Counts
	assert.Equal(t, 2, counts[incremental.StatusNew])
	assert.Equal(t, 1, counts[incremental.StatusExcluded])

	require.Len(t, sink.manifests, 1)
	m := sink.manifests[0]
	assert.Equal(t, manifest.StatusSuccess, m.Status)
	assert.Equal(t, report.BuildID, m.ID)
	assert.Equal(t, 2, m.PagesWritten())
}

func TestRunIsIncrementalAndForceIsDeterministic(t *testing.T) {
	base := demoTree(t)
	out := filepath.Join(base, "build")
	svc := NewService()

	_, err := svc.Run(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)
	first := readFile(t, filepath.Join(out, "index.html"))

	second, err := svc.Run(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)
	assert.Empty(t, second.Written())
	assert.Equal(t, 2, second.Targets[0].Counts[incremental.StatusUnmodified])

	forced, err := svc.Run(context.Background(), &config.Config{BaseDirectory: base, Force: true})
	require.NoError(t, err)
	assert.Len(t, forced.Written(), 2)
	assert.Equal(t, first, readFile(t, filepath.Join(out, "index.html")))
}

func TestRunRebuildsWhenMetadataChanges(t *testing.T) {
	base := demoTree(t)
	svc := NewService()
	_, err := svc.Run(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(base, "metadata.yaml"), future, future))

	report, err := svc.Run(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)
	assert.Len(t, report.Written(), 2)
	assert.Equal(t, 2, report.Targets[0].Counts[incremental.StatusModified])
}

func TestRunWithoutMetadataWritesNothing(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "index.md", "# Hello\n")
	sink := &recordingSink{}
	inside := manifest.FileSink{Path: filepath.Join(base, "build", ".manifest.json")}
	outside := manifest.FileSink{Path: filepath.Join(t.TempDir(), "manifest.json")}

	report, err := NewService().WithSinks(sink, inside, outside).Run(context.Background(), &config.Config{BaseDirectory: base})
	require.Error(t, err)
	assert.True(t, derrors.IsNoMetadataFound(err))
	assert.Equal(t, BuildStatusFailed, report.Status)
	assert.NoDirExists(t, filepath.Join(base, "build"))
	assert.FileExists(t, outside.Path)

	require.Len(t, sink.manifests, 1)
	assert.Equal(t, manifest.StatusFailed, sink.manifests[0].Status)
}

func TestRunMissingBaseDirectory(t *testing.T) {
	_, err := NewService().Run(context.Background(), &config.Config{BaseDirectory: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestRunMissingTemplate(t *testing.T) {
	base := demoTree(t)
	_, err := NewService().Run(context.Background(), &config.Config{BaseDirectory: base, TemplatePath: "missing.html"})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
	assert.NoDirExists(t, filepath.Join(base, "build"))
}

func TestRunCopiesMediaAndRewritesLinks(t *testing.T) {
	base := t.TempDir()
	writeSource(t, base, "docs/metadata.yaml", "site_title: Media\n")
	writeSource(t, base, "docs/en/page.md", "![logo](../media/logo.png)\n")
	writeSource(t, base, "docs/media/logo.png", "png")

	cfg := &config.Config{
		BaseDirectory:   base,
		SourceFolder:    "docs",
		OutputPath:      "site",
		OutputMediaPath: "site/static",
	}
	report, err := NewService().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, report.Targets[0].MediaCopied)

	assert.FileExists(t, filepath.Join(base, "site", "static", "logo.png"))
	page := readFile(t, filepath.Join(base, "site", "en", "page.html"))
	assert.Contains(t, page, `src="../static/logo.png"`)
}

func TestRunMissingMediaIsNotFatal(t *testing.T) {
	base := demoTree(t)
	report, err := NewService().Run(context.Background(), &config.Config{BaseDirectory: base, MediaFolder: "absent"})
	require.NoError(t, err)
	assert.False(t, report.Targets[0].MediaCopied)
}

func TestRunNoLinkExtensions(t *testing.T) {
	base := demoTree(t)
	_, err := NewService().Run(context.Background(), &config.Config{BaseDirectory: base, NoLinkExtensions: true})
	require.NoError(t, err)

	index := readFile(t, filepath.Join(base, "build", "index.html"))
	assert.Contains(t, index, `href="guide/intro#start"`)
	assert.FileExists(t, filepath.Join(base, "build", "guide", "intro.html"))
}

func TestRunCanceled(t *testing.T) {
	base := demoTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewService().Run(ctx, &config.Config{BaseDirectory: base})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BuildStatusCanceled, report.Status)
}

func TestPlanWritesNothing(t *testing.T) {
	base := demoTree(t)
	planned, err := NewService().Plan(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Len(t, planned[0].Result.New, 2)
	assert.Len(t, planned[0].Result.Excluded, 1)
	assert.NoDirExists(t, filepath.Join(base, "build"))
}

func commitAll(t *testing.T, repo *gogit.Repository, when time.Time) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddGlob("."))
	sig := &object.Signature{Name: "Docs", Email: "docs@example.com", When: when}
	hash, err := wt.Commit("docs", &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash
}

func TestRunVersionBranches(t *testing.T) {
	base := t.TempDir()
	repo, err := gogit.PlainInit(base, false)
	require.NoError(t, err)

	writeSource(t, base, "docs/metadata.yaml", "site_title: Versioned\n")
	writeSource(t, base, "docs/index.md", "First release\n")
	writeSource(t, base, "docs/versions", "1.0\n\n2.0\n")
	first := commitAll(t, repo, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("1.0"), first)))

	writeSource(t, base, "docs/index.md", "Second release\n")
	second := commitAll(t, repo, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	_, err = repo.CreateTag("2.0", second, nil)
	require.NoError(t, err)

	out := t.TempDir()
	wsBase := t.TempDir()
	cfg := &config.Config{
		BaseDirectory:        base,
		SourceFolder:         "docs",
		OutputPath:           out,
		BuildVersionBranches: true,
	}
	report, err := NewService().WithWorkspaceBase(wsBase).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)
	assert.Equal(t, first.String(), report.Targets[0].Commit)

	assert.Contains(t, readFile(t, filepath.Join(out, "1.0", "index.html")), "First release")
	assert.Contains(t, readFile(t, filepath.Join(out, "2.0", "index.html")), "Second release")

	entries, err := os.ReadDir(wsBase)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace should be removed after the build")
}

func TestRunVersionBranchesUnknownVersion(t *testing.T) {
	base := t.TempDir()
	repo, err := gogit.PlainInit(base, false)
	require.NoError(t, err)
	writeSource(t, base, "metadata.yaml", "site_title: V\n")
	writeSource(t, base, "index.md", "x\n")
	writeSource(t, base, "versions", "missing\n")
	commitAll(t, repo, time.Now())

	out := t.TempDir()
	_, err = NewService().WithWorkspaceBase(t.TempDir()).Run(context.Background(), &config.Config{
		BaseDirectory:        base,
		OutputPath:           out,
		BuildVersionBranches: true,
	})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryGit))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunVersionBranchesRequiresVersionsFile(t *testing.T) {
	base := demoTree(t)
	_, err := NewService().Run(context.Background(), &config.Config{BaseDirectory: base, BuildVersionBranches: true})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestRunClonesSourceRepository(t *testing.T) {
	remote := t.TempDir()
	repo, err := gogit.PlainInit(remote, false)
	require.NoError(t, err)
	writeSource(t, remote, "docs/metadata.yaml", "site_title: Remote\n")
	writeSource(t, remote, "docs/index.md", "# Cloned\n")
	commitAll(t, repo, time.Now())

	base := t.TempDir()
	wsBase := t.TempDir()
	var clonedInto string
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks) * time.Second)
	}

	svc := NewService().
		WithWorkspaceBase(wsBase).
		WithClock(clock).
		WithGitClientFactory(func(dir string) *git.Client {
			clonedInto = dir
			return git.NewClient(dir)
		})
	report, err := svc.Run(context.Background(), &config.Config{
		BaseDirectory:    base,
		SourceRepository: remote,
		SourceFolder:     "docs",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Second, report.Duration)
	assert.NotEmpty(t, clonedInto)

	assert.Contains(t, readFile(t, filepath.Join(base, "build", "index.html")), "Cloned")
	assert.NoDirExists(t, clonedInto, "clone workspace should be removed")
}

func TestRunWritesManifestInsideOutputOnSuccess(t *testing.T) {
	base := demoTree(t)
	inside := manifest.FileSink{Path: filepath.Join(base, "build", ".manifest.json")}

	_, err := NewService().WithSinks(inside).Run(context.Background(), &config.Config{BaseDirectory: base})
	require.NoError(t, err)
	m, err := manifest.ReadFile(inside.Path)
	require.NoError(t, err)
	assert.Equal(t, manifest.StatusSuccess, m.Status)
}

func TestInsideAny(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "build")
	assert.True(t, insideAny(filepath.Join(out, "m.json"), []string{out}))
	assert.True(t, insideAny(out, []string{out}))
	assert.False(t, insideAny(filepath.Join(root, "builder", "m.json"), []string{out}))
	assert.False(t, insideAny(filepath.Join(out, "m.json"), nil))
}

type outcomeRecorder struct {
	metrics.NoopRecorder
	outcomes []metrics.BuildOutcome
}

func (r *outcomeRecorder) IncBuildOutcome(o metrics.BuildOutcome) { r.outcomes = append(r.outcomes, o) }

func TestRunRecordsOutcome(t *testing.T) {
	rec := &outcomeRecorder{}
	svc := NewService().WithRecorder(rec)

	_, err := svc.Run(context.Background(), &config.Config{BaseDirectory: demoTree(t)})
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), &config.Config{BaseDirectory: t.TempDir()})
	require.Error(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, &config.Config{BaseDirectory: demoTree(t)})
	require.Error(t, err)

	assert.Equal(t, []metrics.BuildOutcome{metrics.OutcomeSuccess, metrics.OutcomeFailed, metrics.OutcomeCanceled}, rec.outcomes)
}
