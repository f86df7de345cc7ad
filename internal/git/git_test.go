package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/retry"
)

var signature = &object.Signature{Name: "Docs", Email: "docs@example.com", When: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func commitFile(t *testing.T, repo *git.Repository, dir, rel, content string, when time.Time) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	_, err = wt.Add(rel)
	require.NoError(t, err)
	sig := *signature
	sig.When = when
	hash, err := wt.Commit("update "+rel, &git.CommitOptions{Author: &sig, Committer: &sig})
	require.NoError(t, err)
	return hash
}

func initRepo(t *testing.T) (*git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return repo, dir
}

func TestResolveBranchRemoteAndTag(t *testing.T) {
	repo, dir := initRepo(t)
	first := commitFile(t, repo, dir, "index.md", "v1", signature.When)
	second := commitFile(t, repo, dir, "index.md", "v2", signature.When.Add(time.Hour))

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("1.0"), first)))
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "2.0"), second)))
	_, err := repo.CreateTag("v1", first, &git.CreateTagOptions{Tagger: signature, Message: "release"})
	require.NoError(t, err)

	rev, err := Resolve(repo, "1.0")
	require.NoError(t, err)
	assert.Equal(t, first, rev.Commit.Hash)

	rev, err = Resolve(repo, "2.0")
	require.NoError(t, err)
	assert.Equal(t, second, rev.Commit.Hash)
	assert.Equal(t, plumbing.NewRemoteReferenceName("origin", "2.0"), rev.Ref)

	rev, err = Resolve(repo, "v1")
	require.NoError(t, err)
	assert.Equal(t, first, rev.Commit.Hash)
}

func TestResolveMissing(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "index.md", "x", signature.When)

	_, err := Resolve(repo, "nope")
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryGit))
}

func TestExportSetsCommitTime(t *testing.T) {
	repo, dir := initRepo(t)
	when := signature.When.Add(2 * time.Hour)
	commitFile(t, repo, dir, "metadata.yaml", "site_title: v\n", signature.When)
	hash := commitFile(t, repo, dir, "en/index.md", "# Hi\n", when)

	commit, err := repo.CommitObject(hash)
	require.NoError(t, err)

	dest := t.TempDir()
	n, err := Export(Revision{Name: "main", Commit: commit}, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dest, "en", "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Hi\n", string(data))

	info, err := os.Stat(filepath.Join(dest, "metadata.yaml"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(when), "got %s", info.ModTime())
}

func TestCloneLocalRepository(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "metadata.yaml", "a: 1\n", signature.When)

	client := NewClient(t.TempDir())
	path, err := client.Clone(context.Background(), dir, "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "metadata.yaml"))

	_, err = Open(path)
	require.NoError(t, err)
}

func TestCloneMissingRepository(t *testing.T) {
	client := NewClient(t.TempDir()).WithRetry(retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 1))
	_, err := client.Clone(context.Background(), filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)
	_, ok := derrors.AsClassified(err)
	assert.True(t, ok)
}
