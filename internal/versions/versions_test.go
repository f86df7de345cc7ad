package versions

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

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(p, []byte("1.0\n\n  latest  \n\n"), 0o600))

	names, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "latest"}, names)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestCheckout(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "Docs", Email: "docs@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("one"), 0o600))
	_, err = wt.Add("index.md")
	require.NoError(t, err)
	first, err := wt.Commit("one", &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("1.0"), first)))

	dest := t.TempDir()
	got, err := Checkout(context.Background(), repo, []string{"1.0"}, dest, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(dest, "1.0"), got[0].SourceDir)
	assert.FileExists(t, filepath.Join(dest, "1.0", "index.md"))

	_, err = Checkout(context.Background(), repo, []string{"1.0", "missing"}, t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryGit))
}

func TestCheckoutResolvesBeforeExporting(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	sig := &object.Signature{Name: "Docs", Email: "docs@example.com", When: time.Now()}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("x"), 0o600))
	_, err = wt.Add("index.md")
	require.NoError(t, err)
	hash, err := wt.Commit("x", &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("good"), hash)))

	dest := t.TempDir()
	_, err = Checkout(context.Background(), repo, []string{"good", "bad"}, dest, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
