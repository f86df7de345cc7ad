package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

// Revision is a resolved version name.
type Revision struct {
	Name   string
	Ref    plumbing.ReferenceName
	Commit *object.Commit
}

// When is the committer time of the revision.
func (r Revision) When() time.Time { return r.Commit.Committer.When }

// candidateRefs lists, in priority order, the references a version name may denote.
func candidateRefs(name string) []plumbing.ReferenceName {
	return []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName("origin", name),
		plumbing.NewTagReferenceName(name),
	}
}

// Resolve finds name as a local branch, an origin branch or a tag.
func Resolve(repo *git.Repository, name string) (Revision, error) {
	for _, refName := range candidateRefs(name) {
		ref, err := repo.Reference(refName, true)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return Revision{}, derrors.BranchNotFound(name, err)
		}
		commit, err := commitFor(repo, ref.Hash())
		if err != nil {
			return Revision{}, derrors.BranchNotFound(name, err)
		}
		return Revision{Name: name, Ref: refName, Commit: commit}, nil
	}
	return Revision{}, derrors.BranchNotFound(name, &NotFoundError{Op: "resolve", URL: name, Err: plumbing.ErrReferenceNotFound})
}

// commitFor peels annotated tags down to their commit.
func commitFor(repo *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	if commit, err := repo.CommitObject(hash); err == nil {
		return commit, nil
	}
	tag, err := repo.TagObject(hash)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a commit nor a tag: %w", hash, err)
	}
	return tag.Commit()
}

// Export writes the tree of rev into dest. Every file gets the commit time
// as its modification time so that unchanged versions classify as
// unmodified on the next build. Symlinks and submodules are skipped.
func Export(rev Revision, dest string) (int, error) {
	tree, err := rev.Commit.Tree()
	if err != nil {
		return 0, derrors.GitError("failed to read revision tree").WithCause(err).WithContext("version", rev.Name).Build()
	}

	when := rev.When()
	count := 0
	err = tree.Files().ForEach(func(f *object.File) error {
		if f.Mode != filemode.Regular && f.Mode != filemode.Executable && f.Mode != filemode.Deprecated {
			return nil
		}
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		content, err := f.Contents()
		if err != nil {
			return err
		}
		perm, err := f.Mode.ToOSFileMode()
		if err != nil {
			perm = 0o644
		}
		if err := os.WriteFile(target, []byte(content), perm.Perm()); err != nil {
			return err
		}
		if err := os.Chtimes(target, when, when); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, derrors.FileSystemError("failed to export revision").
			WithCause(err).
			WithContext("version", rev.Name).
			WithContext("path", dest).
			Build()
	}
	return count, nil
}
