// Package versions reads the versions declaration of a documentation
// repository and materialises one source tree per listed version.
package versions

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/git"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
)

// FileName is the versions declaration at the source root.
const FileName = "versions"

// Version is one exported version tree.
type Version struct {
	Name string
	// SourceDir is the exported tree root.
	SourceDir string
	Commit    string
}

// ReadFile returns the version names listed in path, one per line, with
// blank lines and surrounding whitespace ignored.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.MissingVersionsFile(path, err)
		}
		return nil, derrors.FileSystemError("failed to read versions file").WithCause(err).WithContext("path", path).Build()
	}
	defer func() { _ = f.Close() }()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, derrors.FileSystemError("failed to read versions file").WithCause(err).WithContext("path", path).Build()
	}
	return names, nil
}

// Checkout resolves every name in repo before exporting anything, then
// exports each version's tree to destRoot/<name>. Any unresolvable name
// aborts the whole checkout.
func Checkout(ctx context.Context, repo *gogit.Repository, names []string, destRoot string, logger *slog.Logger) ([]Version, error) {
	if logger == nil {
		logger = slog.Default()
	}

	revisions := make([]git.Revision, 0, len(names))
	for _, name := range names {
		rev, err := git.Resolve(repo, name)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}

	out := make([]Version, 0, len(revisions))
	for _, rev := range revisions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest := filepath.Join(destRoot, rev.Name)
		n, err := git.Export(rev, dest)
		if err != nil {
			return nil, err
		}
		logger.Info("Exported version", logfields.Version(rev.Name), logfields.Ref(rev.Ref.Short()), logfields.Count(n))
		out = append(out, Version{Name: rev.Name, SourceDir: dest, Commit: rev.Commit.Hash.String()})
	}
	return out, nil
}
