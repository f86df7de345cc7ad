package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
	"git.home.luguber.info/inful/documentation-builder/internal/retry"
)

// Client handles Git operations inside a workspace directory.
type Client struct {
	workspaceDir string
	auth         transport.AuthMethod
	logger       *slog.Logger
	retry        retry.Policy
}

// NewClient creates a new Git client with the specified workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir, logger: slog.Default(), retry: retry.DefaultPolicy()}
}

// WithRetry replaces the backoff applied to transient clone failures.
func (c *Client) WithRetry(p retry.Policy) *Client {
	c.retry = p
	return c
}

// WithToken authenticates HTTP(S) remotes with a bearer-style token.
func (c *Client) WithToken(token string) *Client {
	if token != "" {
		c.auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	return c
}

// WithLogger sets a custom logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Clone clones url into the workspace, checking out branch when given, and
// returns the working tree path. All remote branches are fetched so that
// version names can be resolved against origin.
func (c *Client) Clone(ctx context.Context, url, branch string) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, "source")

	c.logger.Info("Cloning repository", logfields.URL(url), logfields.Ref(branch), logfields.Path(repoPath))
	opts := &git.CloneOptions{URL: url, Auth: c.auth}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	var repository *git.Repository
	err := c.retry.Do(ctx, func() error {
		if err := os.RemoveAll(repoPath); err != nil {
			return fmt.Errorf("failed to remove existing directory: %w", err)
		}
		r, err := git.PlainCloneContext(ctx, repoPath, false, opts)
		if err != nil {
			return classifyCloneError(url, err)
		}
		repository = r
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("Clone failed, retrying",
			logfields.URL(url),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logfields.Error(err))
	})
	if err != nil {
		return "", err
	}
	if ref, herr := repository.Head(); herr == nil {
		c.logger.Info("Repository cloned successfully", logfields.URL(url), slog.String("commit", ref.Hash().String()[:8]))
	}
	return repoPath, nil
}

// Open opens an existing repository at path, searching parent directories.
func Open(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}
