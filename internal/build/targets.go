package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/fsutil"
	"git.home.luguber.info/inful/documentation-builder/internal/git"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
	"git.home.luguber.info/inful/documentation-builder/internal/metadata"
	"git.home.luguber.info/inful/documentation-builder/internal/render"
	"git.home.luguber.info/inful/documentation-builder/internal/versions"
	"git.home.luguber.info/inful/documentation-builder/internal/workspace"
)

// Target is one source tree and the output locations it is built into.
type Target struct {
	Name           string
	SourceDir      string
	MediaDir       string
	OutputDir      string
	OutputMediaDir string
	// Commit is set for version targets.
	Commit string
}

// skipDirs lists output locations nested in the source that discovery and
// classification must not descend into.
func (t Target) skipDirs() []string {
	var out []string
	for _, d := range []string{t.OutputDir, t.OutputMediaDir} {
		if d != "" && !fsutil.SamePath(d, t.SourceDir) {
			out = append(out, d)
		}
	}
	return out
}

type preparedTarget struct {
	Target
	store *metadata.Store
}

// session holds everything resolved before the first write.
type session struct {
	targets  []*preparedTarget
	renderer *render.Renderer
	ws       *workspace.Manager
	logger   *slog.Logger
}

func (s *session) close() {
	if s.ws == nil {
		return
	}
	if err := s.ws.Cleanup(); err != nil {
		s.logger.Warn("Failed to cleanup workspace", logfields.Error(err))
	}
}

// prepare validates the configuration, acquires the sources and discovers
// metadata for every target. Nothing is written to the output tree.
func (s *Service) prepare(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sess *session, err error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, derrors.ValidationError("invalid configuration").WithCause(err).Build()
	}

	sess = &session{logger: logger}
	defer func() {
		if err != nil {
			sess.close()
			sess = nil
		}
	}()

	stage := s.stageTimer("prepare")
	defer stage()

	if cfg.SourceRepository == "" {
		if err := requireDir(cfg.BaseDirectory); err != nil {
			return sess, err
		}
	}
	sess.renderer, err = render.Load(cfg.TemplateFile())
	if err != nil {
		return sess, err
	}

	// Sources resolve against the clone when a repository is configured;
	// outputs always resolve against the configured base directory.
	srcCfg := *cfg
	if cfg.SourceRepository != "" {
		if err := s.ensureWorkspace(sess, cfg, logger); err != nil {
			return sess, err
		}
		client := s.gitClientFactory(sess.ws.GetPath()).WithLogger(logger).WithToken(cfg.SourceToken)
		clonePath, err := client.Clone(ctx, cfg.SourceRepository, cfg.SourceBranch)
		if err != nil {
			return sess, err
		}
		srcCfg.BaseDirectory = clonePath
	}

	primary := Target{
		Name:           DefaultTargetName,
		SourceDir:      srcCfg.SourceDir(),
		MediaDir:       srcCfg.MediaDir(),
		OutputDir:      cfg.OutputDir(),
		OutputMediaDir: cfg.OutputMediaDir(),
	}
	primaryStore, err := metadata.Discover(primary.SourceDir, primary.skipDirs()...)
	if err != nil {
		return sess, err
	}

	if !cfg.BuildVersionBranches {
		sess.targets = []*preparedTarget{{Target: primary, store: primaryStore}}
		logger.Debug("Discovered metadata", logfields.Path(primary.SourceDir), logfields.Count(primaryStore.Len()))
		return sess, nil
	}

	targets, err := s.versionTargets(ctx, cfg, &srcCfg, primary, sess, logger)
	if err != nil {
		return sess, err
	}
	for _, t := range targets {
		store, err := metadata.Discover(t.SourceDir, t.skipDirs()...)
		if err != nil {
			return sess, err
		}
		sess.targets = append(sess.targets, &preparedTarget{Target: t, store: store})
	}
	return sess, nil
}

// versionTargets exports every version listed in the versions file and
// returns one target per version.
func (s *Service) versionTargets(ctx context.Context, cfg, srcCfg *config.Config, primary Target, sess *session, logger *slog.Logger) ([]Target, error) {
	names, err := versions.ReadFile(srcCfg.VersionsFile())
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(primary.SourceDir)
	if err != nil {
		return nil, derrors.GitError("source directory is not inside a git repository").
			WithCause(err).
			WithContext("path", primary.SourceDir).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, derrors.GitError("repository has no worktree").WithCause(err).Build()
	}
	repoRoot := wt.Filesystem.Root()

	if err := s.ensureWorkspace(sess, cfg, logger); err != nil {
		return nil, err
	}
	dest, err := sess.ws.CreateSubdir("versions")
	if err != nil {
		return nil, derrors.FileSystemError("failed to create versions workspace").WithCause(err).Build()
	}

	exported, err := versions.Checkout(ctx, repo, names, dest, logger)
	if err != nil {
		return nil, err
	}

	relSource := relativeTo(repoRoot, primary.SourceDir)
	relMedia := relativeTo(repoRoot, primary.MediaDir)

	targets := make([]Target, 0, len(exported))
	for _, v := range exported {
		t := Target{
			Name:      v.Name,
			SourceDir: filepath.Join(v.SourceDir, relSource),
			MediaDir:  primary.MediaDir,
			OutputDir: filepath.Join(primary.OutputDir, v.Name),
			Commit:    v.Commit,
		}
		if relMedia != "" {
			t.MediaDir = filepath.Join(v.SourceDir, relMedia)
		}
		if cfg.OutputMediaPath == "" {
			t.OutputMediaDir = filepath.Join(t.OutputDir, config.DefaultMediaFolder)
		} else {
			t.OutputMediaDir = filepath.Join(primary.OutputMediaDir, v.Name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (s *Service) ensureWorkspace(sess *session, cfg *config.Config, logger *slog.Logger) error {
	if sess.ws != nil {
		return nil
	}
	ws := workspace.NewManager(s.workspaceBase, cfg.NoCleanup).WithLogger(logger)
	if err := ws.Create(); err != nil {
		return derrors.FileSystemError("failed to create workspace").WithCause(err).Build()
	}
	sess.ws = ws
	return nil
}

func classifierFor(cfg *config.Config, t *preparedTarget) *incremental.Classifier {
	return &incremental.Classifier{
		SourceRoot:  t.SourceDir,
		OutputRoot:  t.OutputDir,
		Metadata:    t.store,
		IgnoreFiles: cfg.IgnoreFiles,
		SkipDirs:    t.skipDirs(),
	}
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return derrors.MissingBaseDirectory(dir, err)
	}
	if !info.IsDir() {
		return derrors.MissingBaseDirectory(dir, os.ErrInvalid)
	}
	return nil
}

// relativeTo returns target relative to root, or "" when target lies
// outside root.
func relativeTo(root, target string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return rel
}
