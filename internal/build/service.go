// Package build provides the canonical build execution pipeline.
// All execution paths (CLI build, watch, scheduled rebuilds, tests) route
// through Service.
package build

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	"git.home.luguber.info/inful/documentation-builder/internal/git"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
	"git.home.luguber.info/inful/documentation-builder/internal/metrics"
)

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusFailed   BuildStatus = "failed"
	BuildStatusCanceled BuildStatus = "canceled"
)

// DefaultTargetName names the single target of a build without versions.
const DefaultTargetName = "default"

// Sink receives the manifest of every finished build, successful or not.
type Sink interface {
	Record(ctx context.Context, m *manifest.BuildManifest) error
}

// FileSink is a Sink that writes a local file. When a build fails before
// writing, file sinks whose destination lies inside an output directory are
// skipped so the output tree is not created.
type FileSink interface {
	Sink
	Destination() string
}

// Report is the outcome of one build invocation.
type Report struct {
	BuildID   string
	Status    BuildStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Targets   []TargetReport
	Manifest  *manifest.BuildManifest
}

// TargetReport describes what happened to one source/output pair.
type TargetReport struct {
	Target
	Counts      map[incremental.Status]int
	Written     []string
	MediaCopied bool
}

// Written returns every output path written by the build, in target order.
func (r *Report) Written() []string {
	var out []string
	for _, t := range r.Targets {
		out = append(out, t.Written...)
	}
	return out
}

// Service runs builds. The zero value is not usable; call NewService.
type Service struct {
	logger           *slog.Logger
	recorder         metrics.Recorder
	now              func() time.Time
	gitClientFactory func(workspaceDir string) *git.Client
	workspaceBase    string
	sinks            []Sink
}

// NewService creates a service with default collaborators.
func NewService() *Service {
	return &Service{
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		gitClientFactory: func(dir string) *git.Client {
			return git.NewClient(dir)
		},
	}
}

// WithLogger sets a custom logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithClock replaces time.Now (for testing).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithGitClientFactory allows injecting a custom git client factory.
func (s *Service) WithGitClientFactory(factory func(workspaceDir string) *git.Client) *Service {
	s.gitClientFactory = factory
	return s
}

// WithWorkspaceBase sets where scratch workspaces are allocated.
func (s *Service) WithWorkspaceBase(dir string) *Service {
	s.workspaceBase = dir
	return s
}

// WithSinks appends report sinks.
func (s *Service) WithSinks(sinks ...Sink) *Service {
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	return s
}

// Run executes a complete build: acquire sources, discover metadata for
// every target, then classify, compile and copy media per target.
// Precondition failures are detected before anything is written.
func (s *Service) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	start := s.now()
	m := manifest.New(start)
	m.Force = cfg.Force
	report := &Report{BuildID: m.ID, StartTime: start, Manifest: m}
	logger := s.logger.With(logfields.BuildID(m.ID))

	sess, err := s.prepare(ctx, cfg, logger)
	var protected []string
	if err == nil {
		defer sess.close()
		err = s.execute(ctx, cfg, sess, report, logger)
	} else {
		protected = []string{cfg.OutputDir(), cfg.OutputMediaDir()}
	}

	s.finish(ctx, report, err, protected, logger)
	return report, err
}

func (s *Service) execute(ctx context.Context, cfg *config.Config, sess *session, report *Report, logger *slog.Logger) error {
	for _, t := range sess.targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		tr, pages, err := s.buildTarget(ctx, cfg, sess, t, logger)
		if tr != nil {
			report.Targets = append(report.Targets, *tr)
			report.Manifest.Targets = append(report.Manifest.Targets, manifestTarget(tr, pages))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func manifestTarget(tr *TargetReport, pages []manifest.Page) manifest.Target {
	counts := make(map[string]int, len(tr.Counts))
	for status, n := range tr.Counts {
		counts[string(status)] = n
	}
	return manifest.Target{
		Name:        tr.Name,
		SourceDir:   tr.SourceDir,
		OutputDir:   tr.OutputDir,
		Commit:      tr.Commit,
		Counts:      counts,
		Pages:       pages,
		MediaCopied: tr.MediaCopied,
	}
}

// finish records the outcome and runs the sinks. File sinks writing under a
// protected directory are skipped.
func (s *Service) finish(ctx context.Context, report *Report, err error, protected []string, logger *slog.Logger) {
	report.EndTime = s.now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	m := report.Manifest
	m.DurationMS = report.Duration.Milliseconds()
	switch {
	case err == nil:
		report.Status = BuildStatusSuccess
		m.Status = manifest.StatusSuccess
		s.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
	case errors.Is(err, context.Canceled):
		report.Status = BuildStatusCanceled
		m.Status = manifest.StatusCanceled
		m.Error = err.Error()
		s.recorder.IncBuildOutcome(metrics.OutcomeCanceled)
	default:
		report.Status = BuildStatusFailed
		m.Status = manifest.StatusFailed
		m.Error = err.Error()
		s.recorder.IncBuildOutcome(metrics.OutcomeFailed)
	}
	s.recorder.ObserveBuildDuration(report.Duration)

	logger.Info("Build finished",
		logfields.Status(string(report.Status)),
		logfields.Count(len(report.Written())),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))

	// Sinks still run after cancellation so the failed build is recorded.
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		if fs, ok := sink.(FileSink); ok && insideAny(fs.Destination(), protected) {
			logger.Debug("Skipping report inside output directory", logfields.Path(fs.Destination()))
			continue
		}
		if serr := sink.Record(sinkCtx, m); serr != nil {
			logger.Warn("Failed to record build report", logfields.Error(serr))
		}
	}
}

// PlannedTarget is the classification of one target without any writes.
type PlannedTarget struct {
	Target
	Result *incremental.Result
}

// Plan resolves targets and classifies their documents, writing nothing to
// the output tree.
func (s *Service) Plan(ctx context.Context, cfg *config.Config) ([]PlannedTarget, error) {
	sess, err := s.prepare(ctx, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	planned := make([]PlannedTarget, 0, len(sess.targets))
	for _, t := range sess.targets {
		res, err := classifierFor(cfg, t).Classify(ctx)
		if err != nil {
			return nil, err
		}
		planned = append(planned, PlannedTarget{Target: t.Target, Result: res})
	}
	return planned, nil
}

func sortedPages(pages []manifest.Page) []manifest.Page {
	slices.SortFunc(pages, func(a, b manifest.Page) int { return cmp.Compare(a.Output, b.Output) })
	return pages
}

func insideAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if d != "" && relativeTo(d, p) != "" {
			return true
		}
	}
	return false
}
