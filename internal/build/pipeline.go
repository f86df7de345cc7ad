package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/documentation-builder/internal/compile"
	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/fsutil"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
	"git.home.luguber.info/inful/documentation-builder/internal/markdown"
)

func (s *Service) stageTimer(stage string) func() {
	start := time.Now()
	return func() { s.recorder.ObserveStageDuration(stage, time.Since(start)) }
}

// buildTarget classifies, compiles and writes one target. Media is copied
// concurrently with compilation since the two write disjoint trees.
func (s *Service) buildTarget(ctx context.Context, cfg *config.Config, sess *session, t *preparedTarget, logger *slog.Logger) (*TargetReport, []manifest.Page, error) {
	logger = logger.With(logfields.Version(t.Name))

	stage := s.stageTimer("classify")
	result, err := classifierFor(cfg, t).Classify(ctx)
	stage()
	if err != nil {
		return nil, nil, err
	}

	counts := result.Counts()
	for status, n := range counts {
		s.recorder.AddDocuments(t.Name, string(status), n)
	}
	for _, doc := range result.Excluded {
		logger.Info("Ignored", logfields.File(doc.RelPath))
	}
	if !cfg.Force {
		for _, doc := range result.Unmodified {
			logger.Info("Skipping unmodified file", logfields.File(doc.RelPath))
		}
	}

	tr := &TargetReport{Target: t.Target, Counts: counts}

	var (
		mediaWG     sync.WaitGroup
		mediaCopied bool
		mediaErr    error
	)
	mediaWG.Add(1)
	go func() {
		defer mediaWG.Done()
		stage := s.stageTimer("media")
		defer stage()
		mediaCopied, mediaErr = copyMedia(t.MediaDir, t.OutputMediaDir, logger)
	}()

	settings := compile.Settings{
		SourceRoot:     t.SourceDir,
		OutputRoot:     t.OutputDir,
		SourceMediaDir: t.MediaDir,
		OutputMediaDir: t.OutputMediaDir,
		MediaURL:       cfg.MediaURL,
		SiteRoot:       cfg.SiteRoot,
		TagManagerCode: cfg.TagManagerCode,
		LinkExtension:  cfg.LinkExtension,
	}
	stage = s.stageTimer("compile")
	pages, written, err := s.compileAll(ctx, cfg, settings, sess, t, result.Buildable(cfg.Force), logger)
	stage()
	mediaWG.Wait()

	tr.Written = written
	tr.MediaCopied = mediaCopied
	s.recorder.AddPagesWritten(t.Name, len(written))
	s.recorder.AddMediaCopied(t.Name, mediaCopied)

	if err != nil {
		return tr, pages, err
	}
	return tr, pages, mediaErr
}

// compileAll runs a bounded pool of workers, each with its own parser and
// compiler. The first failure cancels the remaining work.
func (s *Service) compileAll(ctx context.Context, cfg *config.Config, settings compile.Settings, sess *session, t *preparedTarget, docs []incremental.Document, logger *slog.Logger) ([]manifest.Page, []string, error) {
	if len(docs) == 0 {
		return nil, nil, nil
	}

	workers := min(max(cfg.Workers, 1), len(docs))
	compilers := make([]*compile.Compiler, workers)
	for i := range compilers {
		parser := markdown.NewParser(markdown.Options{
			Extensions: cfg.Markdown.Extensions,
			Sanitize:   cfg.Markdown.Sanitize,
			Logger:     logger,
		})
		c, err := compile.New(settings, t.store, parser, sess.renderer)
		if err != nil {
			return nil, nil, err
		}
		compilers[i] = c
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		pages    []manifest.Page
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	jobs := make(chan incremental.Document)
	for id, c := range compilers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				if ctx.Err() != nil {
					continue
				}
				page, err := compileOne(c, doc, settings.OutputRoot)
				if err != nil {
					fail(err)
					continue
				}
				logger.Info("Created", logfields.Path(doc.OutputPath), logfields.Worker(id))
				mu.Lock()
				pages = append(pages, page)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	pages = sortedPages(pages)
	written := make([]string, 0, len(pages))
	for _, p := range pages {
		written = append(written, filepath.Join(settings.OutputRoot, filepath.FromSlash(p.Output)))
	}

	if firstErr != nil {
		return pages, written, firstErr
	}
	return pages, written, ctx.Err()
}

func compileOne(c *compile.Compiler, doc incremental.Document, outputRoot string) (manifest.Page, error) {
	page, err := c.Compile(doc)
	if err != nil {
		return manifest.Page{}, err
	}
	if err := fsutil.WriteFile(doc.OutputPath, []byte(page.HTML)); err != nil {
		return manifest.Page{}, derrors.FileSystemError("failed to write page").
			WithCause(err).
			WithContext("path", doc.OutputPath).
			Build()
	}
	rel, err := filepath.Rel(outputRoot, doc.OutputPath)
	if err != nil {
		rel = doc.OutputPath
	}
	return manifest.Page{
		Source:      doc.RelPath,
		Output:      filepath.ToSlash(rel),
		Title:       page.Title,
		Fingerprint: page.Fingerprint,
	}, nil
}

// copyMedia merges the source media tree into the output media location.
// A missing source media directory is reported but not fatal.
func copyMedia(src, dst string, logger *slog.Logger) (bool, error) {
	copied, err := fsutil.CopyMedia(src, dst)
	switch {
	case errors.Is(err, fsutil.ErrSourceNotDir):
		logger.Warn("Media directory not found", logfields.Path(src))
		return false, nil
	case err != nil:
		return false, derrors.FileSystemError("failed to copy media").
			WithCause(err).
			WithContext("source", src).
			WithContext("destination", dst).
			Build()
	case copied:
		logger.Info("Copied media", logfields.Path(src), slog.String("destination", dst))
	}
	return copied, nil
}
