package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/scheduler"
	"git.home.luguber.info/inful/documentation-builder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	SourceFlags
	ReportFlags
	Interval time.Duration `help:"Rebuild on this interval instead of watching files (e.g. 5m)"`
	Debounce time.Duration `help:"Quiet period before a file change triggers a rebuild" default:"300ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, &w.SourceFlags)
	if err != nil {
		return err
	}
	w.ReportFlags.apply(cfg)
	cfg.ApplyDefaults()
	if cfg.SourceRepository != "" && w.Interval <= 0 {
		return derrors.ValidationError("watching a source repository requires --interval").Build()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeSinks := newService(g, cfg)
	defer closeSinks()

	rebuild := func(ctx context.Context) error {
		_, err := svc.Run(ctx, cfg)
		return err
	}

	// The first build must succeed; later failures are logged and retried on
	// the next change.
	if err := rebuild(ctx); err != nil {
		return err
	}

	if w.Interval > 0 {
		return runScheduled(ctx, g, w.Interval, rebuild)
	}

	watcher := &watch.Watcher{
		Root:     cfg.SourceDir(),
		Skip:     []string{cfg.OutputDir(), cfg.OutputMediaDir()},
		Debounce: w.Debounce,
		Rebuild:  rebuild,
		Logger:   g.logger(),
	}
	return watcher.Run(ctx)
}

func runScheduled(ctx context.Context, g *Global, interval time.Duration, rebuild func(context.Context) error) error {
	s, err := scheduler.New(g.logger())
	if err != nil {
		return err
	}
	if _, err := s.SchedulePeriodicBuild(ctx, interval, rebuild); err != nil {
		_ = s.Stop()
		return err
	}
	s.Start()
	<-ctx.Done()
	return s.Stop()
}
