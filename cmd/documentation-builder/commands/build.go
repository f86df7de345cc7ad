package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/documentation-builder/internal/build"
	"git.home.luguber.info/inful/documentation-builder/internal/config"
	"git.home.luguber.info/inful/documentation-builder/internal/events"
	"git.home.luguber.info/inful/documentation-builder/internal/history"
	"git.home.luguber.info/inful/documentation-builder/internal/incremental"
	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
	"git.home.luguber.info/inful/documentation-builder/internal/metrics"
)

// ReportFlags select where build reports go. Non-empty values override the
// configuration file.
type ReportFlags struct {
	Manifest    string `name:"manifest" help:"Write the build manifest JSON to this path"`
	HistoryDB   string `name:"history-db" help:"Record builds in this SQLite database"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this textfile"`
	NATSURL     string `name:"nats-url" help:"Publish a build-completed event to this NATS server"`
}

func (f *ReportFlags) apply(cfg *config.Config) {
	if f.Manifest != "" {
		cfg.Reporting.ManifestPath = f.Manifest
	}
	if f.HistoryDB != "" {
		cfg.Reporting.HistoryDB = f.HistoryDB
	}
	if f.MetricsFile != "" {
		cfg.Reporting.MetricsFile = f.MetricsFile
	}
	if f.NATSURL != "" {
		cfg.Reporting.NATSURL = f.NATSURL
	}
}

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SourceFlags
	ReportFlags
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, &b.SourceFlags)
	if err != nil {
		return err
	}
	b.ReportFlags.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeSinks := newService(g, cfg)
	defer closeSinks()

	report, err := svc.Run(ctx, cfg)
	if err != nil {
		return err
	}
	printSummary(g.out(), report)
	return nil
}

// newService wires the metrics recorder and the configured report sinks.
// An unreachable NATS server is logged and skipped; the build still runs.
func newService(g *Global, cfg *config.Config) (*build.Service, func()) {
	logger := g.logger()
	reg := prom.NewRegistry()
	svc := build.NewService().
		WithLogger(logger).
		WithRecorder(metrics.NewPrometheusRecorder(reg))

	var closers []func()
	rep := cfg.Reporting
	if rep.ManifestPath != "" {
		svc.WithSinks(manifest.FileSink{Path: rep.ManifestPath})
	}
	if rep.HistoryDB != "" {
		store, err := history.NewSQLiteStore(rep.HistoryDB)
		if err != nil {
			logger.Warn("Build history disabled", logfields.Path(rep.HistoryDB), logfields.Error(err))
		} else {
			svc.WithSinks(store)
			closers = append(closers, func() { _ = store.Close() })
		}
	}
	if rep.MetricsFile != "" {
		svc.WithSinks(metrics.TextfileSink{Gatherer: reg, Path: rep.MetricsFile})
	}
	if rep.NATSURL != "" {
		subject := rep.NATSSubject
		if subject == "" {
			subject = config.DefaultNATSSubject
		}
		pub, err := events.Connect(rep.NATSURL, subject)
		if err != nil {
			logger.Warn("Build events disabled", logfields.URL(rep.NATSURL), logfields.Error(err))
		} else {
			svc.WithSinks(pub)
			closers = append(closers, pub.Close)
		}
	}

	return svc, func() {
		for _, c := range closers {
			c()
		}
	}
}

func printSummary(w io.Writer, report *build.Report) {
	for _, t := range report.Targets {
		_, _ = fmt.Fprintf(w, "%s: %d written, %d unmodified, %d excluded -> %s\n",
			t.Name,
			len(t.Written),
			t.Counts[incremental.StatusUnmodified],
			t.Counts[incremental.StatusExcluded],
			t.OutputDir)
	}
	_, _ = fmt.Fprintf(w, "build %s %s in %s\n", report.BuildID, report.Status, report.Duration.Round(time.Millisecond))
}
