package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	DB    string `name:"db" help:"SQLite history database (default: reporting.history_db)"`
	Limit int    `short:"n" help:"Number of builds to list" default:"10"`
	ID    string `arg:"" optional:"" help:"Print the full manifest of this build"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, nil)
	if err != nil {
		return err
	}
	dbPath := h.DB
	if dbPath == "" {
		dbPath = cfg.Reporting.HistoryDB
	}
	if dbPath == "" {
		return derrors.ValidationError("no history database configured").
			WithContext("hint", "pass --db or set reporting.history_db").
			Build()
	}

	store, err := history.NewSQLiteStore(dbPath)
	if err != nil {
		return derrors.FileSystemError("failed to open history database").WithCause(err).WithContext("path", dbPath).Build()
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.ID != "" {
		m, err := store.Get(ctx, h.ID)
		if err != nil {
			return derrors.NewError(derrors.CategoryNotFound, "build not found").WithCause(err).WithContext("id", h.ID).Build()
		}
		data, err := m.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(g.out(), string(data))
		return err
	}

	entries, err := store.List(ctx, h.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTIME\tSTATUS\tPAGES\tDURATION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Timestamp.Local().Format(time.DateTime),
			e.Status,
			e.Pages,
			(time.Duration(e.DurationMS) * time.Millisecond).String())
	}
	return tw.Flush()
}
