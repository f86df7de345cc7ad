package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/documentation-builder/cmd/documentation-builder/commands"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("documentation-builder"),
		kong.Description("Build HTML documentation from a tree of Markdown files and metadata.yaml declarations."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Get().String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, cli); err != nil {
		derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
