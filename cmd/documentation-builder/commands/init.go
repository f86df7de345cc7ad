package commands

import (
	"fmt"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

// DefaultConfigFile is written by 'init' when --config is not given.
const DefaultConfigFile = "documentation-builder.yaml"

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = DefaultConfigFile
	}
	if err := config.Init(path, i.Force); err != nil {
		return derrors.ConfigError("initialization failed").WithCause(err).WithContext("path", path).Build()
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote configuration to %s\n", path)
	return nil
}
