// Package commands implements the documentation-builder command line.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/documentation-builder/internal/config"
	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

// LogLevelEnv overrides the log level selected by flags.
const LogLevelEnv = "DOCBUILD_LOG_LEVEL"

// Global is bound into every command's Run.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Optional YAML configuration file; flags override its values" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Quiet   bool             `short:"q" help:"Only log errors"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" default:"withargs" help:"Build HTML pages from the documentation source"`
	Plan    PlanCmd    `cmd:"" help:"Show which documents a build would write, without writing"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild on changes or on a fixed interval"`
	History HistoryCmd `cmd:"" help:"List recorded builds"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`

	level slog.LevelVar
}

// AfterApply runs after flag parsing; loads .env files and sets up logging once.
func (c *CLI) AfterApply() error {
	if _, err := config.LoadEnvFiles("."); err != nil {
		return derrors.ConfigError("failed to load .env file").WithCause(err).Build()
	}
	c.level.Set(parseLogLevel(c.Verbose, c.Quiet))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &c.level})))
	return nil
}

// quietFromConfig raises the level when the configuration asks for quiet
// output and the command line did not request verbose logging.
func (c *CLI) quietFromConfig(cfg *config.Config) {
	if cfg.Quiet && !c.Verbose && os.Getenv(LogLevelEnv) == "" {
		c.level.Set(slog.LevelError)
	}
}

// parseLogLevel picks the level from flags, then lets DOCBUILD_LOG_LEVEL override it.
func parseLogLevel(verbose, quiet bool) slog.Level {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	switch strings.ToLower(os.Getenv(LogLevelEnv)) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return level
}

// SourceFlags are the build settings shared by build, plan and watch.
// Non-zero values override the configuration file.
type SourceFlags struct {
	BaseDirectory   string `name:"base-directory" help:"Directory the other paths are relative to (default: .)"`
	SourceFolder    string `name:"source-folder" help:"Documentation source folder (default: .)"`
	MediaFolder     string `name:"media-folder" help:"Media folder inside the source folder (default: media)"`
	OutputPath      string `name:"output-path" short:"o" help:"Output folder (default: build)"`
	OutputMediaPath string `name:"output-media-path" help:"Output media folder (default: <output>/media)"`
	TemplatePath    string `name:"template-path" help:"HTML template wrapping every page (default: built-in)"`
	SiteRoot        string `name:"site-root" help:"URL prefix of the site root"`
	MediaURL        string `name:"media-url" help:"Absolute URL replacing media links"`
	TagManagerCode  string `name:"tag-manager-code" help:"Google Tag Manager container id"`

	SourceRepository string `name:"source-repository" help:"Git repository to clone and build"`
	SourceBranch     string `name:"source-branch" help:"Branch of the source repository"`
	SourceToken      string `name:"source-token" env:"DOCBUILD_GIT_TOKEN" help:"Access token for cloning over HTTPS"`
	NoCleanup        bool   `name:"no-cleanup" help:"Keep the cloned workspace"`

	Force                bool     `short:"f" help:"Rebuild unmodified files"`
	BuildVersionBranches bool     `name:"build-version-branches" help:"Build every version listed in the versions file"`
	NoLinkExtensions     bool     `name:"no-link-extensions" help:"Strip extensions from internal links"`
	IgnoreFiles          []string `name:"ignore-file" help:"File name to exclude (repeatable)"`
	Workers              int      `help:"Parallel page compilers (default: CPU count)"`
}

func (f *SourceFlags) apply(cfg *config.Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.BaseDirectory, f.BaseDirectory)
	setString(&cfg.SourceFolder, f.SourceFolder)
	setString(&cfg.MediaFolder, f.MediaFolder)
	setString(&cfg.OutputPath, f.OutputPath)
	setString(&cfg.OutputMediaPath, f.OutputMediaPath)
	setString(&cfg.TemplatePath, f.TemplatePath)
	setString(&cfg.SiteRoot, f.SiteRoot)
	setString(&cfg.MediaURL, f.MediaURL)
	setString(&cfg.TagManagerCode, f.TagManagerCode)
	setString(&cfg.SourceRepository, f.SourceRepository)
	setString(&cfg.SourceBranch, f.SourceBranch)
	setString(&cfg.SourceToken, f.SourceToken)

	cfg.NoCleanup = cfg.NoCleanup || f.NoCleanup
	cfg.Force = cfg.Force || f.Force
	cfg.BuildVersionBranches = cfg.BuildVersionBranches || f.BuildVersionBranches
	cfg.NoLinkExtensions = cfg.NoLinkExtensions || f.NoLinkExtensions
	cfg.IgnoreFiles = append(cfg.IgnoreFiles, f.IgnoreFiles...)
	if f.Workers != 0 {
		cfg.Workers = f.Workers
	}
}

// loadConfig reads the optional configuration file and merges flags over it.
func loadConfig(root *CLI, flags *SourceFlags) (*config.Config, error) {
	cfg := &config.Config{}
	if root.Config != "" {
		loaded, err := config.Load(root.Config)
		if err != nil {
			return nil, derrors.ConfigError("failed to load configuration").
				WithCause(err).
				WithContext("path", root.Config).
				Build()
		}
		cfg = loaded
	}
	if flags != nil {
		flags.apply(cfg)
	}
	cfg.Quiet = cfg.Quiet || root.Quiet
	root.quietFromConfig(cfg)
	return cfg, nil
}
