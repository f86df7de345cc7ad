package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the explicit build configuration handed to the orchestrator.
// All paths except BaseDirectory are relative to BaseDirectory unless absolute.
type Config struct {
	BaseDirectory   string `yaml:"base_directory"`
	SourceFolder    string `yaml:"source_folder"`
	MediaFolder     string `yaml:"media_folder"`
	OutputPath      string `yaml:"output_path"`
	OutputMediaPath string `yaml:"output_media_path"`
	TemplatePath    string `yaml:"template_path"`

	SiteRoot       string `yaml:"site_root"`
	MediaURL       string `yaml:"media_url"`
	TagManagerCode string `yaml:"tag_manager_code"`

	Force                bool     `yaml:"force"`
	BuildVersionBranches bool     `yaml:"build_version_branches"`
	NoLinkExtensions     bool     `yaml:"no_link_extensions"`
	Quiet                bool     `yaml:"quiet"`
	IgnoreFiles          []string `yaml:"ignore_files"`
	Workers              int      `yaml:"workers"`

	// Remote acquisition. When SourceRepository is set the repository is
	// cloned and BaseDirectory is replaced by the clone location.
	SourceRepository string `yaml:"source_repository"`
	SourceBranch     string `yaml:"source_branch"`
	// SourceToken authenticates HTTPS clones; usually "${GIT_TOKEN}".
	SourceToken string `yaml:"source_token"`
	NoCleanup        bool   `yaml:"no_cleanup"`

	Markdown  MarkdownConfig  `yaml:"markdown"`
	Reporting ReportingConfig `yaml:"reporting"`

	// LinkExtension replaces ".md" in internal links. It is derived from
	// NoLinkExtensions by ApplyDefaults; output files are always ".html".
	LinkExtension string `yaml:"-"`
}

// MarkdownConfig controls the goldmark pipeline.
type MarkdownConfig struct {
	Sanitize   bool     `yaml:"sanitize"`
	Extensions []string `yaml:"extensions"`
}

// ReportingConfig selects the optional build report sinks.
type ReportingConfig struct {
	ManifestPath string `yaml:"manifest_path"`
	HistoryDB    string `yaml:"history_db"`
	MetricsFile  string `yaml:"metrics_file"`
	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`
}

// Load reads a YAML configuration file, expanding ${VAR} references from the
// environment. Defaults are not applied; callers merge CLI overrides first.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		BaseDirectory: ".",
		SourceFolder:  ".",
		MediaFolder:   "media",
		OutputPath:    "build",
		SiteRoot:      "/",
		IgnoreFiles:   []string{"CHANGELOG.md"},
		Markdown: MarkdownConfig{
			Extensions: DefaultMarkdownExtensions(),
		},
		Reporting: ReportingConfig{
			ManifestPath: "build-manifest.json",
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
