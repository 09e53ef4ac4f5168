package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ktedit/kbridge/internal/config"
	"github.com/ktedit/kbridge/internal/observability"
)

var configShowFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect bridge configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration the bridge would run with, after applying
defaults, the config file, environment variables, and flags.

Examples:
  kbridge config show
  kbridge config show --format json`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "yaml", "Output format (yaml, json)")
}

// configView mirrors Config with serialization tags for display.
type configView struct {
	Server struct {
		Host string `yaml:"host" json:"host"`
		Port int    `yaml:"port" json:"port"`
	} `yaml:"server" json:"server"`
	Admin struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Host    string `yaml:"host" json:"host"`
		Port    int    `yaml:"port" json:"port"`
	} `yaml:"admin" json:"admin"`
	Workspace struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"workspace" json:"workspace"`
	Compile struct {
		Timeout       string `yaml:"timeout" json:"timeout"`
		MaxConcurrent int    `yaml:"max_concurrent" json:"max_concurrent"`
	} `yaml:"compile" json:"compile"`
	Registry struct {
		Eviction struct {
			Enabled  bool   `yaml:"enabled" json:"enabled"`
			TTL      string `yaml:"ttl" json:"ttl"`
			Interval string `yaml:"interval" json:"interval"`
		} `yaml:"eviction" json:"eviction"`
	} `yaml:"registry" json:"registry"`
	Logging struct {
		Level   string `yaml:"level" json:"level"`
		Profile string `yaml:"profile" json:"profile"`
	} `yaml:"logging" json:"logging"`
	Events struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"events" json:"events"`
}

func newConfigView(cfg *config.Config) configView {
	var v configView
	v.Server.Host = cfg.Server.Host
	v.Server.Port = cfg.Server.Port
	v.Admin.Enabled = cfg.Admin.Enabled
	v.Admin.Host = cfg.Admin.Host
	v.Admin.Port = cfg.Admin.Port
	v.Workspace.Dir = cfg.Workspace.Dir
	v.Compile.Timeout = cfg.Compile.Timeout.String()
	v.Compile.MaxConcurrent = cfg.Compile.MaxConcurrent
	v.Registry.Eviction.Enabled = cfg.Registry.Eviction.Enabled
	v.Registry.Eviction.TTL = cfg.Registry.Eviction.TTL.String()
	v.Registry.Eviction.Interval = cfg.Registry.Eviction.Interval.String()
	v.Logging.Level = cfg.Logging.Level
	v.Logging.Profile = cfg.Logging.Profile
	v.Events.Path = cfg.Events.Path
	return v
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(observability.CLILogger, ExitConfig, "Invalid configuration", err)
	}

	view := newConfigView(cfg)
	switch configShowFormat {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	default:
		return fmt.Errorf("unknown format %q (expected yaml or json)", configShowFormat)
	}
}
