// Package config loads bridge configuration from defaults, an optional YAML
// config file, KBRIDGE_* environment variables, and runtime overrides, in
// increasing order of precedence.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ServerConfig controls the TCP protocol listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig controls the optional HTTP admin listener.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// WorkspaceConfig locates the managed source and output directories.
type WorkspaceConfig struct {
	Dir string `mapstructure:"dir"`
}

// CompileConfig bounds compiler invocations.
type CompileConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

// EvictionConfig controls the optional terminal-job sweep. Disabled by
// default: the protocol contract is that job status stays queryable, so
// eviction is strictly opt-in.
type EvictionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
	Interval time.Duration `mapstructure:"interval"`
}

// RegistryConfig groups job registry tuning.
type RegistryConfig struct {
	Eviction EvictionConfig `mapstructure:"eviction"`
}

// LoggingConfig selects log level and output profile.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// EventsConfig enables the JSONL job event trail when Path is non-empty.
type EventsConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the effective bridge configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Compile   CompileConfig   `mapstructure:"compile"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Events    EventsConfig    `mapstructure:"events"`
}

const envPrefix = "KBRIDGE"

// Load builds the effective configuration. Optional override maps are applied
// last and take precedence over file and environment settings.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	for _, o := range overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return nil, fmt.Errorf("merge overrides: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bridge cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Admin.Enabled && (c.Admin.Port <= 0 || c.Admin.Port > 65535) {
		return fmt.Errorf("admin.port out of range: %d", c.Admin.Port)
	}
	if c.Compile.Timeout <= 0 {
		return fmt.Errorf("compile.timeout must be positive: %s", c.Compile.Timeout)
	}
	if c.Compile.MaxConcurrent <= 0 {
		return fmt.Errorf("compile.max_concurrent must be positive: %d", c.Compile.MaxConcurrent)
	}
	if strings.TrimSpace(c.Workspace.Dir) == "" {
		return fmt.Errorf("workspace.dir is required")
	}
	if c.Registry.Eviction.Enabled {
		if c.Registry.Eviction.TTL <= 0 {
			return fmt.Errorf("registry.eviction.ttl must be positive when eviction is enabled")
		}
		if c.Registry.Eviction.Interval <= 0 {
			return fmt.Errorf("registry.eviction.interval must be positive when eviction is enabled")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8765)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "localhost")
	v.SetDefault("admin.port", 8080)

	v.SetDefault("workspace.dir", defaultWorkspaceDir())

	v.SetDefault("compile.timeout", "60s")
	v.SetDefault("compile.max_concurrent", 4)

	v.SetDefault("registry.eviction.enabled", false)
	v.SetDefault("registry.eviction.ttl", "24h")
	v.SetDefault("registry.eviction.interval", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("events.path", "")
}

// bindEnvAliases keeps the short env names the launcher scripts already use.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("server.port", envPrefix+"_PORT", envPrefix+"_SERVER_PORT")
	_ = v.BindEnv("server.host", envPrefix+"_HOST", envPrefix+"_SERVER_HOST")
	_ = v.BindEnv("logging.level", envPrefix+"_LOG_LEVEL", envPrefix+"_LOGGING_LEVEL")
	_ = v.BindEnv("workspace.dir", envPrefix+"_WORKSPACE", envPrefix+"_WORKSPACE_DIR")
	_ = v.BindEnv("admin.enabled", envPrefix+"_ADMIN_ENABLED")
	_ = v.BindEnv("events.path", envPrefix+"_EVENTS_PATH")
}

func defaultWorkspaceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kbridge"
	}
	return filepath.Join(home, ".kbridge")
}
