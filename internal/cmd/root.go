// Package cmd defines the kbridge command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/config"
	"github.com/ktedit/kbridge/internal/observability"
)

// Exit codes reported to the shell.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitConfig      = 2
	ExitUnavailable = 69
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

var (
	flagLogLevel   string
	flagLogProfile string
	flagWorkspace  string
	flagHost       string
	flagPort       int
)

var rootCmd = &cobra.Command{
	Use:   "kbridge",
	Short: "Kotlin/Java desktop compiler bridge",
	Long: `kbridge runs a small TCP service that accepts Kotlin and Java source
files from an editor, compiles them with the local toolchain, and
tracks each compilation job until the editor polls its result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogProfile, "log-profile", "", "Log output profile (STRUCTURED, CONSOLE)")
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "Workspace directory for sources and artifacts")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "Bridge host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Bridge port")
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Error(err.Error())
		return ExitRuntime
	}
	return ExitOK
}

// flagOverrides maps the persistent flags onto config keys so they win
// over file and environment settings.
func flagOverrides() map[string]any {
	o := map[string]any{}
	if flagLogLevel != "" {
		o["logging.level"] = flagLogLevel
	}
	if flagLogProfile != "" {
		o["logging.profile"] = flagLogProfile
	}
	if flagWorkspace != "" {
		o["workspace.dir"] = flagWorkspace
	}
	if flagHost != "" {
		o["server.host"] = flagHost
	}
	if flagPort != 0 {
		o["server.port"] = flagPort
	}
	return o
}

// loadConfig builds the effective config and re-initializes logging
// to match it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), flagOverrides())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := observability.Init(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return cfg, nil
}

// ExitWithCode logs the failure and terminates with the given code.
func ExitWithCode(log *zap.Logger, code int, msg string, err error) {
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	observability.Sync()
	os.Exit(code)
}
