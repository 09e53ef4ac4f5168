package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/observability"
	"github.com/ktedit/kbridge/internal/workspace"
	"github.com/ktedit/kbridge/pkg/events"
)

var (
	sweepMaxAge   time.Duration
	sweepPatterns []string
	sweepDryRun   bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove old build artifacts from the workspace",
	Long: `Delete artifacts in the workspace output directory older than the
given age. Patterns are glob expressions matched against paths relative
to the output directory.

Examples:
  kbridge sweep                          # Default: artifacts older than 24h
  kbridge sweep --max-age 1h
  kbridge sweep --pattern '**/*.jar'`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 24*time.Hour, "Delete artifacts older than this")
	sweepCmd.Flags().StringArrayVar(&sweepPatterns, "pattern", nil, "Glob pattern relative to the output directory (repeatable)")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Report what would be deleted without deleting")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(observability.CLILogger, ExitConfig, "Invalid configuration", err)
	}
	log := observability.CLILogger

	ws := workspace.New(cfg.Workspace.Dir)
	if sweepDryRun {
		matches, err := ws.SweepCandidates(sweepMaxAge, sweepPatterns)
		if err != nil {
			return err
		}
		for _, m := range matches {
			log.Info("would delete", zap.String("path", m))
		}
		log.Info("dry run complete", zap.Int("candidates", len(matches)))
		return nil
	}

	removed, err := ws.Sweep(sweepMaxAge, sweepPatterns)
	if err != nil {
		return err
	}
	log.Info("sweep complete",
		zap.Int("removed", removed),
		zap.Duration("max_age", sweepMaxAge))

	if cfg.Events.Path != "" {
		f, err := os.OpenFile(cfg.Events.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warn("cannot record sweep event", zap.Error(err))
			return nil
		}
		defer f.Close()
		sink := events.NewJSONLWriter(f)
		defer sink.Close()
		if err := sink.WriteSweep(cmd.Context(), &events.SweepRecord{
			Removed: removed,
			MaxAge:  sweepMaxAge.String(),
		}); err != nil {
			log.Warn("cannot record sweep event", zap.Error(err))
		}
	}
	return nil
}
