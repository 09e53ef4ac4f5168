package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/observability"
	"github.com/ktedit/kbridge/internal/protocol"
)

var (
	submitJobID   string
	submitNoWait  bool
	submitWaitFor time.Duration
	submitPollGap time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Upload a source file and compile it",
	Long: `Upload a local Kotlin or Java source file to the bridge, start a
compilation job, and poll its status until it finishes.

Examples:
  kbridge submit Main.kt
  kbridge submit --job-id build-42 src/App.java
  kbridge submit --no-wait Main.kt   # Fire and forget, poll later with STATUS`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitJobID, "job-id", "", "Job id to use (default: generated)")
	submitCmd.Flags().BoolVar(&submitNoWait, "no-wait", false, "Do not poll for the result")
	submitCmd.Flags().DurationVar(&submitWaitFor, "wait", 2*time.Minute, "How long to poll for a result")
	submitCmd.Flags().DurationVar(&submitPollGap, "poll-interval", 500*time.Millisecond, "Delay between status polls")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(observability.CLILogger, ExitConfig, "Invalid configuration", err)
	}
	log := observability.CLILogger

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	filename := filepath.Base(path)

	jobID := submitJobID
	if jobID == "" {
		jobID = "job-" + strings.Split(uuid.NewString(), "-")[0]
	}

	client := &protocol.Client{Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)}

	if err := client.SendSource(cmd.Context(), filename, data); err != nil {
		return fmt.Errorf("upload %s: %w", filename, err)
	}
	log.Info("source uploaded", zap.String("filename", filename), zap.Int("bytes", len(data)))

	if err := client.Compile(cmd.Context(), jobID, filename); err != nil {
		return fmt.Errorf("start compilation: %w", err)
	}
	log.Info("compilation started", zap.String("job_id", jobID))

	if submitNoWait {
		log.Info("not waiting for result", zap.String("job_id", jobID))
		return nil
	}

	deadline := time.Now().Add(submitWaitFor)
	for {
		status, err := client.Status(cmd.Context(), jobID)
		if err != nil {
			return fmt.Errorf("poll status: %w", err)
		}
		if status.Terminal() {
			return reportResult(log, jobID, status)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("job %s still running after %s", jobID, submitWaitFor)
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(submitPollGap):
		}
	}
}

func reportResult(log *zap.Logger, jobID string, status protocol.StatusLine) error {
	if status.State == "COMPLETED" {
		log.Info("compilation completed ✅",
			zap.String("job_id", jobID),
			zap.String("artifact", status.OutputPath),
			zap.Int64("elapsed_ms", status.ElapsedMS))
		return nil
	}
	log.Error("compilation failed ❌",
		zap.String("job_id", jobID),
		zap.String("reason", status.ErrorMessage),
		zap.String("details", status.ErrorDetails))
	return fmt.Errorf("%s: %s", status.ErrorMessage, status.ErrorDetails)
}
