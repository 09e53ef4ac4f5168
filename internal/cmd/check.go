package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/observability"
	"github.com/ktedit/kbridge/internal/protocol"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe a running bridge",
	Long: `Connect to a running bridge and verify it answers the protocol
correctly: PING, a STATUS lookup for a job that cannot exist, and an
unknown command.

Examples:
  kbridge check
  kbridge check --host 10.0.0.5 --port 9000`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(observability.CLILogger, ExitConfig, "Invalid configuration", err)
	}
	log := observability.CLILogger

	client := &protocol.Client{Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)}
	log.Info("probing bridge", zap.String("addr", client.Addr))

	if err := client.Ping(cmd.Context()); err != nil {
		ExitWithCode(log, ExitUnavailable, "PING failed", err)
	}
	log.Info("[1/3] PING... ✅ PONG")

	_, err = client.Status(cmd.Context(), "kbridge-check-probe")
	var remote *protocol.RemoteError
	if !errors.As(err, &remote) || remote.Detail != "Compilation job not found" {
		ExitWithCode(log, ExitUnavailable, "STATUS probe returned an unexpected reply", err)
	}
	log.Info("[2/3] STATUS unknown job... ✅ reported not found")

	resp, err := client.Exchange(cmd.Context(), "BOGUS_COMMAND\n")
	if err != nil {
		ExitWithCode(log, ExitUnavailable, "Unknown-command probe failed", err)
	}
	if resp != "ERROR: Unknown command: BOGUS_COMMAND" {
		ExitWithCode(log, ExitUnavailable, fmt.Sprintf("Unexpected reply to unknown command: %q", resp), nil)
	}
	log.Info("[3/3] Unknown command... ✅ rejected cleanly")

	log.Info("")
	log.Info("Bridge is healthy ✅")
	return nil
}
