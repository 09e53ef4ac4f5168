package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/observability"
	"github.com/ktedit/kbridge/pkg/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the local toolchain and workspace.

Examples:
  kbridge doctor               # Full environment check
  kbridge doctor --workspace /tmp/kb  # Check a specific workspace`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	log := observability.CLILogger
	log.Info("=== kbridge doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(log, ExitConfig, "Invalid configuration", err)
	}
	log = observability.CLILogger

	allChecks := true
	checkNum := 1
	totalChecks := 4

	// Check 1/2: compilers
	probe := &toolchain.Probe{}
	for _, res := range probe.Detect(cmd.Context()) {
		if res.Available {
			log.Info(fmt.Sprintf("[%d/%d] Checking %s... ✅ %s", checkNum, totalChecks, res.Tool, res.Version),
				zap.String("tool", res.Tool),
				zap.String("version", res.Version))
		} else {
			log.Warn(fmt.Sprintf("[%d/%d] Checking %s... ❌ %s", checkNum, totalChecks, res.Tool, res.Detail),
				zap.String("tool", res.Tool))
			allChecks = false
		}
		checkNum++
	}

	// Check 3: workspace writable
	wsRes := toolchain.CheckWorkspace(cfg.Workspace.Dir)
	if wsRes.Available {
		log.Info(fmt.Sprintf("[%d/%d] Checking workspace... ✅ %s", checkNum, totalChecks, wsRes.Detail),
			zap.String("workspace", cfg.Workspace.Dir))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking workspace... ❌ %s", checkNum, totalChecks, wsRes.Detail),
			zap.String("workspace", cfg.Workspace.Dir))
		allChecks = false
	}
	checkNum++

	// Check 4: environment
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s (%s)", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH, runtime.Version()),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	log.Info("")
	if allChecks {
		log.Info("All checks passed ✅")
	} else {
		log.Warn("Some checks failed: the bridge may not be able to compile")
		ExitWithCode(log, ExitUnavailable, "Environment is not ready", nil)
	}
}
