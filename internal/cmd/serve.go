package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/observability"
	"github.com/ktedit/kbridge/internal/protocol"
	"github.com/ktedit/kbridge/internal/runner"
	"github.com/ktedit/kbridge/internal/server"
	"github.com/ktedit/kbridge/internal/server/handlers"
	"github.com/ktedit/kbridge/internal/workspace"
	"github.com/ktedit/kbridge/pkg/compiler"
	"github.com/ktedit/kbridge/pkg/events"
	"github.com/ktedit/kbridge/pkg/jobregistry"
	"github.com/ktedit/kbridge/pkg/toolchain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compiler bridge",
	Long: `Start the TCP bridge and serve compilation requests until interrupted.

Examples:
  kbridge serve                      # Defaults: localhost:8765
  kbridge serve --port 9000          # Custom port
  KBRIDGE_ADMIN_ENABLED=true kbridge serve  # Also expose the HTTP admin API`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ExitWithCode(observability.CLILogger, ExitConfig, "Invalid configuration", err)
	}
	log := observability.CLILogger

	ws := workspace.New(cfg.Workspace.Dir)
	if err := ws.EnsureLayout(); err != nil {
		ExitWithCode(log, ExitConfig, "Cannot prepare workspace", err)
	}

	// Missing compilers are not fatal here: jobs for the absent backend
	// will fail with a classification the client can read.
	probe := &toolchain.Probe{}
	for _, res := range probe.Detect(cmd.Context()) {
		if res.Available {
			log.Info("compiler available", zap.String("tool", res.Tool), zap.String("version", res.Version))
		} else {
			log.Warn("compiler unavailable", zap.String("tool", res.Tool), zap.String("detail", res.Detail))
		}
	}

	var sink events.Writer = events.Nop{}
	var eventsFile *os.File
	if cfg.Events.Path != "" {
		eventsFile, err = os.OpenFile(cfg.Events.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			ExitWithCode(log, ExitConfig, "Cannot open events file", err)
		}
		sink = events.NewJSONLWriter(eventsFile)
		log.Info("event trail enabled", zap.String("path", cfg.Events.Path))
	}

	registry := jobregistry.NewRegistry()
	invoker := compiler.NewInvoker(cfg.Compile.Timeout, log)
	jobs := runner.New(registry, invoker, ws, sink, cfg.Compile.MaxConcurrent, log)
	handler := protocol.NewHandler(jobs, registry, ws, log)
	bridge := server.NewBridge(cfg.Server.Host, cfg.Server.Port, handler, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Registry.Eviction.Enabled {
		janitor := jobregistry.NewJanitor(registry, cfg.Registry.Eviction.TTL, cfg.Registry.Eviction.Interval, log)
		go janitor.Run(ctx)
		log.Info("registry eviction enabled",
			zap.Duration("ttl", cfg.Registry.Eviction.TTL),
			zap.Duration("interval", cfg.Registry.Eviction.Interval))
	}

	if cfg.Admin.Enabled {
		admin := server.NewAdmin(cfg.Admin.Host, cfg.Admin.Port, registry, handlers.BuildInfo{
			Version: versionInfo.Version,
			Commit:  versionInfo.Commit,
			Date:    versionInfo.BuildDate,
		}, log)
		go func() {
			if err := admin.ListenAndServe(ctx); err != nil {
				log.Error("admin server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("starting bridge",
		zap.String("addr", bridge.Addr()),
		zap.String("workspace", ws.Root()),
		zap.Duration("compile_timeout", cfg.Compile.Timeout),
		zap.Int("max_concurrent", cfg.Compile.MaxConcurrent))

	serveErr := bridge.ListenAndServe(ctx)

	// Let in-flight compiles record their terminal state before exit.
	jobs.Wait()
	if err := sink.Close(); err != nil {
		log.Warn("closing event trail", zap.Error(err))
	}
	if eventsFile != nil {
		_ = eventsFile.Close()
	}
	observability.Sync()

	if serveErr != nil {
		return fmt.Errorf("bridge server: %w", serveErr)
	}
	log.Info("bridge stopped")
	return nil
}
