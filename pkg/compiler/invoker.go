package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Result is a successful compilation outcome.
type Result struct {
	// ArtifactPath is the jar (Kotlin) or class-output directory (Java).
	ArtifactPath string

	// Output is whatever the compiler printed on success, usually empty.
	Output string
}

// InvokeError classifies a failed compilation attempt.
type InvokeError struct {
	// Classification is the short, stable failure message.
	Classification string

	// Details carries the raw compiler diagnostics or exception text.
	Details string
}

func (e *InvokeError) Error() string {
	if e.Details == "" {
		return e.Classification
	}
	return fmt.Sprintf("%s: %s", e.Classification, e.Details)
}

// Invoker selects a backend per source file and runs it as a subprocess.
//
// There are no retries: a failed invocation is terminal for that attempt.
type Invoker struct {
	timeout  time.Duration
	backends []Backend
	log      *zap.Logger
}

// NewInvoker builds an invoker with the given wall-clock timeout. When no
// backends are passed, the default Kotlin and Java backends are registered.
func NewInvoker(timeout time.Duration, log *zap.Logger, backends ...Backend) *Invoker {
	if len(backends) == 0 {
		backends = []Backend{&KotlinBackend{}, &JavaBackend{}}
	}
	return &Invoker{
		timeout:  timeout,
		backends: backends,
		log:      log,
	}
}

// Compile runs the matching backend on sourcePath, placing artifacts under
// outDir. It blocks the calling goroutine up to the configured timeout.
func (inv *Invoker) Compile(ctx context.Context, sourcePath, outDir string) (*Result, error) {
	ext := filepath.Ext(sourcePath)
	backend := inv.backendFor(ext)
	if backend == nil {
		return nil, &InvokeError{
			Classification: ClassUnsupported,
			Details:        fmt.Sprintf("no compiler registered for %q files", ext),
		}
	}

	plan := backend.Plan(sourcePath, outDir)
	if err := os.MkdirAll(filepath.Dir(plan.ArtifactPath), 0o755); err != nil {
		return nil, &InvokeError{Classification: ClassError, Details: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, plan.Exe, plan.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// kotlinc is a shell wrapper that spawns a JVM; killing only the
	// wrapper leaves the JVM holding the output pipes and Run blocks past
	// the deadline. Run the invocation in its own process group and kill
	// the whole group on timeout, with WaitDelay as a backstop in case a
	// descendant survives the group kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	inv.log.Debug("invoking compiler",
		zap.String("backend", backend.Name()),
		zap.String("source", sourcePath),
		zap.Strings("args", plan.Args))

	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		inv.log.Info("compilation succeeded",
			zap.String("backend", backend.Name()),
			zap.String("source", sourcePath),
			zap.String("artifact", plan.ArtifactPath),
			zap.Duration("elapsed", elapsed))
		return &Result{
			ArtifactPath: plan.ArtifactPath,
			Output:       stdout.String(),
		}, nil

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		inv.log.Warn("compilation timed out",
			zap.String("backend", backend.Name()),
			zap.String("source", sourcePath),
			zap.Duration("timeout", inv.timeout))
		return nil, &InvokeError{
			Classification: ClassTimeout,
			Details:        fmt.Sprintf("compilation exceeded the %s limit and was terminated", inv.timeout),
		}

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			details := stderr.String()
			if details == "" {
				details = stdout.String()
			}
			inv.log.Warn("compilation failed",
				zap.String("backend", backend.Name()),
				zap.String("source", sourcePath),
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.Duration("elapsed", elapsed))
			return nil, &InvokeError{
				Classification: backend.FailureClassification(),
				Details:        details,
			}
		}

		// Executable missing, permission denied, and friends.
		inv.log.Error("compiler invocation error",
			zap.String("backend", backend.Name()),
			zap.String("source", sourcePath),
			zap.Error(err))
		return nil, &InvokeError{Classification: ClassError, Details: err.Error()}
	}
}

// Timeout returns the configured wall-clock bound.
func (inv *Invoker) Timeout() time.Duration {
	return inv.timeout
}

func (inv *Invoker) backendFor(ext string) Backend {
	for _, b := range inv.backends {
		if b.Supports(ext) {
			return b
		}
	}
	return nil
}
