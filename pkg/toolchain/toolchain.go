// Package toolchain probes the external compilers the bridge shells out to.
//
// Checks are intended for startup validation and the doctor command: they
// answer "is kotlinc/javac on PATH and does it respond to -version" before
// a long-running bridge accepts compile requests.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Tool names are stable strings used in check output.
const (
	ToolKotlin    = "kotlinc"
	ToolJava      = "javac"
	ToolWorkspace = "workspace"
)

// CheckResult is a single capability check result.
type CheckResult struct {
	Tool      string `json:"tool"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Method    string `json:"method,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Probe runs toolchain checks with a bounded per-command timeout.
type Probe struct {
	// Timeout bounds each version probe. Defaults to 10s.
	Timeout time.Duration

	// KotlinExe/JavaExe override the probed executables, mainly for tests.
	KotlinExe string
	JavaExe   string
}

// Detect probes the Kotlin and Java compilers.
func (p *Probe) Detect(ctx context.Context) []CheckResult {
	kotlin := p.KotlinExe
	if kotlin == "" {
		kotlin = ToolKotlin
	}
	java := p.JavaExe
	if java == "" {
		java = ToolJava
	}

	return []CheckResult{
		p.checkCompiler(ctx, ToolKotlin, kotlin),
		p.checkCompiler(ctx, ToolJava, java),
	}
}

// CheckWorkspace verifies the managed directory is writable.
func CheckWorkspace(dir string) CheckResult {
	res := CheckResult{Tool: ToolWorkspace, Method: fmt.Sprintf("write probe under %s", dir)}

	probe, err := os.CreateTemp(dir, ".kbridge-probe-*")
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	res.Available = true
	res.Detail = filepath.Clean(dir)
	return res
}

func (p *Probe) checkCompiler(ctx context.Context, tool, exe string) CheckResult {
	res := CheckResult{Tool: tool, Method: fmt.Sprintf("%s -version", exe)}

	if _, err := exec.LookPath(exe); err != nil {
		res.Detail = fmt.Sprintf("%s is not installed or not in PATH", exe)
		return res
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Both kotlinc and javac print their version banner on stderr.
	cmd := exec.CommandContext(runCtx, exe, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		res.Detail = fmt.Sprintf("%s -version failed: %v", exe, err)
		return res
	}

	res.Available = true
	res.Version = firstLine(out.String())
	return res
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
