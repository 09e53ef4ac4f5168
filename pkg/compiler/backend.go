// Package compiler wraps the external Kotlin and Java compilers.
//
// A backend is selected from the source file extension; the invocation runs
// as a subprocess bounded by a wall-clock timeout. Failures are classified
// so callers can expose a short message plus the raw compiler diagnostics.
package compiler

import (
	"path/filepath"
	"strings"
)

// Failure classifications. These strings travel on the status wire and must
// stay stable.
const (
	ClassUnsupported  = "Unsupported file type"
	ClassKotlinFailed = "Kotlin compilation failed"
	ClassJavaFailed   = "Java compilation failed"
	ClassTimeout      = "Compilation timeout"
	ClassError        = "Compilation error"
)

// Plan is one concrete compiler invocation: the executable, its arguments,
// and where the artifact will land on success.
type Plan struct {
	Exe          string
	Args         []string
	ArtifactPath string
}

// Backend maps a source file to a compiler invocation.
type Backend interface {
	// Name identifies the backend (e.g. "kotlinc").
	Name() string

	// Supports reports whether the backend handles the extension (".kt").
	Supports(ext string) bool

	// Plan builds the invocation for a source file and output directory.
	Plan(sourcePath, outDir string) Plan

	// FailureClassification is the short message used when the compiler
	// exits non-zero.
	FailureClassification() string
}

// KotlinBackend compiles .kt files into a self-contained jar.
type KotlinBackend struct {
	// Exe defaults to "kotlinc" when empty.
	Exe string
}

func (k *KotlinBackend) Name() string {
	if k.Exe != "" {
		return k.Exe
	}
	return "kotlinc"
}

func (k *KotlinBackend) Supports(ext string) bool {
	return strings.EqualFold(ext, ".kt")
}

func (k *KotlinBackend) Plan(sourcePath, outDir string) Plan {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	artifact := filepath.Join(outDir, stem+".jar")
	return Plan{
		Exe:          k.Name(),
		Args:         []string{sourcePath, "-include-runtime", "-d", artifact},
		ArtifactPath: artifact,
	}
}

func (k *KotlinBackend) FailureClassification() string { return ClassKotlinFailed }

// JavaBackend compiles .java files into a class-output directory.
type JavaBackend struct {
	// Exe defaults to "javac" when empty.
	Exe string
}

func (j *JavaBackend) Name() string {
	if j.Exe != "" {
		return j.Exe
	}
	return "javac"
}

func (j *JavaBackend) Supports(ext string) bool {
	return strings.EqualFold(ext, ".java")
}

func (j *JavaBackend) Plan(sourcePath, outDir string) Plan {
	classes := filepath.Join(outDir, "classes")
	return Plan{
		Exe:          j.Name(),
		Args:         []string{"-d", classes, sourcePath},
		ArtifactPath: classes,
	}
}

func (j *JavaBackend) FailureClassification() string { return ClassJavaFailed }
