// Package runner ties source validation, the job registry, and the
// compiler invoker together. It owns the async lifecycle of a job: a
// caller gets a synchronous accept/reject, and the compile itself runs
// on its own goroutine bounded by a concurrency cap.
package runner

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/workspace"
	"github.com/ktedit/kbridge/pkg/compiler"
	"github.com/ktedit/kbridge/pkg/events"
	"github.com/ktedit/kbridge/pkg/jobregistry"
)

// Compiler is the slice of the invoker the runner needs. Satisfied by
// *compiler.Invoker.
type Compiler interface {
	Compile(ctx context.Context, sourcePath, outDir string) (*compiler.Result, error)
}

// SourceNotFoundError is returned synchronously when the named source was
// never uploaded. No job record is created in that case.
type SourceNotFoundError struct {
	Filename string
}

func (e *SourceNotFoundError) Error() string {
	return "Source file not found: " + e.Filename
}

// Runner starts compilation jobs and records their outcomes.
type Runner struct {
	registry *jobregistry.Registry
	compiler Compiler
	ws       *workspace.Workspace
	events   events.Writer
	log      *zap.Logger

	// sem bounds the number of in-flight compiles. Jobs past the cap
	// stay RUNNING and queue here until a slot frees up.
	sem chan struct{}
	wg  sync.WaitGroup
}

// New builds a runner. maxConcurrent values below 1 are clamped to 1.
func New(registry *jobregistry.Registry, comp Compiler, ws *workspace.Workspace, ev events.Writer, maxConcurrent int, log *zap.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if ev == nil {
		ev = events.Nop{}
	}
	return &Runner{
		registry: registry,
		compiler: comp,
		ws:       ws,
		events:   ev,
		log:      log,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// StartCompile validates the request, registers a RUNNING record, and kicks
// off the compile in the background. Validation failures are returned
// synchronously and leave no trace in the registry.
func (r *Runner) StartCompile(ctx context.Context, jobID, filename string) error {
	filename = strings.TrimSpace(filename)
	if !r.ws.SourceExists(filename) {
		return &SourceNotFoundError{Filename: filename}
	}
	sourcePath, err := r.ws.SourcePath(filename)
	if err != nil {
		return &SourceNotFoundError{Filename: filename}
	}

	rec, err := r.registry.Create(jobID, filename)
	if err != nil {
		return err
	}

	r.log.Info("compilation accepted",
		zap.String("job_id", rec.ID),
		zap.String("source_file", rec.SourceFile))
	r.emit(ctx, rec)

	// The compile must outlive the connection that requested it.
	compileCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		r.run(compileCtx, rec, sourcePath)
	}()

	return nil
}

func (r *Runner) run(ctx context.Context, job jobregistry.JobRecord, sourcePath string) {
	result, err := r.compiler.Compile(ctx, sourcePath, r.ws.OutputDir())
	if err != nil {
		var invErr *compiler.InvokeError
		if !errors.As(err, &invErr) {
			invErr = &compiler.InvokeError{
				Classification: compiler.ClassError,
				Details:        err.Error(),
			}
		}
		// Fail rejects the write if this job was superseded by an id reuse.
		if ferr := r.registry.Fail(job, invErr.Classification, invErr.Details); ferr != nil {
			r.log.Warn("could not record failure", zap.String("job_id", job.ID), zap.Error(ferr))
			return
		}
		r.log.Warn("compilation failed",
			zap.String("job_id", job.ID),
			zap.String("classification", invErr.Classification))
	} else {
		if cerr := r.registry.Complete(job, result.ArtifactPath); cerr != nil {
			r.log.Warn("could not record completion", zap.String("job_id", job.ID), zap.Error(cerr))
			return
		}
		r.log.Info("compilation completed",
			zap.String("job_id", job.ID),
			zap.String("artifact", result.ArtifactPath))
	}

	if rec, ok := r.registry.Get(job.ID); ok {
		r.emit(ctx, rec)
	}
}

func (r *Runner) emit(ctx context.Context, rec jobregistry.JobRecord) {
	ev := &events.JobEventRecord{
		JobID:        rec.ID,
		SourceFile:   rec.SourceFile,
		State:        string(rec.State),
		OutputPath:   rec.OutputPath,
		ErrorMessage: rec.ErrorMessage,
		ErrorDetails: rec.ErrorDetails,
	}
	if rec.State.IsTerminal() {
		ev.ElapsedMS = rec.ElapsedMillis()
	}
	if err := r.events.WriteJob(ctx, ev); err != nil {
		r.log.Warn("event write failed", zap.String("job_id", rec.ID), zap.Error(err))
	}
}

// Wait blocks until every in-flight compile has finished. Used on
// shutdown so terminal states get recorded before the process exits.
func (r *Runner) Wait() {
	r.wg.Wait()
}
