package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ktedit/kbridge/internal/workspace"
	"github.com/ktedit/kbridge/pkg/compiler"
	"github.com/ktedit/kbridge/pkg/events"
	"github.com/ktedit/kbridge/pkg/jobregistry"
)

type compileFunc func(ctx context.Context, sourcePath, outDir string) (*compiler.Result, error)

func (f compileFunc) Compile(ctx context.Context, sourcePath, outDir string) (*compiler.Result, error) {
	return f(ctx, sourcePath, outDir)
}

func newTestWorkspace(t *testing.T, filenames ...string) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(t.TempDir())
	require.NoError(t, ws.EnsureLayout())
	for _, name := range filenames {
		_, err := ws.WriteSource(name, []byte("fun main() {}\n"))
		require.NoError(t, err)
	}
	return ws
}

func waitTerminal(t *testing.T, reg *jobregistry.Registry, jobID string) jobregistry.JobRecord {
	t.Helper()
	var rec jobregistry.JobRecord
	require.Eventually(t, func() bool {
		r, ok := reg.Get(jobID)
		if !ok {
			return false
		}
		rec = r
		return r.State.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}

func TestRunner_StartCompile_Success(t *testing.T) {
	ws := newTestWorkspace(t, "Hello.kt")
	reg := jobregistry.NewRegistry()

	comp := compileFunc(func(_ context.Context, sourcePath, outDir string) (*compiler.Result, error) {
		assert.True(t, strings.HasSuffix(sourcePath, "Hello.kt"))
		assert.Equal(t, ws.OutputDir(), outDir)
		return &compiler.Result{ArtifactPath: outDir + "/Hello.jar"}, nil
	})

	r := New(reg, comp, ws, nil, 4, zap.NewNop())
	require.NoError(t, r.StartCompile(context.Background(), "job-1", "Hello.kt"))

	rec := waitTerminal(t, reg, "job-1")
	assert.Equal(t, jobregistry.JobStateCompleted, rec.State)
	assert.Equal(t, ws.OutputDir()+"/Hello.jar", rec.OutputPath)
	assert.Empty(t, rec.ErrorMessage)
}

func TestRunner_StartCompile_Failure(t *testing.T) {
	ws := newTestWorkspace(t, "Broken.kt")
	reg := jobregistry.NewRegistry()

	comp := compileFunc(func(context.Context, string, string) (*compiler.Result, error) {
		return nil, &compiler.InvokeError{
			Classification: compiler.ClassKotlinFailed,
			Details:        "Broken.kt:1:1: error: expecting a top level declaration",
		}
	})

	r := New(reg, comp, ws, nil, 4, zap.NewNop())
	require.NoError(t, r.StartCompile(context.Background(), "job-2", "Broken.kt"))

	rec := waitTerminal(t, reg, "job-2")
	assert.Equal(t, jobregistry.JobStateFailed, rec.State)
	assert.Equal(t, compiler.ClassKotlinFailed, rec.ErrorMessage)
	assert.Contains(t, rec.ErrorDetails, "expecting a top level declaration")
	assert.Empty(t, rec.OutputPath)
}

func TestRunner_StartCompile_UnclassifiedError(t *testing.T) {
	ws := newTestWorkspace(t, "Weird.kt")
	reg := jobregistry.NewRegistry()

	comp := compileFunc(func(context.Context, string, string) (*compiler.Result, error) {
		return nil, errors.New("disk on fire")
	})

	r := New(reg, comp, ws, nil, 4, zap.NewNop())
	require.NoError(t, r.StartCompile(context.Background(), "job-3", "Weird.kt"))

	rec := waitTerminal(t, reg, "job-3")
	assert.Equal(t, jobregistry.JobStateFailed, rec.State)
	assert.Equal(t, compiler.ClassError, rec.ErrorMessage)
	assert.Equal(t, "disk on fire", rec.ErrorDetails)
}

func TestRunner_StartCompile_MissingSource(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := jobregistry.NewRegistry()

	comp := compileFunc(func(context.Context, string, string) (*compiler.Result, error) {
		t.Fatal("compiler must not be invoked for a missing source")
		return nil, nil
	})

	r := New(reg, comp, ws, nil, 4, zap.NewNop())
	err := r.StartCompile(context.Background(), "job-4", "Ghost.kt")

	var notFound *SourceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Ghost.kt", notFound.Filename)
	assert.Equal(t, "Source file not found: Ghost.kt", err.Error())
	assert.Zero(t, reg.Len(), "rejected requests must leave no job record")
}

func TestRunner_ConcurrencyCap(t *testing.T) {
	ws := newTestWorkspace(t, "A.kt", "B.kt", "C.kt")
	reg := jobregistry.NewRegistry()

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	comp := compileFunc(func(context.Context, string, string) (*compiler.Result, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		return &compiler.Result{ArtifactPath: "x"}, nil
	})

	r := New(reg, comp, ws, nil, 1, zap.NewNop())
	for _, name := range []string{"A.kt", "B.kt", "C.kt"} {
		require.NoError(t, r.StartCompile(context.Background(), name, name))
	}

	// Give the goroutines a chance to pile up against the cap.
	time.Sleep(50 * time.Millisecond)
	close(release)
	r.Wait()

	assert.Equal(t, int32(1), peak.Load(), "at most one compile may run at a time")
	for _, name := range []string{"A.kt", "B.kt", "C.kt"} {
		rec, ok := reg.Get(name)
		require.True(t, ok)
		assert.Equal(t, jobregistry.JobStateCompleted, rec.State)
	}
}

func TestRunner_EmitsLifecycleEvents(t *testing.T) {
	ws := newTestWorkspace(t, "Hello.kt")
	reg := jobregistry.NewRegistry()

	var mu sync.Mutex
	var buf bytes.Buffer
	sink := events.NewJSONLWriter(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	comp := compileFunc(func(_ context.Context, _, outDir string) (*compiler.Result, error) {
		return &compiler.Result{ArtifactPath: outDir + "/Hello.jar"}, nil
	})

	r := New(reg, comp, ws, sink, 4, zap.NewNop())
	require.NoError(t, r.StartCompile(context.Background(), "job-5", "Hello.kt"))
	waitTerminal(t, reg, "job-5")
	r.Wait()

	mu.Lock()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	mu.Unlock()
	require.Len(t, lines, 2)

	var states []string
	for _, line := range lines {
		var env events.Record
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		assert.Equal(t, events.TypeJob, env.Type)

		var payload events.JobEventRecord
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, "job-5", payload.JobID)
		states = append(states, payload.State)
	}
	assert.Equal(t, []string{"RUNNING", "COMPLETED"}, states)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
