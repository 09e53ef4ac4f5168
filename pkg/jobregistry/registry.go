// Package jobregistry tracks compilation jobs in memory.
//
// The registry is the only state shared across connections and compile
// goroutines. Mutation is confined to record creation and a single terminal
// write per job; status reads never mutate. Records are stored and returned
// by value so a terminal transition is always observed as a whole.
package jobregistry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is an in-memory map from job id to JobRecord.
//
// Create overwrites an existing record with the same id; the superseded
// job's terminal write is then rejected so it cannot land on the newer
// record. Records are never removed unless a Janitor is running.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
	seq  uint64
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]JobRecord),
		now:  time.Now,
	}
}

// Create inserts a RUNNING record for the given id and source file and
// returns a snapshot of it.
func (r *Registry) Create(id, sourceFile string) (JobRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return JobRecord{}, fmt.Errorf("job id is required")
	}

	r.mu.Lock()
	r.seq++
	rec := JobRecord{
		ID:         id,
		SourceFile: sourceFile,
		State:      JobStateRunning,
		StartedAt:  r.now().UTC(),
		gen:        r.seq,
	}
	r.jobs[id] = rec
	r.mu.Unlock()

	return rec, nil
}

// Get returns a snapshot of the record for id, if one was ever created.
func (r *Registry) Get(id string) (JobRecord, bool) {
	r.mu.RLock()
	rec, ok := r.jobs[id]
	r.mu.RUnlock()
	return rec, ok
}

// Complete moves the RUNNING job identified by the Create snapshot to
// COMPLETED with its artifact location. Terminal records are immutable: a
// second terminal write is rejected.
func (r *Registry) Complete(job JobRecord, outputPath string) error {
	return r.finish(job, func(rec *JobRecord) {
		rec.State = JobStateCompleted
		rec.OutputPath = outputPath
	})
}

// Fail moves the RUNNING job identified by the Create snapshot to FAILED
// with an error classification and the raw diagnostic text.
func (r *Registry) Fail(job JobRecord, errorMessage, errorDetails string) error {
	return r.finish(job, func(rec *JobRecord) {
		rec.State = JobStateFailed
		rec.ErrorMessage = errorMessage
		rec.ErrorDetails = errorDetails
	})
}

func (r *Registry) finish(job JobRecord, apply func(*JobRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	if rec.gen != job.gen {
		return fmt.Errorf("job %s was superseded by a newer job with the same id", job.ID)
	}
	if rec.State.IsTerminal() {
		return fmt.Errorf("job %s already terminal (state=%s)", job.ID, rec.State)
	}

	now := r.now().UTC()
	rec.EndedAt = &now
	apply(&rec)
	r.jobs[job.ID] = rec
	return nil
}

// List returns snapshots of all records, newest first.
func (r *Registry) List() []JobRecord {
	r.mu.RLock()
	out := make([]JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep removes terminal records whose end time is older than ttl and
// returns how many were evicted. RUNNING jobs are never touched.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().UTC().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, rec := range r.jobs {
		if !rec.State.IsTerminal() || rec.EndedAt == nil {
			continue
		}
		if rec.EndedAt.Before(cutoff) {
			delete(r.jobs, id)
			evicted++
		}
	}
	return evicted
}
