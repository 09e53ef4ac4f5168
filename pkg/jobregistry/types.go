package jobregistry

import "time"

// JobState is the lifecycle state of a compilation job.
//
// NOTE: These values appear verbatim in the status line protocol and are
// part of the stable wire contract.
type JobState string

const (
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
)

// IsTerminal reports whether no further transitions follow the state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobRecord tracks one compilation attempt.
//
// A record is created in RUNNING and moves to exactly one terminal state
// exactly once. OutputPath is set iff COMPLETED; ErrorMessage/ErrorDetails
// are set iff FAILED. Records handed out by the registry are snapshots, so
// readers never observe a partially written terminal transition.
type JobRecord struct {
	ID         string   `json:"job_id"`
	SourceFile string   `json:"source_file"`
	State      JobState `json:"state"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	OutputPath string `json:"output_path,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`

	// gen distinguishes records after an id reuse: a terminal write from
	// a superseded record is rejected instead of landing on the newer one.
	gen uint64
}

// ElapsedMillis returns the wall-clock duration of a terminal job in
// milliseconds, or -1 while the job is still running.
func (r *JobRecord) ElapsedMillis() int64 {
	if r.EndedAt == nil {
		return -1
	}
	ms := r.EndedAt.Sub(r.StartedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
