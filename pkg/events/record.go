// Package events provides an optional JSONL trail of job lifecycle events.
//
// Each line is a self-contained JSON envelope with a typed payload, so
// external tooling can follow what the bridge compiled without scraping
// logs. The trail is append-only and disabled unless a path is configured.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: kbridge.<type>.v<version>
const (
	// TypeJob identifies job lifecycle records.
	TypeJob = "kbridge.job.v1"

	// TypeSweep identifies artifact sweep records.
	TypeSweep = "kbridge.sweep.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "kbridge.job.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// JobEventRecord is the data payload for job lifecycle records. One record
// is emitted when a job is accepted and one when it reaches a terminal
// state.
type JobEventRecord struct {
	JobID      string `json:"job_id"`
	SourceFile string `json:"source_file"`
	State      string `json:"state"`

	// OutputPath is present on COMPLETED records.
	OutputPath string `json:"output_path,omitempty"`

	// ElapsedMS is present on terminal records.
	ElapsedMS int64 `json:"elapsed_ms,omitempty"`

	// ErrorMessage/ErrorDetails are present on FAILED records.
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// SweepRecord is the data payload for artifact sweep records.
type SweepRecord struct {
	Removed int    `json:"removed"`
	MaxAge  string `json:"max_age"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("events: writer is closed")

// WriteError wraps failures from the underlying writer.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("events: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
