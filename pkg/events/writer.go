package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits JSONL records for job lifecycle events.
//
// Implementations must be safe for concurrent use: terminal events arrive
// from independent compile goroutines.
type Writer interface {
	// WriteJob emits a job lifecycle record.
	WriteJob(ctx context.Context, event *JobEventRecord) error

	// WriteSweep emits an artifact sweep record.
	WriteSweep(ctx context.Context, sweep *SweepRecord) error

	// Close marks the writer as closed.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

func (jw *JSONLWriter) WriteJob(ctx context.Context, event *JobEventRecord) error {
	return jw.writeRecord(ctx, TypeJob, event)
}

func (jw *JSONLWriter) WriteSweep(ctx context.Context, sweep *SweepRecord) error {
	return jw.writeRecord(ctx, TypeSweep, sweep)
}

// Close marks the writer as closed. The underlying writer is not closed;
// that stays with whoever opened it.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type: recordType,
		TS:   time.Now().UTC(),
		Data: dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with nil error; loop so JSONL lines
	// are never truncated.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Nop discards all events. Used when no event path is configured.
type Nop struct{}

func (Nop) WriteJob(context.Context, *JobEventRecord) error { return nil }
func (Nop) WriteSweep(context.Context, *SweepRecord) error  { return nil }
func (Nop) Close() error                                    { return nil }

var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = Nop{}
)
