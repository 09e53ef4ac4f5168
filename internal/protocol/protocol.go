// Package protocol implements the newline-delimited command protocol the
// editor speaks to the bridge. Each connection carries exactly one
// request and one response line; SEND_SOURCE additionally carries a
// fixed-length payload after its header line.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ktedit/kbridge/pkg/jobregistry"
)

// Command keywords accepted on the wire.
const (
	CmdPing       = "PING"
	CmdSendSource = "SEND_SOURCE"
	CmdCompile    = "COMPILE"
	CmdStatus     = "STATUS"
)

// maxPayloadBytes caps a SEND_SOURCE body. Source files for the bridge are
// single editor buffers, so anything past this is a protocol mistake.
const maxPayloadBytes = 8 << 20

// JobStarter accepts a compile request. Satisfied by *runner.Runner.
type JobStarter interface {
	StartCompile(ctx context.Context, jobID, filename string) error
}

// StatusReader answers job lookups. Satisfied by *jobregistry.Registry.
type StatusReader interface {
	Get(id string) (jobregistry.JobRecord, bool)
}

// SourceStore persists uploaded source text. Satisfied by
// *workspace.Workspace.
type SourceStore interface {
	WriteSource(filename string, data []byte) (string, error)
}

// Handler parses one request from a connection and writes one response.
type Handler struct {
	jobs   JobStarter
	status StatusReader
	store  SourceStore
	log    *zap.Logger
}

// NewHandler wires the protocol surface to the bridge internals.
func NewHandler(jobs JobStarter, status StatusReader, store SourceStore, log *zap.Logger) *Handler {
	return &Handler{jobs: jobs, status: status, store: store, log: log}
}

// Handle reads a single command from rw and writes the response line.
// Malformed input yields an ERROR response, never an error return: the
// returned error only reports transport failures.
func (h *Handler) Handle(ctx context.Context, rw io.ReadWriter) error {
	br := bufio.NewReader(rw)

	line, err := readHeaderLine(br)
	if err != nil {
		return fmt.Errorf("read command: %w", err)
	}

	resp := h.dispatch(ctx, br, line)
	if _, err := io.WriteString(rw, resp+"\n"); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// readHeaderLine reads up to the first newline. A request whose peer
// closed the write side without a trailing newline is still accepted.
func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (h *Handler) dispatch(ctx context.Context, br *bufio.Reader, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERROR: Empty command"
	}

	keyword, args := fields[0], fields[1:]
	h.log.Debug("request", zap.String("command", keyword), zap.Int("args", len(args)))

	switch keyword {
	case CmdPing:
		return "PONG"
	case CmdSendSource:
		return h.handleSendSource(br, args)
	case CmdCompile:
		return h.handleCompile(ctx, args)
	case CmdStatus:
		return h.handleStatus(args)
	default:
		return "ERROR: Unknown command: " + keyword
	}
}

func (h *Handler) handleSendSource(br *bufio.Reader, args []string) string {
	if len(args) != 2 {
		return "ERROR: SEND_SOURCE requires <filename> <byteLength>"
	}
	filename := args[0]

	size, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || size < 0 {
		return "ERROR: Invalid byte length: " + args[1]
	}
	if size > maxPayloadBytes {
		return fmt.Sprintf("ERROR: Payload too large: %d bytes (limit %d)", size, maxPayloadBytes)
	}

	payload := make([]byte, size)
	if n, err := io.ReadFull(br, payload); err != nil {
		return fmt.Sprintf("ERROR: Truncated payload: expected %d bytes, received %d", size, n)
	}

	if _, err := h.store.WriteSource(filename, payload); err != nil {
		h.log.Warn("source write failed", zap.String("filename", filename), zap.Error(err))
		return "ERROR: " + err.Error()
	}
	return "OK"
}

func (h *Handler) handleCompile(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "ERROR: COMPILE requires <jobId> <filename>"
	}
	if err := h.jobs.StartCompile(ctx, args[0], args[1]); err != nil {
		return "ERROR: " + err.Error()
	}
	return "OK"
}

func (h *Handler) handleStatus(args []string) string {
	if len(args) != 1 {
		return "ERROR: STATUS requires <jobId>"
	}
	rec, ok := h.status.Get(args[0])
	if !ok {
		return "ERROR: Compilation job not found"
	}
	return FormatStatus(rec)
}

// FormatStatus renders the pipe-delimited STATUS line. The five columns
// are positional (state, outputPath, elapsedMillis, errorMessage,
// errorDetails) with empty strings where a column does not apply, and
// clients depend on the exact byte layout.
func FormatStatus(rec jobregistry.JobRecord) string {
	switch rec.State {
	case jobregistry.JobStateCompleted:
		return fmt.Sprintf("COMPLETED|%s|%d||", rec.OutputPath, rec.ElapsedMillis())
	case jobregistry.JobStateFailed:
		return fmt.Sprintf("FAILED|||%s|%s", rec.ErrorMessage, rec.ErrorDetails)
	default:
		return "RUNNING||||"
	}
}
