package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Client speaks the bridge protocol from the editor side. Every call
// opens a fresh connection, sends one command, and reads the full
// response; the server closes the connection after replying.
type Client struct {
	Addr string

	// Timeout bounds one whole exchange. Defaults to 10s.
	Timeout time.Duration
}

// StatusLine is the parsed form of a STATUS response.
type StatusLine struct {
	State        string
	OutputPath   string
	ElapsedMS    int64
	ErrorMessage string
	ErrorDetails string
}

// Terminal reports whether the job has finished, either way.
func (s StatusLine) Terminal() bool {
	return s.State == "COMPLETED" || s.State == "FAILED"
}

// RemoteError is an ERROR response from the bridge.
type RemoteError struct {
	Detail string
}

func (e *RemoteError) Error() string {
	return e.Detail
}

// Ping verifies the bridge answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Exchange(ctx, "PING\n")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", resp)
	}
	return nil
}

// SendSource uploads filename with the given content.
func (c *Client) SendSource(ctx context.Context, filename string, data []byte) error {
	req := fmt.Sprintf("SEND_SOURCE %s %d\n%s", filename, len(data), data)
	resp, err := c.Exchange(ctx, req)
	if err != nil {
		return err
	}
	return expectOK(resp)
}

// Compile asks the bridge to start a job for an already-uploaded file.
func (c *Client) Compile(ctx context.Context, jobID, filename string) error {
	resp, err := c.Exchange(ctx, fmt.Sprintf("COMPILE %s %s\n", jobID, filename))
	if err != nil {
		return err
	}
	return expectOK(resp)
}

// Status fetches and parses the job's current state.
func (c *Client) Status(ctx context.Context, jobID string) (StatusLine, error) {
	resp, err := c.Exchange(ctx, fmt.Sprintf("STATUS %s\n", jobID))
	if err != nil {
		return StatusLine{}, err
	}
	if detail, ok := strings.CutPrefix(resp, "ERROR: "); ok {
		return StatusLine{}, &RemoteError{Detail: detail}
	}
	return ParseStatus(resp)
}

// Exchange sends a raw request and returns the response with the
// trailing newline removed. Exported so diagnostic commands can probe
// with deliberately malformed input.
func (c *Client) Exchange(ctx context.Context, request string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return "", fmt.Errorf("connect to bridge at %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, request); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	// FAILED responses can carry multi-line compiler diagnostics, so read
	// until the server closes rather than stopping at the first newline.
	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimRight(string(resp), "\n"), nil
}

// ParseStatus splits the positional pipe format back into a struct.
func ParseStatus(line string) (StatusLine, error) {
	parts := strings.SplitN(line, "|", 5)
	if len(parts) != 5 {
		return StatusLine{}, fmt.Errorf("malformed status line %q", line)
	}

	s := StatusLine{
		State:        parts[0],
		OutputPath:   parts[1],
		ErrorMessage: parts[3],
		ErrorDetails: parts[4],
	}
	if parts[2] != "" {
		ms, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return StatusLine{}, fmt.Errorf("malformed elapsed field %q", parts[2])
		}
		s.ElapsedMS = ms
	}
	return s, nil
}

func expectOK(resp string) error {
	if resp == "OK" {
		return nil
	}
	if detail, ok := strings.CutPrefix(resp, "ERROR: "); ok {
		return &RemoteError{Detail: detail}
	}
	return fmt.Errorf("unexpected reply %q", resp)
}
