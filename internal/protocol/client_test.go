package protocol

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktedit/kbridge/pkg/jobregistry"
)

// serveOnce runs a handler behind a real TCP listener, one connection
// per request, closing each after the response like the bridge does.
func serveOnce(t *testing.T, h *Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = h.Handle(context.Background(), conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestClient_Ping(t *testing.T) {
	addr := serveOnce(t, newHandler(nil, nil, nil))
	c := &Client{Addr: addr}
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClient_SendSourceAndCompile(t *testing.T) {
	store := &fakeStore{}
	starter := &fakeStarter{}
	addr := serveOnce(t, newHandler(starter, nil, store))
	c := &Client{Addr: addr}

	require.NoError(t, c.SendSource(context.Background(), "Main.kt", []byte("fun main(){}")))
	assert.Equal(t, "Main.kt", store.filename)
	assert.Equal(t, "fun main(){}", string(store.data))

	require.NoError(t, c.Compile(context.Background(), "job1", "Main.kt"))
	assert.Equal(t, "job1", starter.jobID)
}

func TestClient_CompileRemoteError(t *testing.T) {
	starter := &fakeStarter{err: fmt.Errorf("Source file not found: Main.kt")}
	addr := serveOnce(t, newHandler(starter, nil, nil))
	c := &Client{Addr: addr}

	err := c.Compile(context.Background(), "job1", "Main.kt")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Source file not found: Main.kt", remote.Detail)
}

func TestClient_Status(t *testing.T) {
	reg := jobregistry.NewRegistry()
	job, err := reg.Create("job1", "Main.kt")
	require.NoError(t, err)
	require.NoError(t, reg.Complete(job, "/out/Main.jar"))

	addr := serveOnce(t, newHandler(nil, reg, nil))
	c := &Client{Addr: addr}

	status, err := c.Status(context.Background(), "job1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status.State)
	assert.Equal(t, "/out/Main.jar", status.OutputPath)
	assert.True(t, status.Terminal())
}

func TestClient_StatusUnknownJob(t *testing.T) {
	addr := serveOnce(t, newHandler(nil, jobregistry.NewRegistry(), nil))
	c := &Client{Addr: addr}

	_, err := c.Status(context.Background(), "ghost")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Compilation job not found", remote.Detail)
}

func TestClient_ExchangeUnknownCommand(t *testing.T) {
	addr := serveOnce(t, newHandler(nil, nil, nil))
	c := &Client{Addr: addr}

	resp, err := c.Exchange(context.Background(), "BOGUS\n")
	require.NoError(t, err)
	assert.Equal(t, "ERROR: Unknown command: BOGUS", resp)
}

func TestParseStatus(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		s, err := ParseStatus("RUNNING||||")
		require.NoError(t, err)
		assert.Equal(t, "RUNNING", s.State)
		assert.False(t, s.Terminal())
	})

	t.Run("completed", func(t *testing.T) {
		s, err := ParseStatus("COMPLETED|/out/App.jar|1500||")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), s.ElapsedMS)
		assert.Equal(t, "/out/App.jar", s.OutputPath)
	})

	t.Run("failed with pipes in details", func(t *testing.T) {
		s, err := ParseStatus("FAILED|||Kotlin compilation failed|error: a || b")
		require.NoError(t, err)
		assert.Equal(t, "Kotlin compilation failed", s.ErrorMessage)
		assert.Equal(t, "error: a || b", s.ErrorDetails)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseStatus("RUNNING")
		assert.Error(t, err)
	})

	t.Run("bad elapsed", func(t *testing.T) {
		_, err := ParseStatus("COMPLETED|x|soon||")
		assert.Error(t, err)
	})
}
