// Package server hosts the two listening surfaces of the bridge: the
// TCP line-protocol endpoint the editor talks to, and an optional HTTP
// admin endpoint for observation.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnHandler processes one connection's request/response exchange.
// Satisfied by *protocol.Handler.
type ConnHandler interface {
	Handle(ctx context.Context, rw io.ReadWriter) error
}

// Bridge is the TCP server. Each accepted connection gets its own
// goroutine; a panicking handler takes down only its connection.
type Bridge struct {
	host    string
	port    int
	handler ConnHandler
	log     *zap.Logger

	// connTimeout bounds a single request/response exchange so a stalled
	// peer cannot pin a goroutine forever.
	connTimeout time.Duration

	// acceptRetry paces the accept loop after transient failures (e.g.
	// fd exhaustion) instead of spinning hot.
	acceptRetry *rate.Limiter

	wg sync.WaitGroup
}

// NewBridge builds the TCP server.
func NewBridge(host string, port int, handler ConnHandler, log *zap.Logger) *Bridge {
	return &Bridge{
		host:        host,
		port:        port,
		handler:     handler,
		log:         log,
		connTimeout: 30 * time.Second,
		acceptRetry: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// Addr is the host:port the server binds.
func (b *Bridge) Addr() string { return fmt.Sprintf("%s:%d", b.host, b.port) }

// ListenAndServe binds the configured address and serves until ctx is
// cancelled. A bind conflict is reported explicitly so the operator can
// tell a second instance from a genuine failure.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.Addr())
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (is another bridge running?): %w", b.port, err)
		}
		return fmt.Errorf("bind %s: %w", b.Addr(), err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight exchanges to drain.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	b.log.Info("bridge listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				b.wg.Wait()
				return nil
			}
			b.log.Warn("accept failed", zap.Error(err))
			if werr := b.acceptRetry.Wait(ctx); werr != nil {
				b.wg.Wait()
				return nil
			}
			continue
		}

		b.wg.Add(1)
		go b.serveConn(ctx, conn)
	}
}

func (b *Bridge) serveConn(ctx context.Context, conn net.Conn) {
	defer b.wg.Done()
	defer func() { _ = conn.Close() }()
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("connection handler panicked",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Any("panic", rec))
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(b.connTimeout))

	if err := b.handler.Handle(ctx, conn); err != nil {
		b.log.Debug("connection ended with transport error",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Error(err))
	}
}
