package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/ktedit/kbridge/internal/errors"
	"github.com/ktedit/kbridge/internal/server/handlers"
	"github.com/ktedit/kbridge/internal/server/middleware"
	"github.com/ktedit/kbridge/pkg/jobregistry"
)

// Admin serves the read-only observation endpoints over HTTP. It is
// optional and disabled by default; the TCP bridge is the real surface.
type Admin struct {
	host string
	port int
	log  *zap.Logger
	mux  *chi.Mux
}

// NewAdmin builds the admin server and its routes.
func NewAdmin(host string, port int, reg *jobregistry.Registry, info handlers.BuildInfo, log *zap.Logger) *Admin {
	a := &Admin{host: host, port: port, log: log, mux: chi.NewRouter()}

	a.mux.Use(middleware.Recovery(log))
	a.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, http.StatusNotFound,
			apperrors.CodeNotFound, "no such endpoint: "+r.URL.Path)
	})
	a.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, http.StatusMethodNotAllowed,
			apperrors.CodeMethodNotAllowed, r.Method+" is not allowed here")
	})

	a.mux.Get("/health", handlers.Health(time.Now()))
	a.mux.Get("/version", handlers.Version(info))
	a.mux.Get("/jobs", handlers.Jobs(reg))

	return a
}

// Handler exposes the router, mainly for tests.
func (a *Admin) Handler() http.Handler { return a.mux }

// Addr is the host:port the server binds.
func (a *Admin) Addr() string { return fmt.Sprintf("%s:%d", a.host, a.port) }

// ListenAndServe runs the admin server until ctx is cancelled.
func (a *Admin) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Addr(),
		Handler:           a.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("admin server listening", zap.String("addr", a.Addr()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	}
}
