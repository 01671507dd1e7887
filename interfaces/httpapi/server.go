// Package httpapi exposes the coordinator's sync protocol (§4.1-§4.5) and
// the convenience `/api` surface over HTTP, plus a websocket bridge onto
// the broadcast bus. Routing is stdlib `net/http` with Go 1.22+
// pattern-based `http.ServeMux`, matching the teacher's preference for
// stdlib routing over an external router — the teacher has no HTTP
// server of its own, but its CLI and tool packs never reach for a router
// library where the standard library already does the job.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/relaysync/conductor/application/coordinator"
	"github.com/relaysync/conductor/domain/iteration"
	"github.com/relaysync/conductor/domain/project"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/distributed/broadcast"
	"github.com/relaysync/conductor/infrastructure/logging"
	"github.com/relaysync/conductor/infrastructure/telemetry"
)

// Config supplies Server's collaborators and listener settings. Tasks,
// Projects and Iterations back the plain `/api` CRUD/read surface
// directly; the sync protocol itself goes exclusively through Handler.
type Config struct {
	Handler    *coordinator.Handler
	Tasks      task.Store
	Projects   project.Store
	Iterations iteration.Store
	Bus        *broadcast.Bus
	Metrics    telemetry.Metrics
	Addr       string
	CORSOrigin string
}

// Server wraps a *http.Server around the coordinator handler, following
// the lifecycle shape of the pack's HTTPServer pattern (functional
// construction, Start blocks until shutdown, Shutdown drains in place)
// since the teacher itself never stands up an HTTP listener.
type Server struct {
	cfg    Config
	h      *coordinator.Handler
	bus    *broadcast.Bus
	tasks  task.Store
	server *http.Server
}

// New builds a Server. Metrics defaults to a no-op recorder so telemetry
// is optional without special-casing call sites.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("httpapi: coordinator handler is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "0.0.0.0:3344"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NoopMetrics{}
	}
	if cfg.Bus == nil {
		cfg.Bus = broadcast.New()
	}

	s := &Server{cfg: cfg, h: cfg.Handler, bus: cfg.Bus, tasks: cfg.Tasks}

	mux := s.routes()
	var handler http.Handler = mux
	handler = telemetry.HTTPMiddleware(cfg.Metrics, "github.com/relaysync/conductor/interfaces/httpapi")(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Addr reports the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Start runs the HTTP server until ctx is cancelled or ListenAndServe
// fails, mirroring the pack's Start/Shutdown split so the caller's
// signal-handling context is the single source of truth for lifetime.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		close(errCh)
	}()

	logging.Info().
		Add(logging.Component("httpapi")).
		Add(logging.Str("addr", s.cfg.Addr)).
		Msg("coordinator listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.CORSOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow := origin
		if allow == "" {
			allow = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", allow)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug().
			Add(logging.Component("httpapi")).
			Add(logging.Str("method", r.Method)).
			Add(logging.Str("path", r.URL.Path)).
			Add(logging.Duration(time.Since(start))).
			Msg("request")
	})
}
