package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed static
var staticFiles embed.FS

// Locator is the set of user actions the page can trigger.
type Locator interface {
	LocateOnce()
	ToggleTracking()
	Tracking() bool
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	Tracking bool     `json:"tracking"`
	Map      Snapshot `json:"map"`
}

// Server serves the map page, the control API and the map websocket.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	Tracing         bool

	locator Locator
	view    *MapView
	logger  zerolog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a server for locator and view listening on addr.
func NewServer(addr string, locator Locator, view *MapView, logger zerolog.Logger) *Server {
	return &Server{
		Addr:            addr,
		ShutdownTimeout: 10 * time.Second,
		locator:         locator,
		view:            view,
		logger:          logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	// Full paths on the root router so a wrong method answers 405
	r.HandleFunc("/api/locate", s.handleLocate).Methods(http.MethodPost)
	r.HandleFunc("/api/tracking/toggle", s.handleToggleTracking).Methods(http.MethodPost)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.view.Hub().HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	static, _ := fs.Sub(staticFiles, "static")
	r.Path("/").Methods(http.MethodGet).Handler(http.FileServer(http.FS(static)))

	if s.Tracing {
		return otelhttp.NewHandler(r, "geo-locator")
	}
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("web server already running")
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Web server stopped unexpectedly")
		}
	}(s.srv, s.done)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Web server listening")
	return nil
}

// ListenAddr returns the bound address, or an empty string before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return errors.New("web server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done

	s.logger.Info().Msg("Web server stopped")
	return err
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	s.locator.LocateOnce()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "locating"})
}

func (s *Server) handleToggleTracking(w http.ResponseWriter, r *http.Request) {
	s.locator.ToggleTracking()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "toggled"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Tracking: s.locator.Tracking(),
		Map:      s.view.Snapshot(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.view.Hub().Count(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
