package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/fieldlink-iot/fieldlink-go/pkg/controller"
)

// Provider supplies the status snapshot. Satisfied by the mode controller.
type Provider interface {
	Snapshot() controller.Snapshot
}

// Server is the status HTTP endpoint.
type Server struct {
	provider Provider
	logger   *slog.Logger
	srv      *http.Server
}

// New creates a status server listening on addr.
func New(addr string, provider Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		provider: provider,
		logger:   logger.With("component", "statusapi"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(r)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown. It blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("status api listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Snapshot()); err != nil {
		s.logger.Warn("status encode failed", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
