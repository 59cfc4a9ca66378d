package observability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /healthz while a long audit runs. Fuzzing
// campaigns hold the process for hours, so the scrape endpoint lives for
// the duration of the command and shuts down with its context.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new observability server listening on addr
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("starting metrics server",
			"addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error",
				"error", err.Error())
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(shutdownCtx)
}
