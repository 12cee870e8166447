// Package health serves liveness and Prometheus endpoints next to the bot.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vldos/telegram-survey-bot/core/buildinfo"
	"github.com/vldos/telegram-survey-bot/core/logger"
)

const (
	// DefaultListen is used when no address is configured.
	DefaultListen = ":8080"

	statusBody      = "Bot is running"
	shutdownTimeout = 5 * time.Second
)

// Options configure the health server.
type Options struct {
	Listen string
	// Gatherer backs /metrics; nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter returns the HTTP handler with /, /health and /metrics.
func NewRouter(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", status)
	r.Head("/", status)
	r.Get("/health", status)
	r.Head("/health", status)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Build", buildinfo.String())
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(statusBody))
	}
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds the address so callers learn about port conflicts before serving.
func Listen(opts Options) (*Server, error) {
	addr := opts.Listen
	if addr == "" {
		addr = DefaultListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           NewRouter(opts.Gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	logger.Info(ctx, "health", "health.listen",
		slog.String("status", "ok"),
		slog.String("listen", s.Addr()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error(ctx, "health", "health.serve",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "health", "health.shutdown",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Info(ctx, "health", "health.shutdown", slog.String("status", "ok"))
	return nil
}
