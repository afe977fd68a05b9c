package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	handlerTimeout = 30 * time.Second
	ioTimeout      = 15 * time.Second
)

// Server держит роутер служебных ручек и вебхука.
type Server struct {
	Router chi.Router
	log    zerolog.Logger

	mu  sync.Mutex
	srv *http.Server
}

// NewServer собирает роутер: /healthz для проб, /metrics для Prometheus.
// Остальные маршруты вешает вызывающий через Router.
func NewServer(logger zerolog.Logger) *Server {
	s := &Server{Router: chi.NewRouter(), log: logger}
	s.Router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.accessLog,
		middleware.Recoverer,
		middleware.Timeout(handlerTimeout),
		middleware.Heartbeat("/healthz"),
	)
	s.Router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return s
}

// accessLog пишет запросы в общий zerolog вместо стандартного логгера chi.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP запрос")
	})
}

// Start слушает addr до Shutdown. Штатная остановка ошибкой не считается.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", addr).Msg("HTTP сервер запущен")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown дожидается активных запросов или отмены ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
