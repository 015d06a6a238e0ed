package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/broker"
	"github.com/tusharsach16/LawProject-sub001/config"
	"github.com/tusharsach16/LawProject-sub001/signaling"
)

// Server is the HTTP front of the relay: the websocket endpoint plus a
// health check. Everything else (cache seeding, token issuance, TURN
// credentials) lives in external collaborators.
type Server struct {
	httpServer *http.Server
	handler    *signaling.Handler
	bus        broker.Bus
}

func New(cfg *config.ServerConfig, handler *signaling.Handler, bus broker.Bus, redisClient *redis.Client) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", handler.HandleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		},
		handler: handler,
		bus:     bus,
	}
}

// Start blocks serving HTTP until the listener is closed.
func (s *Server) Start() {
	log.Info().Str("addr", s.httpServer.Addr).Msg("signaling server started")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

// Shutdown drains in order: stop accepting, close every client session
// (which flushes presence removals and departure announcements), then stop
// the bus.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	s.handler.Shutdown(ctx)

	if err := s.bus.Close(); err != nil {
		log.Error().Err(err).Msg("bus close error")
	}
	log.Info().Msg("server exited gracefully")
}
