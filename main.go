package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/auth"
	"github.com/tusharsach16/LawProject-sub001/broker"
	"github.com/tusharsach16/LawProject-sub001/config"
	"github.com/tusharsach16/LawProject-sub001/metrics"
	"github.com/tusharsach16/LawProject-sub001/presence"
	"github.com/tusharsach16/LawProject-sub001/registry"
	"github.com/tusharsach16/LawProject-sub001/server"
	"github.com/tusharsach16/LawProject-sub001/services"
	"github.com/tusharsach16/LawProject-sub001/signaling"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENVIRONMENT") == "" || os.Getenv("ENVIRONMENT") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize config")
	}
	cfg := config.Get()

	// Each stateless instance gets a unique id; the kafka bus derives its
	// consumer group from it.
	serverID := uuid.New().String()
	log.Info().Str("server_id", serverID).Msg("starting signaling relay instance")

	redisClient, err := services.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer services.CloseRedisClient(redisClient)

	presenceStore := presence.NewStore(redisClient, time.Duration(cfg.Call.PresenceTTL)*time.Second)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	authorizer := auth.NewAuthorizer(redisClient)

	var bus broker.Bus
	log.Info().Str("bus_type", cfg.Bus.Type).Msg("initializing broadcast bus")
	switch strings.ToLower(cfg.Bus.Type) {
	case "redis":
		bus = broker.NewRedisBus(redisClient)
	case "kafka":
		bus, err = broker.NewKafkaBus(cfg.Bus.Kafka.Brokers, cfg.Bus.Kafka.Topic, serverID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Kafka bus")
		}
	default:
		// Caught by config validation; checked again as a safeguard.
		log.Fatal().Str("bus_type", cfg.Bus.Type).Msg("invalid bus type")
	}

	reg := registry.New()
	handler := signaling.NewHandler(reg, bus, verifier, authorizer, presenceStore, cfg)

	if err := bus.Subscribe(ctx, handler.DeliverBusMessage); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to broadcast bus")
	}

	sweeper := signaling.NewSweeper(
		reg,
		presenceStore,
		bus,
		time.Duration(cfg.Call.HeartbeatMaxAge)*time.Second,
		time.Duration(cfg.Call.SweepInterval)*time.Second,
	)
	go sweeper.Run(ctx)

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	srv := server.New(&cfg.Server, handler, bus, redisClient)
	go srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
