package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "default-secret" {
		return errors.New("auth.jwtSecret must be set to a strong secret")
	}
	if c.Auth.AuthDeadline < 1 {
		return errors.New("auth deadline must be at least 1 second")
	}

	switch strings.ToLower(c.Bus.Type) {
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for redis bus")
		}
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka bus")
		}
		if c.Bus.Kafka.Topic == "" {
			return errors.New("kafka topic must be specified for kafka bus")
		}
	default:
		return fmt.Errorf("invalid bus type: %s. Must be 'redis' or 'kafka'", c.Bus.Type)
	}

	if c.Call.HeartbeatMaxAge < 1 {
		return errors.New("heartbeat max age must be positive")
	}
	if c.Call.SweepInterval < 1 {
		return errors.New("sweep interval must be positive")
	}
	if c.Call.PresenceTTL <= c.Call.HeartbeatMaxAge {
		return errors.New("presence TTL should be greater than heartbeat max age")
	}

	if c.WebSocket.HandshakeTimeout < 1 {
		return errors.New("handshake timeout must be at least 1 second")
	}
	if c.WebSocket.MessageSizeLimit < 512 {
		return errors.New("message size limit is too small for SDP payloads")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SIGNALING_PORT")

	// Auth
	viper.BindEnv("auth.jwtSecret", "SIGNALING_JWT_SECRET")
	viper.BindEnv("auth.authDeadline", "SIGNALING_AUTH_DEADLINE")

	// Redis
	viper.BindEnv("redis.address", "SIGNALING_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "SIGNALING_REDIS_PASSWORD")
	viper.BindEnv("redis.db", "SIGNALING_REDIS_DB")

	// Bus
	viper.BindEnv("bus.type", "SIGNALING_BUS_TYPE")
	viper.BindEnv("bus.kafka.brokers", "SIGNALING_KAFKA_BROKERS")
	viper.BindEnv("bus.kafka.topic", "SIGNALING_KAFKA_TOPIC")

	// Call rooms
	viper.BindEnv("call.heartbeatMaxAge", "SIGNALING_HEARTBEAT_MAX_AGE")
	viper.BindEnv("call.sweepInterval", "SIGNALING_SWEEP_INTERVAL")
	viper.BindEnv("call.presenceTTL", "SIGNALING_PRESENCE_TTL")

	// Metrics
	viper.BindEnv("metrics.enabled", "SIGNALING_METRICS_ENABLED")
	viper.BindEnv("metrics.port", "SIGNALING_METRICS_PORT")
}
