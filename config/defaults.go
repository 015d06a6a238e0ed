package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 15)

	// Auth
	viper.SetDefault("auth.jwtSecret", "default-secret")
	viper.SetDefault("auth.authDeadline", 30)

	// Redis
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 100)
	viper.SetDefault("redis.poolTimeout", 5)

	// Bus
	viper.SetDefault("bus.type", "redis")
	viper.SetDefault("bus.kafka.topic", "call-signaling")

	// Call rooms
	viper.SetDefault("call.presenceTTL", 86400)
	viper.SetDefault("call.heartbeatMaxAge", 90)
	viper.SetDefault("call.sweepInterval", 60)

	// WebSocket
	viper.SetDefault("websocket.messageSizeLimit", 65536)
	viper.SetDefault("websocket.handshakeTimeout", 10)
	viper.SetDefault("websocket.writeTimeout", 10)
	viper.SetDefault("websocket.writeRetryDelay", 200)
	viper.SetDefault("websocket.maxWriteRetries", 3)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
