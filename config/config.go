package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server    ServerConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Bus       BusConfig
	Call      CallConfig
	WebSocket WebSocketConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

type AuthConfig struct {
	JWTSecret    string
	AuthDeadline int // Seconds a socket may remain unauthenticated
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type BusConfig struct {
	Type  string // "redis" or "kafka"
	Kafka KafkaConfig
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CallConfig struct {
	PresenceTTL     int // Seconds
	HeartbeatMaxAge int // Seconds
	SweepInterval   int // Seconds
}

type WebSocketConfig struct {
	MessageSizeLimit int64
	HandshakeTimeout int // Seconds
	WriteTimeout     int // Seconds
	WriteRetryDelay  int // Milliseconds
	MaxWriteRetries  int
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("SIGNALING")

		setDefaults()
		bindEnvVars()

		// The config file is optional; env vars and defaults cover every key.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
