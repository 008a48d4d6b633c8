package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func Load() *Config {
	return &Config{
		Service: &ServiceConfig{
			Name: getEnv("SERVICE_NAME", "supportdesk"),
			Env:  getEnv("SERVICE_ENV", "development"),
			Add:  getEnv("SERVICE_ADDR", ":8080"),
		},
		Store: &StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		},
		Redis: &RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE", 2),
			PingTimeout:  getEnvDuration("REDIS_PING_TIMEOUT", 2*time.Second),
		},
		Postgres: &PostgresConfig{
			DSN:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_LIFETIME", 15*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_IDLE_TIME", 5*time.Minute),
			PingTimeout:     getEnvDuration("DB_PING_TIMEOUT", 5*time.Second),
		},
		SQLite: &SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "supportdesk.db"),
		},
		AMQP: &AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "support.routing"),
		},
		Seats: &SeatsConfig{
			ValidatorURL: getEnv("SEAT_VALIDATOR_URL", ""),
			Timeout:      getEnvDuration("SEAT_VALIDATOR_TIMEOUT", 5*time.Second),
			Secret:       getEnv("SEAT_SECRET", ""),
		},
		Room: &RoomConfig{
			EventBuffer:      getEnvInt("ROOM_EVENT_BUFFER", 256),
			ClientSendBuffer: getEnvInt("CLIENT_SEND_BUFFER", 256),
		},
		Worker: &WorkerConfig{
			EventBuffer: getEnvInt("WORKER_EVENT_BUFFER", 1024),
		},
		Logger: &LoggerConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToUpper(getEnv("LOG_FORMAT", "JSON")),
		},
		Telemetry: &TelemetryConfig{
			Address: getEnv("OTEL_EXPORTER_ADDR", ""),
		},
	}
}

// Validate reports configuration combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Seats.ValidatorURL == "" && c.Seats.Secret == "" {
		return fmt.Errorf("config: either SEAT_VALIDATOR_URL or SEAT_SECRET must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
