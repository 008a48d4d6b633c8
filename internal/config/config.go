package config

import "time"

type Config struct {
	Service   *ServiceConfig
	Store     *StoreConfig
	Redis     *RedisConfig
	Postgres  *PostgresConfig
	SQLite    *SQLiteConfig
	AMQP      *AMQPConfig
	Seats     *SeatsConfig
	Room      *RoomConfig
	Worker    *WorkerConfig
	Logger    *LoggerConfig
	Telemetry *TelemetryConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Add  string
}

// StoreConfig selects the durable backing of every room's message log.
type StoreConfig struct {
	Driver string // sqlite | postgres | memory
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type SQLiteConfig struct {
	Path string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type SeatsConfig struct {
	ValidatorURL string
	Timeout      time.Duration
	Secret       string
}

type RoomConfig struct {
	EventBuffer      int
	ClientSendBuffer int
}

type WorkerConfig struct {
	EventBuffer int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TelemetryConfig struct {
	Address string
}
