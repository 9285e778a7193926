package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration, loaded from USERMGMT_* environment variables.
type Config struct {
	Server   Server         `envPrefix:"USERMGMT_"`
	Log      LogConfig      `envPrefix:"USERMGMT_LOG_"`
	Postgres PostgresConfig `envPrefix:"USERMGMT_POSTGRES_"`
	Mongo    MongoConfig    `envPrefix:"USERMGMT_MONGO_"`
	Redis    RedisConfig    `envPrefix:"USERMGMT_REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"USERMGMT_KAFKA_"`
	Tracing  TracingConfig  `envPrefix:"USERMGMT_OTEL_"`
	Policy   PolicyConfig   `envPrefix:"USERMGMT_POLICY_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"usermgmt"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// Store selects the account repository: memory, postgres or mongo.
	Store string `env:"STORE" envDefault:"memory"`
	// GatewayToken, when set, must accompany forwarded actor headers.
	GatewayToken string `env:"GATEWAY_TOKEN"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	JSON  bool   `env:"JSON" envDefault:"true"`
}

type PostgresConfig struct {
	DSN string `env:"DSN"`
	// Driver is the database/sql driver name: "pgx" or "postgres" (lib/pq).
	Driver       string        `env:"DRIVER" envDefault:"pgx"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate      bool          `env:"MIGRATE" envDefault:"true"`
}

type MongoConfig struct {
	URI      string `env:"URI"`
	Database string `env:"DATABASE" envDefault:"usermgmt"`
}

type RedisConfig struct {
	URL            string        `env:"URL"`
	PoolSize       int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns   int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	ReservationTTL time.Duration `env:"RESERVATION_TTL" envDefault:"30s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"BROKERS" envSeparator:","`
	WelcomeTopic     string        `env:"WELCOME_TOPIC" envDefault:"user.welcome"`
	CreateTopic      bool          `env:"CREATE_TOPIC" envDefault:"true"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

type TracingConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Endpoint string `env:"ENDPOINT"`
}

type PolicyConfig struct {
	BlockedDomains    []string `env:"BLOCKED_DOMAINS" envSeparator:"," envDefault:"mailinator.com,guerrillamail.com"`
	ReservedUsernames []string `env:"RESERVED_USERNAMES" envSeparator:"," envDefault:"admin,support,system,root"`
}

// Load builds a Config from environment variables so main stays lean.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
