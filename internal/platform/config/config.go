package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"gatehouse/pkg/platform/strings"
)

// Config is the full process configuration, loaded from GATEHOUSE_* variables.
type Config struct {
	Server   Server
	Guild    Guild
	Kafka    Kafka
	Redis    Redis
	Postgres Postgres
	Tracing  Tracing
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"GATEHOUSE_ADDR"             envDefault:":8080"`
	JWTSigningKey   string        `env:"GATEHOUSE_JWT_SIGNING_KEY"  envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer       string        `env:"GATEHOUSE_JWT_ISSUER"       envDefault:"gatehouse"`
	JWTAudience     string        `env:"GATEHOUSE_JWT_AUDIENCE"     envDefault:"gatehouse-api"`
	ModeratorRoles  []string      `env:"GATEHOUSE_MODERATOR_ROLES"  envSeparator:","`
	ShutdownTimeout time.Duration `env:"GATEHOUSE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Guild identifies the guild on the platform REST API.
type Guild struct {
	APIBaseURL       string        `env:"GATEHOUSE_GUILD_API_URL"          envDefault:"https://discord.com/api/v10"`
	ID               string        `env:"GATEHOUSE_GUILD_ID"`
	VerifiedRoleID   string        `env:"GATEHOUSE_VERIFIED_ROLE_ID"`
	BotToken         string        `env:"GATEHOUSE_BOT_TOKEN"`
	RequestTimeout   time.Duration `env:"GATEHOUSE_GUILD_REQUEST_TIMEOUT"  envDefault:"10s"`
	BreakerThreshold int           `env:"GATEHOUSE_GUILD_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"GATEHOUSE_GUILD_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Kafka configures the member lifecycle feed. The feed is disabled when no
// brokers are set.
type Kafka struct {
	Brokers    []string `env:"GATEHOUSE_KAFKA_BROKERS"    envSeparator:","`
	Topic      string   `env:"GATEHOUSE_KAFKA_TOPIC"      envDefault:"guild.members"`
	GroupID    string   `env:"GATEHOUSE_KAFKA_GROUP"      envDefault:"gatehouse"`
	Partitions int32    `env:"GATEHOUSE_KAFKA_PARTITIONS" envDefault:"1"`
}

// Redis backs feed deduplication. Empty URL falls back to in-memory.
type Redis struct {
	URL          string        `env:"GATEHOUSE_REDIS_URL"`
	PoolSize     int           `env:"GATEHOUSE_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"GATEHOUSE_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"GATEHOUSE_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"GATEHOUSE_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"GATEHOUSE_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
	DedupeTTL    time.Duration `env:"GATEHOUSE_DEDUPE_TTL"           envDefault:"24h"`
}

// Postgres backs the audit trail. Empty DSN keeps audit events in memory.
type Postgres struct {
	DSN         string `env:"GATEHOUSE_DATABASE_URL"`
	AuditBuffer int    `env:"GATEHOUSE_AUDIT_BUFFER" envDefault:"256"`
}

// Tracing is opt-in by endpoint.
type Tracing struct {
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `env:"OTEL_SERVICE_NAME"          envDefault:"gatehouse"`
	SampleRatio  float64 `env:"GATEHOUSE_TRACE_SAMPLE_RATIO" envDefault:"1"`
}

type Log struct {
	Level  string `env:"GATEHOUSE_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"GATEHOUSE_LOG_FORMAT" envDefault:"json"`
}

// FromEnv loads the configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Server.ModeratorRoles = strings.Compact(cfg.Server.ModeratorRoles)
	cfg.Kafka.Brokers = strings.Compact(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings required to run at all.
func (c Config) Validate() error {
	var errs []error
	if c.Guild.ID == "" {
		errs = append(errs, errors.New("GATEHOUSE_GUILD_ID is required"))
	}
	if c.Guild.VerifiedRoleID == "" {
		errs = append(errs, errors.New("GATEHOUSE_VERIFIED_ROLE_ID is required"))
	}
	if c.Guild.BotToken == "" {
		errs = append(errs, errors.New("GATEHOUSE_BOT_TOKEN is required"))
	}
	if len(c.Server.ModeratorRoles) == 0 {
		errs = append(errs, errors.New("GATEHOUSE_MODERATOR_ROLES must name at least one role"))
	}
	return errors.Join(errs...)
}

// FeedEnabled reports whether the Kafka lifecycle feed is configured.
func (c Config) FeedEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
