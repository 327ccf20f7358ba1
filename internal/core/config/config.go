package config

import (
	"time"

	"github.com/vietddude/esguard/internal/infra/es"
	"github.com/vietddude/esguard/internal/infra/es/retry"
	redisclient "github.com/vietddude/esguard/internal/infra/redis"
	"github.com/vietddude/esguard/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Cluster    ClusterConfig      `yaml:"cluster"`
	Retry      RetryConfig        `yaml:"retry"`
	Reader     es.ReaderConfig    `yaml:"reader"`
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	DeadLetter DeadLetterConfig   `yaml:"dead_letter"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
}

// ClusterConfig holds cluster connection settings.
type ClusterConfig struct {
	URLs     []string      `yaml:"urls"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	Gzip     bool          `yaml:"gzip"`
	AWS      AWSConfig     `yaml:"aws"`
}

// AWSConfig enables SigV4 signing for Amazon OpenSearch Service.
type AWSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Service string `yaml:"service"` // es, aoss
}

// RetryConfig holds the backoff policy. Zero values take the defaults.
type RetryConfig struct {
	InitialFloor   time.Duration `yaml:"initial_floor"`
	InitialCeiling time.Duration `yaml:"initial_ceiling"`
	FloorStep      time.Duration `yaml:"floor_step"`
	CeilingStep    time.Duration `yaml:"ceiling_step"`
	MaxFloor       time.Duration `yaml:"max_floor"`
	MaxCeiling     time.Duration `yaml:"max_ceiling"`
	MaxRetries     int           `yaml:"max_retries"` // 0 = unbounded
	MaxElapsed     time.Duration `yaml:"max_elapsed"` // 0 = unbounded
	WarnInterval   time.Duration `yaml:"warn_interval"`
}

// Policy converts the section into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		InitialFloor:   c.InitialFloor,
		InitialCeiling: c.InitialCeiling,
		FloorStep:      c.FloorStep,
		CeilingStep:    c.CeilingStep,
		MaxFloor:       c.MaxFloor,
		MaxCeiling:     c.MaxCeiling,
		MaxRetries:     c.MaxRetries,
		MaxElapsed:     c.MaxElapsed,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text, pretty
}

// Dead letter backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DeadLetterConfig selects where fatally rejected bulk documents are parked.
type DeadLetterConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"` // redis only, 0 = keep until resolved
	ReplayLimit int           `yaml:"replay_limit"`

	// ReplayInterval enables periodic replay while serving, 0 = manual only.
	ReplayInterval time.Duration `yaml:"replay_interval"`
}
