package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/esguard/internal/infra/es/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.UnmarshalStrict([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if len(c.Cluster.URLs) == 0 {
		c.Cluster.URLs = []string{"http://localhost:9200"}
	}
	if c.Cluster.AWS.Enabled && c.Cluster.AWS.Service == "" {
		c.Cluster.AWS.Service = "es"
	}

	d := retry.DefaultPolicy
	r := &c.Retry
	if r.InitialFloor == 0 {
		r.InitialFloor = d.InitialFloor
	}
	if r.InitialCeiling == 0 {
		r.InitialCeiling = d.InitialCeiling
	}
	if r.FloorStep == 0 {
		r.FloorStep = d.FloorStep
	}
	if r.CeilingStep == 0 {
		r.CeilingStep = d.CeilingStep
	}
	if r.MaxFloor == 0 {
		r.MaxFloor = d.MaxFloor
	}
	if r.MaxCeiling == 0 {
		r.MaxCeiling = d.MaxCeiling
	}
	if r.WarnInterval == 0 {
		r.WarnInterval = retry.DefaultWarnInterval
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.DeadLetter.Backend == "" {
		c.DeadLetter.Backend = BackendNone
	}
	if c.DeadLetter.ReplayLimit == 0 {
		c.DeadLetter.ReplayLimit = 100
	}
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error

	for _, u := range c.Cluster.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("cluster.urls: %q is not an http(s) URL", u))
		}
	}
	if c.Cluster.AWS.Enabled && c.Cluster.AWS.Region == "" {
		errs = append(errs, errors.New("cluster.aws.region is required when aws is enabled"))
	}

	r := c.Retry
	if r.InitialFloor > r.InitialCeiling {
		errs = append(errs, errors.New("retry.initial_floor must not exceed retry.initial_ceiling"))
	}
	if r.MaxFloor > r.MaxCeiling {
		errs = append(errs, errors.New("retry.max_floor must not exceed retry.max_ceiling"))
	}
	if r.InitialCeiling > r.MaxCeiling {
		errs = append(errs, errors.New("retry.initial_ceiling must not exceed retry.max_ceiling"))
	}
	if r.MaxRetries < 0 || r.MaxElapsed < 0 {
		errs = append(errs, errors.New("retry.max_retries and retry.max_elapsed must not be negative"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text", "pretty":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if c.DeadLetter.ReplayInterval < 0 {
		errs = append(errs, errors.New("dead_letter.replay_interval must not be negative"))
	}
	switch c.DeadLetter.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis dead letter backend"))
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres dead letter backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("dead_letter.backend: unknown backend %q", c.DeadLetter.Backend))
	}

	return errors.Join(errs...)
}
