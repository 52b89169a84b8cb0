// Package config loads runtime settings from an optional TOML file with
// environment variable overrides. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ActiveRepo string `toml:"active_repo"` // AUDITSTORE_ACTIVE_REPO (default "redis")

	RedisAddr   string `toml:"redis_addr"`   // AUDITSTORE_REDIS_ADDR (default "localhost:6379")
	DatabaseURL string `toml:"database_url"` // AUDITSTORE_DATABASE_URL (required for postgres)

	// CloudWatch settings
	CloudWatchLogGroup  string `toml:"cloudwatch_log_group"`  // AUDITSTORE_CLOUDWATCH_LOG_GROUP
	CloudWatchLogStream string `toml:"cloudwatch_log_stream"` // AUDITSTORE_CLOUDWATCH_LOG_STREAM
	CloudWatchRegion    string `toml:"cloudwatch_region"`     // AUDITSTORE_CLOUDWATCH_REGION (default "us-east-1")
	CloudWatchAccessKey string `toml:"cloudwatch_access_key"` // AUDITSTORE_CLOUDWATCH_ACCESS_KEY (optional)
	CloudWatchSecretKey string `toml:"cloudwatch_secret_key"` // AUDITSTORE_CLOUDWATCH_SECRET_KEY (optional)

	// Event bus settings
	NATSURL     string `toml:"nats_url"`     // AUDITSTORE_NATS_URL (optional, empty = no listener)
	ListenTopic string `toml:"listen_topic"` // AUDITSTORE_LISTEN_TOPIC (default "audit.event.>")

	// Batching writer settings
	BatchSize    int           `toml:"batch_size"` // AUDITSTORE_BATCH_SIZE (default 10)
	BatchTimeout time.Duration `toml:"-"`          // AUDITSTORE_BATCH_TIMEOUT (default 5s); "batch_timeout" in TOML
	QueueSize    int           `toml:"queue_size"` // AUDITSTORE_QUEUE_SIZE (default 1000)

	// Events matching either list are dropped before storage.
	IgnoredCategories []string `toml:"ignored_categories"` // AUDITSTORE_IGNORED_CATEGORIES (comma-separated)
	IgnoredActions    []string `toml:"ignored_actions"`    // AUDITSTORE_IGNORED_ACTIONS (comma-separated)
}

// Load reads path (when non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	c := &Config{
		ActiveRepo:       "redis",
		RedisAddr:        "localhost:6379",
		CloudWatchRegion: "us-east-1",
		ListenTopic:      "audit.event.>",
		BatchSize:        10,
		BatchTimeout:     5 * time.Second,
		QueueSize:        1000,
	}

	if path != "" {
		// TOML carries the timeout as a duration string; decode it
		// beside the config and parse afterwards.
		file := struct {
			*Config
			BatchTimeout string `toml:"batch_timeout"`
		}{Config: c}
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if file.BatchTimeout != "" {
			d, err := time.ParseDuration(file.BatchTimeout)
			if err != nil {
				return nil, fmt.Errorf("batch_timeout in %s: %w", path, err)
			}
			c.BatchTimeout = d
		}
	}

	applyEnv(&c.ActiveRepo, "AUDITSTORE_ACTIVE_REPO")
	applyEnv(&c.RedisAddr, "AUDITSTORE_REDIS_ADDR")
	applyEnv(&c.DatabaseURL, "AUDITSTORE_DATABASE_URL")
	applyEnv(&c.CloudWatchLogGroup, "AUDITSTORE_CLOUDWATCH_LOG_GROUP")
	applyEnv(&c.CloudWatchLogStream, "AUDITSTORE_CLOUDWATCH_LOG_STREAM")
	applyEnv(&c.CloudWatchRegion, "AUDITSTORE_CLOUDWATCH_REGION")
	applyEnv(&c.CloudWatchAccessKey, "AUDITSTORE_CLOUDWATCH_ACCESS_KEY")
	applyEnv(&c.CloudWatchSecretKey, "AUDITSTORE_CLOUDWATCH_SECRET_KEY")
	applyEnv(&c.NATSURL, "AUDITSTORE_NATS_URL")
	applyEnv(&c.ListenTopic, "AUDITSTORE_LISTEN_TOPIC")

	if err := applyEnvInt(&c.BatchSize, "AUDITSTORE_BATCH_SIZE"); err != nil {
		return nil, err
	}
	if err := applyEnvInt(&c.QueueSize, "AUDITSTORE_QUEUE_SIZE"); err != nil {
		return nil, err
	}
	if v := os.Getenv("AUDITSTORE_BATCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("AUDITSTORE_BATCH_TIMEOUT: %w", err)
		}
		c.BatchTimeout = d
	}
	if v := os.Getenv("AUDITSTORE_IGNORED_CATEGORIES"); v != "" {
		c.IgnoredCategories = splitList(v)
	}
	if v := os.Getenv("AUDITSTORE_IGNORED_ACTIONS"); v != "" {
		c.IgnoredActions = splitList(v)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.ActiveRepo {
	case "redis", "postgres", "cloudwatch":
	default:
		return fmt.Errorf("unknown active_repo %q", c.ActiveRepo)
	}
	if c.ActiveRepo == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("AUDITSTORE_DATABASE_URL is required for the postgres backend")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}

func applyEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyEnvInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
