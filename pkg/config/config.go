// Package config loads and validates configuration for the indexer and
// searcher tools from an optional YAML file with environment-variable
// overrides. Command-line arguments are applied on top by the tools.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls a build run.
type IndexerConfig struct {
	Codec         string `yaml:"codec"`
	DataDir       string `yaml:"dataDir"`
	OutputDir     string `yaml:"outputDir"`
	MergeWorkers  int    `yaml:"mergeWorkers"`
	DedupPostings bool   `yaml:"dedupPostings"`
	MaxTokenSize  int    `yaml:"maxTokenSize"`
}

// SearchConfig controls a query session.
type SearchConfig struct {
	Codec    string `yaml:"codec"`
	IndexDir string `yaml:"indexDir"`
}

// PostgresConfig holds the build catalog connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings for build notifications.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds the query cache connection parameters.
type RedisConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	PoolSize         int           `yaml:"poolSize"`
	CacheTTL         time.Duration `yaml:"cacheTTL"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// ReportConfig bounds delivery of build notifications to Kafka and Postgres.
type ReportConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	InitialDelay   time.Duration `yaml:"initialDelay"`
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus export. The indexer writes a textfile
// after each build; the searcher serves /metrics on Port while running.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Port         int    `yaml:"port"`
	TextfilePath string `yaml:"textfilePath"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	if c.Indexer.MergeWorkers < 1 {
		return fmt.Errorf("indexer.mergeWorkers must be at least 1, got %d", c.Indexer.MergeWorkers)
	}
	if c.Indexer.MaxTokenSize < 0 {
		return fmt.Errorf("indexer.maxTokenSize must not be negative, got %d", c.Indexer.MaxTokenSize)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topics.IndexComplete == "") {
		return fmt.Errorf("kafka is enabled but brokers or topics.indexComplete is empty")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Indexer: IndexerConfig{
			Codec:        "Basic",
			MergeWorkers: 1,
			MaxTokenSize: 1 << 20,
		},
		Search: SearchConfig{
			Codec: "Basic",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bsbi",
			User:            "bsbi",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         4,
			CacheTTL:         5 * time.Minute,
			BreakerThreshold: 3,
			BreakerReset:     30 * time.Second,
		},
		Report: ReportConfig{
			MaxAttempts:    3,
			InitialDelay:   200 * time.Millisecond,
			AttemptTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads BSBI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BSBI_INDEXER_CODEC"); v != "" {
		cfg.Indexer.Codec = v
	}
	if v := os.Getenv("BSBI_INDEXER_MERGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.MergeWorkers = n
		}
	}
	if v := os.Getenv("BSBI_INDEXER_DEDUP_POSTINGS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.DedupPostings = b
		}
	}
	if v := os.Getenv("BSBI_SEARCH_CODEC"); v != "" {
		cfg.Search.Codec = v
	}
	if v := os.Getenv("BSBI_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("BSBI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BSBI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BSBI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BSBI_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("BSBI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BSBI_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("BSBI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BSBI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BSBI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BSBI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BSBI_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.TextfilePath = v
	}
}
