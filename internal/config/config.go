// Package config centralises configuration parsing for the roster service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultEnvFile = "config/.env"

// Config captures runtime configuration values for the roster service.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Roster   RosterConfig   `mapstructure:"roster"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	// SchemaRegistryURL is optional; without it events are framed with schema id 0.
	SchemaRegistryURL string `mapstructure:"schema_registry_url"`
}

// HTTPConfig contains server options.
type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// RosterConfig controls the catalog and enrollment rules.
type RosterConfig struct {
	SeedFile        string `mapstructure:"seed_file"`
	EnforceCapacity bool   `mapstructure:"enforce_capacity"`
}

// KafkaConfig describes the event transport. Empty brokers disable event publishing.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// BrokerList returns the configured brokers as a slice.
func (k KafkaConfig) BrokerList() []string {
	return splitAndTrim(k.Brokers)
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.BrokerList()) > 0
}

// OutboxConfig tunes the in-memory event dispatcher.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
}

// ConsumerConfig describes the audit consumer.
type ConsumerConfig struct {
	GroupID string `mapstructure:"group_id"`
	Topics  string `mapstructure:"topics"`
}

// TopicList returns the configured topics as a slice.
func (c ConsumerConfig) TopicList() []string {
	return splitAndTrim(c.Topics)
}

// PostgresConfig holds the audit log connection string.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// MetricsConfig holds the standalone metrics listener address used by workers.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads the optional .env file and environment variables into Config.
func Load() (*Config, error) {
	v := viper.New()

	envFile := defaultEnvFile
	if custom, ok := os.LookupEnv("ROSTER_ENV_FILE"); ok && custom != "" {
		envFile = custom
	}
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.cors_origin", "*")

	v.SetDefault("logging.level", "info")

	v.SetDefault("roster.seed_file", "")
	v.SetDefault("roster.enforce_capacity", true)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "roster_events")
	v.SetDefault("schema_registry_url", "")

	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 25)
	v.SetDefault("outbox.queue_size", 1000)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.base_delay", time.Second)

	v.SetDefault("consumer.group_id", "roster-audit")
	v.SetDefault("consumer.topics", "roster_events")
	v.SetDefault("postgres.url", "")
	v.SetDefault("metrics.address", ":9195")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"http.address",
		"http.read_timeout",
		"http.write_timeout",
		"http.idle_timeout",
		"http.shutdown_timeout",
		"http.cors_origin",
		"logging.level",
		"roster.seed_file",
		"roster.enforce_capacity",
		"kafka.brokers",
		"kafka.topic",
		"schema_registry_url",
		"outbox.poll_interval",
		"outbox.batch_size",
		"outbox.queue_size",
		"outbox.max_retries",
		"outbox.base_delay",
		"consumer.group_id",
		"consumer.topics",
		"postgres.url",
		"metrics.address",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Validate ensures the API service can start.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Address) == "" {
		return errors.New("http.address is required")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.IdleTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http timeouts must be > 0")
	}
	if c.Outbox.PollInterval <= 0 {
		return errors.New("outbox.poll_interval must be > 0")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.QueueSize <= 0 {
		return errors.New("outbox batch and queue sizes must be > 0")
	}
	if c.Kafka.Enabled() && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

// ValidateConsumer adds the requirements of the audit consumer.
func (c Config) ValidateConsumer() error {
	if !c.Kafka.Enabled() {
		return errors.New("kafka.brokers is required for the consumer")
	}
	if len(c.Consumer.TopicList()) == 0 {
		return errors.New("consumer.topics is required")
	}
	if strings.TrimSpace(c.Postgres.URL) == "" {
		return errors.New("postgres.url is required for the consumer")
	}
	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
