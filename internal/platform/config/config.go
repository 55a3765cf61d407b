package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string

	StoreDriver string
	PostgresDSN string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	AMQPExchange string

	ProcessingDelay    time.Duration
	SubscriberBuffer   int
	StreamWriteTimeout time.Duration
	StreamPingInterval time.Duration
	ShutdownTimeout    time.Duration

	CORSAllowedOrigins []string

	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIDeployment string

	LogLevel  string
	LogFormat string
}

// SummarizerEnabled reports whether every Azure OpenAI setting is present.
func (c Config) SummarizerEnabled() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIAPIKey != "" && c.AzureOpenAIDeployment != ""
}

// Load reads defaults, then the optional config file, then the environment.
// Later sources win.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", configFile, err)
		}
	}

	cfg := Config{
		ServiceName: strings.TrimSpace(v.GetString("SERVICE_NAME")),
		HTTPPort:    strings.TrimSpace(v.GetString("HTTP_PORT")),

		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		PostgresDSN: strings.TrimSpace(v.GetString("POSTGRES_DSN")),
		SQLitePath:  strings.TrimSpace(v.GetString("SQLITE_PATH")),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		AMQPURL:      strings.TrimSpace(v.GetString("AMQP_URL")),
		AMQPExchange: strings.TrimSpace(v.GetString("AMQP_EXCHANGE")),

		ProcessingDelay:    v.GetDuration("PROCESSING_DELAY"),
		SubscriberBuffer:   v.GetInt("SUBSCRIBER_BUFFER"),
		StreamWriteTimeout: v.GetDuration("STREAM_WRITE_TIMEOUT"),
		StreamPingInterval: v.GetDuration("STREAM_PING_INTERVAL"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		AzureOpenAIEndpoint:   strings.TrimSpace(v.GetString("AZURE_OPENAI_ENDPOINT")),
		AzureOpenAIAPIKey:     strings.TrimSpace(v.GetString("AZURE_OPENAI_API_KEY")),
		AzureOpenAIDeployment: strings.TrimSpace(v.GetString("AZURE_OPENAI_DEPLOYMENT")),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ProcessingDelay < 0 {
		return errors.New("PROCESSING_DELAY must not be negative")
	}
	if c.SubscriberBuffer <= 0 {
		return errors.New("SUBSCRIBER_BUFFER must be positive")
	}
	if c.StreamWriteTimeout <= 0 || c.StreamPingInterval <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("stream and shutdown timeouts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "txengine")
	v.SetDefault("HTTP_PORT", "8000")
	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("SQLITE_PATH", "txengine.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "transaction.status")
	v.SetDefault("PROCESSING_DELAY", 5*time.Second)
	v.SetDefault("SUBSCRIBER_BUFFER", 64)
	v.SetDefault("STREAM_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("STREAM_PING_INTERVAL", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("AZURE_OPENAI_ENDPOINT", "")
	v.SetDefault("AZURE_OPENAI_API_KEY", "")
	v.SetDefault("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func splitList(raw string) []string {
	var items []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
