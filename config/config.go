package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingDatabaseURL is returned by Load when DATABASE_URL is not set.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Log      LogConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL string
}

// RedisConfig configures the idempotency store. An empty Addr disables it.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// KafkaConfig configures product event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers        []string
	TopicProduct   string
	ConsumerGroup  string
	AuditWorker    bool
	// PublishTimeout bounds each synchronous publish made inside a request.
	PublishTimeout time.Duration
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

// LogConfig configures where log entries are written besides stdout.
// An explicitly empty LOG_FILE keeps logs on stdout only.
type LogConfig struct {
	File string
}

type BusinessConfig struct {
	MaxPageSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	idempotencyTTL, _ := strconv.Atoi(getEnv("IDEMPOTENCY_TTL_SECONDS", "86400"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "1000"))
	if maxPageSize <= 0 {
		maxPageSize = 1000
	}
	auditWorker, _ := strconv.ParseBool(getEnv("AUDIT_WORKER_ENABLED", "false"))
	publishTimeoutMS, _ := strconv.Atoi(getEnv("KAFKA_PUBLISH_TIMEOUT_MS", "2000"))
	logFile, ok := os.LookupEnv("LOG_FILE")
	if !ok {
		logFile = "app.log"
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             redisDB,
			IdempotencyTTL: time.Duration(idempotencyTTL) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			TopicProduct:   getEnv("PRODUCT_EVENTS_TOPIC", "product-events"),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "product-audit-group"),
			AuditWorker:    auditWorker,
			PublishTimeout: time.Duration(publishTimeoutMS) * time.Millisecond,
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		},
		Log: LogConfig{
			File: logFile,
		},
		Business: BusinessConfig{
			MaxPageSize: maxPageSize,
		},
	}

	if cfg.Database.URL == "" {
		return nil, ErrMissingDatabaseURL
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
