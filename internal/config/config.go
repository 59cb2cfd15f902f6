// Package config loads service settings from defaults, an optional YAML
// file, an optional .env file and STORES_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. STORES_DB_DRIVER.
const EnvPrefix = "STORES"

// Repository drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Event transports.
const (
	TransportLog   = "log"
	TransportAMQP  = "amqp"
	TransportRedis = "redis"
)

// Config is the resolved service configuration.
type Config struct {
	Env             string
	ServerAddr      string
	LogLevel        string
	DBDriver        string
	DBPath          string
	MongoURI        string
	MongoDatabase   string
	RedisAddr       string
	EventsTransport string
	EventsOutbox    bool
	AMQPURL         string
	AMQPExchange    string
	OutboxInterval  time.Duration
	OutboxBatchSize int
	RateLimit       int
	SlowQuery       time.Duration
	SlowRequest     time.Duration
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "storefinder.db")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "storefinder")
	v.SetDefault("redis.addr", "")
	v.SetDefault("events.transport", TransportLog)
	v.SetDefault("events.outbox", false)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "storefinder.events")
	v.SetDefault("outbox.interval", "1m")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("http.rate_limit", 10)
	v.SetDefault("slow.query_ms", 50)
	v.SetDefault("slow.request_ms", 200)
}

// Load resolves the configuration.
// PRE: path is empty or names a YAML file
// POST: Returns a validated Config; a missing .env is not an error, a missing explicit path is
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Env:             v.GetString("env"),
		ServerAddr:      v.GetString("server.addr"),
		LogLevel:        v.GetString("log.level"),
		DBDriver:        strings.ToLower(v.GetString("db.driver")),
		DBPath:          v.GetString("db.path"),
		MongoURI:        v.GetString("mongo.uri"),
		MongoDatabase:   v.GetString("mongo.database"),
		RedisAddr:       v.GetString("redis.addr"),
		EventsTransport: strings.ToLower(v.GetString("events.transport")),
		EventsOutbox:    v.GetBool("events.outbox"),
		AMQPURL:         v.GetString("amqp.url"),
		AMQPExchange:    v.GetString("amqp.exchange"),
		OutboxInterval:  v.GetDuration("outbox.interval"),
		OutboxBatchSize: v.GetInt("outbox.batch_size"),
		RateLimit:       v.GetInt("http.rate_limit"),
		SlowQuery:       time.Duration(v.GetInt("slow.query_ms")) * time.Millisecond,
		SlowRequest:     time.Duration(v.GetInt("slow.request_ms")) * time.Millisecond,
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected drivers have what they need.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("mongo.uri is required when db.driver=mongo")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DBDriver)
	}
	switch c.EventsTransport {
	case TransportLog:
	case TransportAMQP:
		if c.AMQPURL == "" {
			return errors.New("amqp.url is required when events.transport=amqp")
		}
	case TransportRedis:
		if c.RedisAddr == "" {
			return errors.New("redis.addr is required when events.transport=redis")
		}
	default:
		return fmt.Errorf("unknown events.transport %q", c.EventsTransport)
	}
	if c.OutboxInterval <= 0 {
		return errors.New("outbox.interval must be positive")
	}
	if c.RateLimit <= 0 {
		return errors.New("http.rate_limit must be positive")
	}
	return nil
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func NewLogger(c Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
