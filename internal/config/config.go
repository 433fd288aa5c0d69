package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreGorm     = "gorm"

	EventsMemory    = "memory"
	EventsGoChannel = "gochannel"
	EventsKafka     = "kafka"
	EventsRedis     = "redis"

	LockerMemory = "memory"
	LockerRedis  = "redis"
)

type Config struct {
	AppName  string
	LogLevel string
	HTTPAddr string

	Store      string
	SQLitePath string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	CarSpots  int
	BikeSpots int

	Events       string
	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Locker  string
	LockTTL time.Duration
}

// Load reads an optional .env file, then the environment. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		AppName:  getEnv("PARKIT_APP_NAME", "parkit"),
		LogLevel: getEnv("PARKIT_LOG_LEVEL", "info"),
		HTTPAddr: getEnv("PARKIT_HTTP_ADDR", ":8080"),

		Store:      strings.ToLower(getEnv("PARKIT_STORE", StoreMemory)),
		SQLitePath: getEnv("PARKIT_SQLITE_PATH", "parkit.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432, &errs),
		DBUser:     getEnv("DB_USER", "parkit"),
		DBPassword: getEnv("DB_PASSWORD", "parkit"),
		DBName:     getEnv("DB_NAME", "parkit"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		CarSpots:  getEnvInt("PARKIT_CAR_SPOTS", 3, &errs),
		BikeSpots: getEnvInt("PARKIT_BIKE_SPOTS", 2, &errs),

		Events:       strings.ToLower(getEnv("PARKIT_EVENTS", EventsMemory)),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0, &errs),

		Locker: strings.ToLower(getEnv("PARKIT_LOCKER", LockerMemory)),
	}

	ttl, err := time.ParseDuration(getEnv("PARKIT_LOCK_TTL", "10s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("PARKIT_LOCK_TTL: %w", err))
	}
	cfg.LockTTL = ttl

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// PostgresDSN renders the keyword/value connection string understood by both pgx and GORM.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

// NeedsRedis reports whether any component is configured to talk to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Events == EventsRedis || c.Locker == LockerRedis
}

func (c *Config) validate() []error {
	var errs []error
	if !oneOf(c.Store, StoreMemory, StoreSQLite, StorePostgres, StoreGorm) {
		errs = append(errs, fmt.Errorf("PARKIT_STORE: unsupported value %q", c.Store))
	}
	if !oneOf(c.Events, EventsMemory, EventsGoChannel, EventsKafka, EventsRedis) {
		errs = append(errs, fmt.Errorf("PARKIT_EVENTS: unsupported value %q", c.Events))
	}
	if !oneOf(c.Locker, LockerMemory, LockerRedis) {
		errs = append(errs, fmt.Errorf("PARKIT_LOCKER: unsupported value %q", c.Locker))
	}
	if c.CarSpots < 0 || c.BikeSpots < 0 {
		errs = append(errs, errors.New("spot counts cannot be negative"))
	}
	if c.Events == EventsKafka && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS: at least one broker is required"))
	}
	if c.LockTTL < 0 {
		errs = append(errs, errors.New("PARKIT_LOCK_TTL cannot be negative"))
	}
	return errs
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
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

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
