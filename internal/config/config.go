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

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Validator ValidatorConfig
	Lock      LockConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Cron     string
	Location *time.Location
}

type ValidatorConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
}

type LockConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv reads .env from the working directory when present.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadAll reads the configuration from the environment and reports every
// problem at once.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Scheduler: SchedulerConfig{
			Cron: getEnv("SYNC_CRON", "0 3 * * *"),
		},
		Log: LoadLog(),
	}

	var err error
	cfg.Database.PostgresURL, err = requireEnv("POSTGRES_URL")
	collect(err)
	cfg.Validator.URL, err = requireEnv("VALIDATOR_URL")
	collect(err)

	timeout, err := getEnvInt("VALIDATOR_TIMEOUT_SECONDS", 10)
	collect(err)
	cfg.Validator.Timeout = time.Duration(timeout) * time.Second

	cfg.Validator.MaxAttempts, err = getEnvInt("VALIDATOR_MAX_ATTEMPTS", 3)
	collect(err)

	lockTTL, err := getEnvInt("LOCK_TTL_SECONDS", 900)
	collect(err)
	cfg.Lock.TTL = time.Duration(lockTTL) * time.Second

	tz := getEnv("SYNC_TIMEZONE", "UTC")
	cfg.Scheduler.Location, err = time.LoadLocation(tz)
	if err != nil {
		collect(fmt.Errorf("invalid SYNC_TIMEZONE %q: %w", tz, err))
	}

	cfg.Redis, err = loadRedisConfig()
	collect(err)

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the Postgres settings, for commands that need
// nothing else.
func LoadDatabase() (DatabaseConfig, error) {
	url, err := requireEnv("POSTGRES_URL")
	return DatabaseConfig{PostgresURL: url}, err
}

func LoadLog() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err1 := getEnvInt("REDIS_DB", 0)
	ttl, err2 := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err := joinErrors([]error{err1, err2}); err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Validator.Timeout <= 0 {
		errs = append(errs, errors.New("VALIDATOR_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Validator.MaxAttempts <= 0 {
		errs = append(errs, errors.New("VALIDATOR_MAX_ATTEMPTS must be > 0"))
	}
	if cfg.Lock.TTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL_SECONDS must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
