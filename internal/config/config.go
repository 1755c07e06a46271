// Package config содержит логику чтения конфигурации маркетплейса Atom Point.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const sqliteScheme = "sqlite://"

// Storage обозначает вид хранилища.
type Storage string

const (
	StoragePostgres Storage = "postgres"
	StorageSQLite   Storage = "sqlite"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenTTL          time.Duration `env:"TOKEN_TTL"`
	AdminNotifyUserID int64         `env:"ADMIN_NOTIFY_USER_ID"`
	LogLevel          string        `env:"LOG_LEVEL"`

	AdminLogin    string `env:"ADMIN_LOGIN"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	NotifyWorkers int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueue   int    `env:"NOTIFY_QUEUE" envDefault:"256"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI: postgres://... or sqlite://path")
	flag.StringVar(&cfg.JWTSecret, "s", "", "token signing secret, random per process if empty")
	flag.DurationVar(&cfg.TokenTTL, "t", 168*time.Hour, "token lifetime")
	flag.Int64Var(&cfg.AdminNotifyUserID, "n", 0, "user id receiving administrative notifications, 0 for the bootstrap admin")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.JWTSecret != "" {
		cfg.JWTSecret = fromEnv.JWTSecret
	}
	if fromEnv.TokenTTL != 0 {
		cfg.TokenTTL = fromEnv.TokenTTL
	}
	if fromEnv.AdminNotifyUserID != 0 {
		cfg.AdminNotifyUserID = fromEnv.AdminNotifyUserID
	}
	if fromEnv.LogLevel != "" {
		cfg.LogLevel = fromEnv.LogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURI == "" {
		return errors.New("database URI is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.NotifyWorkers < 1 {
		return errors.New("notify workers must be at least 1")
	}
	if c.NotifyQueue < 1 {
		return errors.New("notify queue must be at least 1")
	}
	if (c.AdminLogin == "") != (c.AdminPassword == "") {
		return errors.New("admin login and password must be set together")
	}
	return nil
}

// Storage определяет хранилище по схеме DATABASE_URI и возвращает строку подключения к нему.
// Для sqlite:// возвращается путь к файлу базы.
func (c *Config) Storage() (Storage, string) {
	if path, ok := strings.CutPrefix(c.DatabaseURI, sqliteScheme); ok {
		return StorageSQLite, path
	}
	return StoragePostgres, c.DatabaseURI
}
