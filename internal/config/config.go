// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// DevJWTSecret is used when JWT_SECRET is unset. Never deploy with it.
const DevJWTSecret = "splitit-dev-secret-change-me"

// Config holds all server settings.
type Config struct {
	// DBDriver is "sqlite" (default) or "mysql".
	DBDriver string
	// DBDSN is a SQLite file path or a MySQL DSN.
	DBDSN string

	Port          int
	JWTSecret     string
	TokenDuration time.Duration

	// SiteURL is the public base URL used in invitation links.
	SiteURL             string
	InviteTTL           time.Duration
	InviteSweepSchedule string

	SMTP SMTPConfig

	LogLevel  string
	LogFormat string
}

// SMTPConfig configures outgoing invitation email. An empty Host disables
// delivery; invitations are then only logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether SMTP delivery is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// Load reads the given .env files (".env" when none are given) into the
// process environment without overriding variables already set, then
// builds a Config. Missing .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		DBDriver:            getEnv("DB_DRIVER", "sqlite"),
		Port:                getInt("PORT", 8080, &errs),
		JWTSecret:           getEnv("JWT_SECRET", DevJWTSecret),
		TokenDuration:       getDuration("TOKEN_DURATION", 24*time.Hour, &errs),
		SiteURL:             getEnv("SITE_URL", "http://localhost:8080"),
		InviteTTL:           getDuration("INVITE_TTL", 7*24*time.Hour, &errs),
		InviteSweepSchedule: getEnv("INVITE_SWEEP_SCHEDULE", "0 */6 * * *"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587, &errs),
			Username: os.Getenv("SMTP_EMAIL"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	switch cfg.DBDriver {
	case "sqlite":
		cfg.DBDSN = getEnv("DB_DSN", getEnv("DB_PATH", "./data/splitit.db"))
	case "mysql":
		cfg.DBDSN = os.Getenv("DB_DSN")
		if cfg.DBDSN == "" {
			cfg.DBDSN = mysqlDSNFromParts()
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.DBDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mysqlDSNFromParts assembles a DSN from DB_USER, DB_PASSWORD, DB_HOST,
// DB_PORT and DB_NAME.
func mysqlDSNFromParts() string {
	mc := mysql.NewConfig()
	mc.User = os.Getenv("DB_USER")
	mc.Passwd = os.Getenv("DB_PASSWORD")
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(getEnv("DB_HOST", "127.0.0.1"), getEnv("DB_PORT", "3306"))
	mc.DBName = getEnv("DB_NAME", "splitit")
	return mc.FormatDSN()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
