package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultMaxIdleConns    = 10
	defaultMaxOpenConns    = 100
	defaultConnMaxLifetime = "1h"
	slowQueryThreshold     = 200 * time.Millisecond
)

// poolSettings is PoolConfig with defaults applied.
type poolSettings struct {
	maxIdle  int
	maxOpen  int
	lifetime time.Duration
}

func resolvePool(p PoolConfig) (poolSettings, error) {
	raw := effectiveConnMaxLifetime(p.ConnMaxLifetime)
	lifetime, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return poolSettings{}, fmt.Errorf("invalid pool.conn_max_lifetime %q: %w", p.ConnMaxLifetime, err)
	}
	if lifetime <= 0 {
		return poolSettings{}, fmt.Errorf("invalid pool.conn_max_lifetime %q: must be greater than 0", p.ConnMaxLifetime)
	}
	return poolSettings{
		maxIdle:  effectiveMaxIdleConns(p.MaxIdleConns),
		maxOpen:  effectiveMaxOpenConns(p.MaxOpenConns),
		lifetime: lifetime,
	}, nil
}

// SetupDatabase opens the store holding role permissions and column
// preferences. SQL logging goes through logger; a debug-level logger sees
// every statement.
func SetupDatabase(cfg *DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("database config is nil")
	case logger == nil:
		return nil, errors.New("logger is nil")
	}

	pool, err := resolvePool(cfg.Pool)
	if err != nil {
		return nil, err
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(pool.maxIdle)
	sqlDB.SetMaxOpenConns(pool.maxOpen)
	sqlDB.SetConnMaxLifetime(pool.lifetime)

	logger.Info("database connected",
		slog.String("driver", cfg.Driver),
		slog.Int("max_idle_conns", pool.maxIdle),
		slog.Int("max_open_conns", pool.maxOpen),
		slog.Duration("conn_max_lifetime", pool.lifetime),
	)
	return db, nil
}

func dialectorFor(cfg *DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory %q: %w", dir, err)
			}
		}
		return sqlite.Open(cfg.SQLite.Path), nil
	case "postgres":
		return postgres.Open(buildPostgresDSN(&cfg.Postgres)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Migrate creates or updates the local tables.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func newGormLogger(logger *slog.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		level = gormlogger.Info
	}
	return gormlogger.NewSlogLogger(logger, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

func effectiveMaxIdleConns(v int) int {
	return cmpPositive(v, defaultMaxIdleConns)
}

func effectiveMaxOpenConns(v int) int {
	return cmpPositive(v, defaultMaxOpenConns)
}

func cmpPositive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func effectiveConnMaxLifetime(v string) string {
	if strings.TrimSpace(v) == "" {
		return defaultConnMaxLifetime
	}
	return v
}

// buildPostgresDSN renders a URL-form DSN so credentials with reserved
// characters are escaped.
func buildPostgresDSN(cfg *PostgresConfig) string {
	if cfg == nil {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   cfg.DBName,
	}
	if cfg.User != "" || cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}
