// Package config loads the back office configuration from YAML with APP__
// environment overrides and validates it before anything is wired.
package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "APP__"

var (
	serverModes = []string{gin.DebugMode, gin.ReleaseMode, gin.TestMode}
	sslModes    = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	releaseSSL  = []string{"require", "verify-ca", "verify-full"}
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`

	Backend     BackendConfig     `koanf:"backend"`
	Listing     ListingConfig     `koanf:"listing"`
	Permissions PermissionsConfig `koanf:"permissions"`
	Entities    []EntityConfig    `koanf:"entities"`
}

type ServerConfig struct {
	Host       string          `koanf:"host"`
	Port       int             `koanf:"port"`
	Mode       string          `koanf:"mode"`
	CSRFSecret string          `koanf:"csrf_secret"`
	Timeout    string          `koanf:"timeout"`
	CORS       CORSConfig      `koanf:"cors"`
	RateLimit  RateLimitConfig `koanf:"rate_limit"`
	Session    SessionConfig   `koanf:"session"`
}

type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// RateLimitConfig is a per-client-IP token bucket.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// SessionConfig names the anonymous cookie that scopes list page state.
type SessionConfig struct {
	CookieName string `koanf:"cookie_name"`
	MaxAge     string `koanf:"max_age"`
}

// DatabaseConfig selects the store for role permissions and column
// preferences.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig configures github.com/simp-lee/logger. File output is enabled by
// FilePath; the rotation fields only apply to it.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// Load reads configPath and overlays environment variables. Variables use
// the APP__ prefix with "__" between levels, so APP__SERVER__PORT sets
// server.port and APP__DATABASE__POOL__MAX_IDLE_CONNS sets
// database.pool.max_idle_conns.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Validate normalizes c in place, fills defaults and rejects unsupported
// values. The first problem found is returned.
func (c *Config) Validate() error {
	for _, step := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateBackend,
		c.validateListing,
		c.validatePermissions,
		c.validateEntities,
		c.validateLog,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	s := &c.Server
	s.Mode = strings.TrimSpace(s.Mode)
	if !slices.Contains(serverModes, s.Mode) {
		return fmt.Errorf("invalid server.mode %q: must be one of %s", s.Mode, quoted(serverModes))
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", s.Port)
	}
	if s.Host = strings.TrimSpace(s.Host); s.Host == "" {
		return errors.New("server.host is required")
	}

	for _, d := range []struct {
		name  string
		value *string
	}{
		{"server.timeout", &s.Timeout},
		{"server.cors.max_age", &s.CORS.MaxAge},
		{"server.session.max_age", &s.Session.MaxAge},
	} {
		if _, err := parseOptionalDuration(d.name, d.value); err != nil {
			return err
		}
	}

	if s.RateLimit.Enabled {
		if s.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid server.rate_limit.rps %v: must be positive when rate limiting is enabled", s.RateLimit.RPS)
		}
		if s.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid server.rate_limit.burst %d: must be positive when rate limiting is enabled", s.RateLimit.Burst)
		}
	}

	if s.Session.CookieName = strings.TrimSpace(s.Session.CookieName); s.Session.CookieName == "" {
		s.Session.CookieName = DefaultSessionCookie
	}

	// Release mode signs page tokens with this secret.
	if s.Mode == gin.ReleaseMode {
		s.CSRFSecret = strings.TrimSpace(s.CSRFSecret)
		if len(s.CSRFSecret) < 16 || CountSecretClasses(s.CSRFSecret) < 3 {
			return errors.New("server.csrf_secret must be at least 16 characters with 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	db := &c.Database
	switch db.Driver {
	case "sqlite":
		if db.SQLite.Path = strings.TrimSpace(db.SQLite.Path); db.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required when driver is sqlite")
		}
	case "postgres":
		if err := validatePostgres(&db.Postgres, c.Server.Mode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of \"sqlite\", \"postgres\"", db.Driver)
	}
	_, err := parseOptionalDuration("database.pool.conn_max_lifetime", &db.Pool.ConnMaxLifetime)
	return err
}

func validatePostgres(pg *PostgresConfig, mode string) error {
	required := []struct {
		name  string
		value *string
	}{
		{"host", &pg.Host},
		{"user", &pg.User},
		{"dbname", &pg.DBName},
	}
	for _, f := range required {
		if *f.value = strings.TrimSpace(*f.value); *f.value == "" {
			return fmt.Errorf("database.postgres.%s is required when driver is postgres", f.name)
		}
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
	}

	pg.SSLMode = strings.TrimSpace(pg.SSLMode)
	if !slices.Contains(sslModes, pg.SSLMode) {
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %s", pg.SSLMode, quoted(sslModes))
	}
	if mode == gin.ReleaseMode && !slices.Contains(releaseSSL, pg.SSLMode) {
		return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %s", pg.SSLMode, mode, quoted(releaseSSL))
	}
	return nil
}

func (c *Config) validateLog() error {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if _, ok := logLevels[c.Log.Level]; !ok {
		return fmt.Errorf("invalid log.level %q: must be one of %s", c.Log.Level, quoted(slices.Sorted(maps.Keys(logLevels))))
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if _, ok := logFormats[c.Log.Format]; !ok {
		return fmt.Errorf("invalid log.format %q: must be one of %s", c.Log.Format, quoted(slices.Sorted(maps.Keys(logFormats))))
	}
	return nil
}

func quoted(values []string) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(out, ", ")
}

// CountSecretClasses counts the classes present in secret out of lowercase,
// uppercase, digit and symbol.
func CountSecretClasses(secret string) int {
	var seen [4]bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			seen[0] = true
		case unicode.IsUpper(r):
			seen[1] = true
		case unicode.IsDigit(r):
			seen[2] = true
		default:
			seen[3] = true
		}
	}
	n := 0
	for _, ok := range seen {
		if ok {
			n++
		}
	}
	return n
}
