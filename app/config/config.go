// Package config reads the server settings from the environment, after
// loading a .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// devSecret signs tokens in development when JWT_SECRET is unset.
const devSecret = "postvote-insecure-development-secret"

type Config struct {
	Addr string
	Env  string

	StoreDriver  string
	BadgerPath   string
	DatabaseURL  string
	StoreTimeout time.Duration

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	AuthRateRPS    float64
	AuthRateBurst  int
	// TrustedProxies may set X-Forwarded-For; empty trusts no one.
	TrustedProxies []netip.Prefix

	LogLevel  slog.Level
	LogFormat string
}

// Load reads the given .env files (".env" when none are named) and then
// the process environment. Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := envReader{get: getenv}
	c := &Config{
		Addr:            env.str("POSTVOTE_ADDR", ":8080"),
		Env:             env.str("APP_ENV", "development"),
		StoreDriver:     strings.ToLower(env.str("STORE_DRIVER", DriverBadger)),
		BadgerPath:      env.str("BADGER_PATH", "data/badger"),
		DatabaseURL:     env.str("DATABASE_URL", ""),
		StoreTimeout:    env.duration("STORE_TIMEOUT", 5*time.Second),
		JWTSecret:       env.str("JWT_SECRET", ""),
		AccessTokenTTL:  env.duration("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL: env.duration("REFRESH_TOKEN_TTL", 24*time.Hour),
		AuthRateRPS:     env.float("AUTH_RATE_RPS", 1),
		AuthRateBurst:   env.int("AUTH_RATE_BURST", 5),
		TrustedProxies:  env.prefixes("TRUSTED_PROXIES"),
		LogFormat:       strings.ToLower(env.str("LOG_FORMAT", "")),
	}

	if err := c.LogLevel.UnmarshalText([]byte(env.str("LOG_LEVEL", "info"))); err != nil {
		env.errs = append(env.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
		if c.IsProduction() {
			c.LogFormat = "json"
		}
	}

	switch c.StoreDriver {
	case DriverBadger:
	case DriverSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = "data/postvote.db"
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			env.errs = append(env.errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		env.errs = append(env.errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			env.errs = append(env.errs, errors.New("JWT_SECRET is required in production"))
		}
		c.JWTSecret = devSecret
	}

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	return c, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type envReader struct {
	get  func(string) string
	errs []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *envReader) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

// prefixes parses a comma separated list of CIDRs or bare addresses.
func (e *envReader) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, item := range strings.Split(e.str(key, ""), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: invalid address %q", key, item))
			continue
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}
