// Package config loads the IAM service configuration from the environment.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret is the HS256 secret used when JWT_SECRET is unset outside
// production.
const DevJWTSecret = "dev-secret-change-in-production"

// Config holds the configuration shared by the server and iamctl.
type Config struct {
	MetaDBPath string // path to the SQLite IAM store (default "iam.sqlite")
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"
	NodeName   string // identifies this process in logs (default: hostname)

	// Authentication
	JWTSecret string        // HS256 shared secret for bearer tokens
	JWTIssuer string        // required iss claim when set
	JWTLeeway time.Duration // clock skew tolerance (default 30s)

	// OIDC replaces HS256 validation when IssuerURL or JWKSURL is set.
	Auth AuthConfig

	// SeedFile is an optional TenantSeed document applied at startup.
	SeedFile string

	// BcryptCost is the work factor for password hashes (0 selects the
	// library default).
	BcryptCost int

	// Denial throttling per user.
	DenialRPS   float64 // sustained denied checks per second (default 5)
	DenialBurst int     // burst capacity (default 20)

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// AuthConfig holds external identity provider settings.
type AuthConfig struct {
	IssuerURL      string   // OIDC discovery issuer
	JWKSURL        string   // direct JWKS endpoint, skips discovery
	Audience       string   // expected aud claim
	AllowedIssuers []string // accepted iss values (default: IssuerURL)
}

// OIDCEnabled reports whether bearer tokens are verified against an
// external provider instead of the shared secret.
func (a AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath: os.Getenv("META_DB_PATH"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		NodeName:   os.Getenv("IAM_NODE_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  os.Getenv("JWT_ISSUER"),
		SeedFile:   os.Getenv("IAM_SEED_FILE"),
		Auth: AuthConfig{
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
		},
	}
	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		for _, iss := range strings.Split(v, ",") {
			if iss = strings.TrimSpace(iss); iss != "" {
				cfg.Auth.AllowedIssuers = append(cfg.Auth.AllowedIssuers, iss)
			}
		}
	}
	if cfg.Auth.JWKSURL != "" && cfg.Auth.IssuerURL == "" {
		return nil, fmt.Errorf("AUTH_ISSUER_URL is required when AUTH_JWKS_URL is set")
	}

	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse JWT_LEEWAY: %w", err)
		}
		cfg.JWTLeeway = d
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}
	if v := os.Getenv("DENIAL_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DenialRPS = f
		}
	}
	if v := os.Getenv("DENIAL_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DenialBurst = n
		}
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "iam.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.NodeName == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NodeName = host
		}
	}
	if cfg.JWTLeeway == 0 {
		cfg.JWTLeeway = 30 * time.Second
	}
	if cfg.DenialRPS == 0 {
		cfg.DenialRPS = 5
	}
	if cfg.DenialBurst == 0 {
		cfg.DenialBurst = 20
	}
	if cfg.JWTSecret == "" && !cfg.Auth.OIDCEnabled() {
		cfg.JWTSecret = DevJWTSecret
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET not set, using insecure default. Set JWT_SECRET in production!")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() && !cfg.Auth.OIDCEnabled() {
		if cfg.JWTSecret == DevJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
