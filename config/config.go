// config/config.go
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	AuthProviderLocal  = "local"
	AuthProviderGoTrue = "gotrue"
)

type Config struct {
	Port   int    `env:"PORT" envDefault:"5200"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Session provider
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"local"`
	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	GoTrueURL       string        `env:"GOTRUE_URL"`
	GoTrueAnonKey   string        `env:"GOTRUE_ANON_KEY"`

	// HTTP surface
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	PublicOrigin   string   `env:"PUBLIC_ORIGIN"`

	GateCacheTTL time.Duration `env:"GATE_CACHE_TTL" envDefault:"5m"`

	// Emails promoted to admin when they sign up
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	// Local upload directory, served at /uploads when R2 is not configured
	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Cloudflare R2 (optional)
	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string `env:"R2_BUCKET_NAME"`
	CDNBaseURL          string `env:"CDN_BASE_URL"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that env tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (use postgres or memory)", c.StoreDriver)
	}

	switch c.AuthProvider {
	case AuthProviderLocal:
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters for the local auth provider")
		}
	case AuthProviderGoTrue:
		if c.GoTrueURL == "" || c.GoTrueAnonKey == "" {
			return fmt.Errorf("GOTRUE_URL and GOTRUE_ANON_KEY are required for the gotrue auth provider")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q (use local or gotrue)", c.AuthProvider)
	}

	for i, origin := range c.AllowedOrigins {
		c.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	c.PublicOrigin = strings.TrimRight(c.PublicOrigin, "/")
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) R2Enabled() bool {
	return c.R2BucketName != "" && c.CloudflareAccountID != ""
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if strings.ToLower(strings.TrimSpace(e)) == email && email != "" {
			return true
		}
	}
	return false
}
