package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DevTokenSecret is the signing secret used when TOKEN_SECRET is unset outside
// production. It is public and must never sign real credentials.
const DevTokenSecret = "rollcall-development-secret-change-me"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 32
)

// Config holds runtime configuration shared by the rollcall binaries.
type Config struct {
	Addr           string        `env:"ADDR,default=:8080"`
	Env            string        `env:"APP_ENV,default=development"`
	DBDSN          string        `env:"DB_DSN,required"`
	TokenSecret    string        `env:"TOKEN_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL,default=24h"`
	BcryptCost     int           `env:"BCRYPT_COST,default=10"`
	CookieSecure   bool          `env:"COOKIE_SECURE,default=false"`
	CookieDomain   string        `env:"COOKIE_DOMAIN"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	SweepInterval  time.Duration `env:"SESSION_SWEEP_INTERVAL,default=1h"`
	NATSURL        string        `env:"NATS_URL"`
	S3Bucket       string        `env:"S3_BUCKET"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	LogFormat      string        `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file and returns a Config populated from the
// environment. The returned Config has already passed Validate.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether the service runs with production rules.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// UsesFallbackSecret reports whether tokens would be signed with DevTokenSecret.
func (c Config) UsesFallbackSecret() bool {
	return c.TokenSecret == "" || c.TokenSecret == DevTokenSecret
}

// SigningSecret returns the configured secret or the development fallback.
func (c Config) SigningSecret() []byte {
	if c.TokenSecret == "" {
		return []byte(DevTokenSecret)
	}
	return []byte(c.TokenSecret)
}

// Validate checks invariants that must hold before the service starts.
func (c Config) Validate() error {
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d is outside the valid range 4-31", c.BcryptCost)
	}
	if c.SweepInterval < 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must not be negative")
	}

	if !c.Production() {
		return nil
	}
	if c.UsesFallbackSecret() {
		return errors.New("TOKEN_SECRET is required in production")
	}
	if len(c.TokenSecret) < minSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d bytes in production", minSecretLength)
	}
	if !c.CookieSecure {
		return errors.New("COOKIE_SECURE must be enabled in production")
	}
	if slices.Contains(c.AllowedOrigins, "*") {
		return errors.New("CORS_ALLOWED_ORIGINS must not contain * in production")
	}
	return nil
}
