// Package config loads process configuration from the environment once at
// startup. The resulting Config is passed explicitly to constructors; nothing
// below cmd/ reads environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Port           int           `env:"PORT"            envDefault:"8080"`
	AppEnv         string        `env:"APP_ENV"         envDefault:"development"`
	BaseURL        string        `env:"BASE_URL"        envDefault:"http://localhost:8080"`
	CORSOrigins    []string      `env:"CORS_ORIGINS"    envDefault:"http://localhost:3000" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	LogFile        string        `env:"LOG_FILE"`

	Auth      AuthConfig
	DB        DBConfig
	Mail      MailConfig
	Federated FederatedConfig
}

// AuthConfig controls token signing and the session cookie.
type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL"     envDefault:"24h"`
	EmailTokenTTL  time.Duration `env:"EMAIL_TOKEN_TTL" envDefault:"1h"`
	CookieSameSite string        `env:"COOKIE_SAMESITE" envDefault:"lax"`
}

// DBConfig selects the store. Driver is "sqlite" or "postgres".
type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DB_DSN"    envDefault:"data/eduqa.db"`
}

// MailConfig configures outgoing email. With no SMTP host, mail is logged
// instead of sent.
type MailConfig struct {
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string        `env:"SMTP_USERNAME"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	From         string        `env:"MAIL_FROM"     envDefault:"EduQA <no-reply@eduqa.local>"`
	Workers      int           `env:"MAIL_WORKERS"  envDefault:"2"`
	QueueSize    int           `env:"MAIL_QUEUE"    envDefault:"64"`
	Timeout      time.Duration `env:"MAIL_TIMEOUT"  envDefault:"10s"`
}

// FederatedConfig configures third-party sign-in. OIDC is enabled when a
// client id is set.
type FederatedConfig struct {
	OIDCProvider  string        `env:"OIDC_PROVIDER"     envDefault:"google"`
	OIDCClientID  string        `env:"OIDC_CLIENT_ID"`
	OIDCIssuer    string        `env:"OIDC_ISSUER"       envDefault:"https://accounts.google.com"`
	OIDCJWKSURL   string        `env:"OIDC_JWKS_URL"     envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	GitHubEnabled bool          `env:"GITHUB_ENABLED"    envDefault:"false"`
	GitHubAPIURL  string        `env:"GITHUB_API_URL"    envDefault:"https://api.github.com"`
	Timeout       time.Duration `env:"FEDERATED_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromMap parses configuration from vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that would only fail later at request time.
func (c Config) Validate() error {
	var errs []error

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", c.DB.Driver))
	}
	if _, ok := sameSiteModes[strings.ToLower(c.Auth.CookieSameSite)]; !ok {
		errs = append(errs, fmt.Errorf("COOKIE_SAMESITE %q: want lax, strict or none", c.Auth.CookieSameSite))
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.EmailTokenTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and EMAIL_TOKEN_TTL must be positive"))
	}
	if c.Mail.Workers < 1 || c.Mail.QueueSize < 1 {
		errs = append(errs, errors.New("MAIL_WORKERS and MAIL_QUEUE must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var sameSiteModes = map[string]http.SameSite{
	"lax":    http.SameSiteLaxMode,
	"strict": http.SameSiteStrictMode,
	"none":   http.SameSiteNoneMode,
}

// SameSite returns the cookie SameSite mode used by every auth flow.
func (c Config) SameSite() http.SameSite {
	if mode, ok := sameSiteModes[strings.ToLower(c.Auth.CookieSameSite)]; ok {
		return mode
	}
	return http.SameSiteLaxMode
}

// SecureCookies reports whether cookies get the Secure attribute. Browsers
// drop SameSite=None cookies that are not Secure, so none implies secure.
func (c Config) SecureCookies() bool {
	return c.IsProduction() || c.SameSite() == http.SameSiteNoneMode
}
