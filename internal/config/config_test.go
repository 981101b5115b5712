package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"JWT_SECRET": "0123456789abcdef",
	})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.EmailTokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, http.SameSiteLaxMode, cfg.SameSite())
	assert.False(t, cfg.SecureCookies())
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"JWT_SECRET":      "0123456789abcdef",
		"APP_ENV":         "production",
		"DB_DRIVER":       "postgres",
		"DB_DSN":          "postgres://u:p@db/eduqa",
		"CORS_ORIGINS":    "https://a.example,https://b.example",
		"COOKIE_SAMESITE": "Strict",
		"SMTP_HOST":       "smtp.example.com",
		"MAIL_TIMEOUT":    "3s",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.SecureCookies())
	assert.Equal(t, http.SameSiteStrictMode, cfg.SameSite())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "smtp.example.com", cfg.Mail.SMTPHost)
	assert.Equal(t, 3*time.Second, cfg.Mail.Timeout)
}

func TestFromMap_SameSiteNoneForcesSecure(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"JWT_SECRET":      "0123456789abcdef",
		"COOKIE_SAMESITE": "none",
	})
	require.NoError(t, err)

	assert.True(t, cfg.SecureCookies())
}

func TestFromMap_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"JWT_SECRET": "short"},
		"unknown driver": {"JWT_SECRET": "0123456789abcdef", "DB_DRIVER": "mongo"},
		"bad samesite":   {"JWT_SECRET": "0123456789abcdef", "COOKIE_SAMESITE": "sometimes"},
		"no workers":     {"JWT_SECRET": "0123456789abcdef", "MAIL_WORKERS": "0"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromMap(vars)
			assert.Error(t, err)
		})
	}
}
