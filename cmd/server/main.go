// Package main is the entry point and composition root of the EduQA API.
//
// It reads configuration once, builds every dependency (logger, store, mail
// queue, identity verifiers, services) and hands them to internal/server.
// No package below cmd/ reads the environment.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sakif/eduqa/internal/auth"
	"github.com/sakif/eduqa/internal/config"
	"github.com/sakif/eduqa/internal/mail"
	"github.com/sakif/eduqa/internal/repository/sqlstore"
	"github.com/sakif/eduqa/internal/server"
	"github.com/sakif/eduqa/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === 3. DATABASE ===
	// The SQLite file's directory must exist before the driver opens it.
	if cfg.DB.Driver == sqlstore.DialectSQLite && !strings.Contains(cfg.DB.DSN, ":memory:") {
		dir := filepath.Dir(cfg.DB.DSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory", slog.String("dir", dir), slog.String("error", err.Error()))
			return err
		}
	}
	store, err := sqlstore.New(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// === 4. MAIL ===
	// Without SMTP_HOST, messages are written to the log so local sign-up
	// links are still usable.
	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.Mail.SMTPHost != "" {
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
		if err != nil {
			return err
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set; emails will be logged, not sent")
	}
	dispatcher := mail.NewDispatcher(sender, logger, cfg.Mail.Workers, cfg.Mail.QueueSize, cfg.Mail.Timeout)
	dispatcher.Start()
	defer dispatcher.Stop()
	mailer := mail.NewMailer(dispatcher, cfg.BaseURL, cfg.Auth.EmailTokenTTL)

	// === 5. AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	verifiers := map[string]auth.IdentityVerifier{}
	if cfg.Federated.OIDCClientID != "" {
		verifiers[cfg.Federated.OIDCProvider] = auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			Provider: cfg.Federated.OIDCProvider,
			ClientID: cfg.Federated.OIDCClientID,
			Issuer:   cfg.Federated.OIDCIssuer,
			JWKSURL:  cfg.Federated.OIDCJWKSURL,
		})
	}
	if cfg.Federated.GitHubEnabled {
		verifiers["github"] = auth.NewGitHubVerifier(cfg.Federated.GitHubAPIURL)
	}
	if len(verifiers) == 0 {
		logger.Warn("no identity provider configured; POST /auth will reject every request")
	}

	// === 6. SERVICES ===
	accounts := service.NewAuthService(store, tokens, auth.NewPasswordService(), mailer, logger, service.AuthOptions{
		SessionTTL:       cfg.Auth.SessionTTL,
		EmailTokenTTL:    cfg.Auth.EmailTokenTTL,
		Verifiers:        verifiers,
		DefaultProvider:  cfg.Federated.OIDCProvider,
		FederatedTimeout: cfg.Federated.Timeout,
	})

	srv := server.New(server.Config{
		Port:           cfg.Port,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, server.Deps{
		Tokens: tokens,
		Cookies: auth.CookiePolicy{
			Secure:   cfg.SecureCookies(),
			SameSite: cfg.SameSite(),
			TTL:      cfg.Auth.SessionTTL,
		},
		Accounts:   accounts,
		Users:      service.NewUserService(store, store, accounts, logger),
		Categories: service.NewCategoryService(store, store, logger),
		Questions:  service.NewQuestionService(store, store, store, logger),
		Store:      store,
	}, logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.AppEnv),
		slog.String("db", cfg.DB.Driver),
		slog.Bool("secureCookies", cfg.SecureCookies()),
		slog.String("sameSite", sameSiteName(cfg.SameSite())),
	)

	// === 7. RUN ===
	// Start blocks until SIGINT/SIGTERM. The deferred Stop and Close run
	// afterwards, so queued mail is delivered before the process exits.
	return srv.Start(ctx)
}

// newLogger writes text logs to stdout, and also to a size-rotated file
// when LOG_FILE is set.
func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "lax"
	}
}
