// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"net/mail"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Email provider names.
const (
	EmailProviderSMTP     = "smtp"
	EmailProviderSendGrid = "sendgrid"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	App      AppConfig
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Session  SessionConfig
	Email    EmailConfig
	Tokens   TokenConfig
	Password PasswordConfig
}

type AppConfig struct {
	Name string // shown in email subjects and bodies
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string // used to build confirmation links
	MaxBodySize int    // in KB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Enabled reports whether a certificate pair is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type EmailConfig struct { //nolint:govet // fieldalignment not critical
	Provider string // smtp, sendgrid
	From     string
	FromName string // defaults to App.Name
	ReplyTo  string // optional
	SMTP     SMTPConfig
	SendGrid SendGridConfig
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

type SendGridConfig struct {
	APIKey  string
	Sandbox bool
}

type TokenConfig struct {
	SweepSchedule string // cron spec for deleting expired tokens, empty disables
}

type PasswordConfig struct { //nolint:govet // fieldalignment not critical
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		App: AppConfig{
			Name: cmd.String("app-name"),
		},
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Email: EmailConfig{
			Provider: strings.ToLower(cmd.String("email-provider")),
			From:     cmd.String("email-from"),
			FromName: cmd.String("email-from-name"),
			ReplyTo:  cmd.String("email-reply-to"),
			SMTP: SMTPConfig{
				Host:     cmd.String("smtp-host"),
				Port:     int(cmd.Int("smtp-port")),
				Username: cmd.String("smtp-username"),
				Password: cmd.String("smtp-password"),
				TLS:      cmd.Bool("smtp-tls"),
			},
			SendGrid: SendGridConfig{
				APIKey:  cmd.String("sendgrid-api-key"),
				Sandbox: cmd.Bool("sendgrid-sandbox"),
			},
		},
		Tokens: TokenConfig{
			SweepSchedule: cmd.String("token-sweep-schedule"),
		},
		Password: PasswordConfig{
			MinLength:        int(cmd.Int("password-min-length")),
			RequireUppercase: cmd.Bool("password-require-uppercase"),
			RequireLowercase: cmd.Bool("password-require-lowercase"),
			RequireDigit:     cmd.Bool("password-require-digit"),
			RequireSpecial:   cmd.Bool("password-require-special"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.Email.FromName == "" {
		cfg.Email.FromName = cfg.App.Name
	}

	return cfg
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := mail.ParseAddress(c.Email.From); err != nil {
		return fmt.Errorf("invalid email-from address %q: %w", c.Email.From, err)
	}
	if c.Email.ReplyTo != "" {
		if _, err := mail.ParseAddress(c.Email.ReplyTo); err != nil {
			return fmt.Errorf("invalid email-reply-to address %q: %w", c.Email.ReplyTo, err)
		}
	}

	switch c.Email.Provider {
	case EmailProviderSMTP:
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("smtp-host is required for the smtp email provider")
		}
	case EmailProviderSendGrid:
		if c.Email.SendGrid.APIKey == "" {
			return fmt.Errorf("sendgrid-api-key is required for the sendgrid email provider")
		}
	default:
		return fmt.Errorf("unknown email provider: %s", c.Email.Provider)
	}

	if c.Password.MinLength < 1 {
		return fmt.Errorf("password-min-length must be positive")
	}
	return nil
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	port := cfg.Server.Port

	scheme := "http"
	if cfg.TLS.Enabled() {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func src(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "app-name",
			Value:   "Your App",
			Usage:   "Application name used in emails",
			Sources: src("APP_NAME", "app.name"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: src("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   3000,
			Usage:   "Port to listen on",
			Sources: src("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in confirmation links",
			Sources: src("APP_BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   64,
			Usage:   "Maximum request body size in KB",
			Sources: src("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: src("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: src("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/accounts.db",
			Usage:   "Database DSN",
			Sources: src("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file",
			Sources: src("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file",
			Sources: src("TLS_KEY_FILE", "tls.key_file"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "authToken",
			Usage:   "Session cookie name",
			Sources: src("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: src("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: src("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: src("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// Email flags
		&cli.StringFlag{
			Name:    "email-provider",
			Value:   EmailProviderSMTP,
			Usage:   "Email delivery provider (smtp, sendgrid)",
			Sources: src("EMAIL_PROVIDER", "email.provider"),
		},
		&cli.StringFlag{
			Name:    "email-from",
			Value:   "onboarding@example.com",
			Usage:   "Sender address",
			Sources: src("EMAIL_FROM", "email.from"),
		},
		&cli.StringFlag{
			Name:    "email-from-name",
			Usage:   "Sender display name (defaults to app-name)",
			Sources: src("EMAIL_FROM_NAME", "email.from_name"),
		},
		&cli.StringFlag{
			Name:    "email-reply-to",
			Usage:   "Reply-To address (optional)",
			Sources: src("EMAIL_REPLY_TO", "email.reply_to"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Value:   "localhost",
			Usage:   "SMTP server host",
			Sources: src("SMTP_HOST", "email.smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   1025,
			Usage:   "SMTP server port",
			Sources: src("SMTP_PORT", "email.smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: src("SMTP_USERNAME", "email.smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: src("SMTP_PASSWORD", "email.smtp.password"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Usage:   "Require TLS for SMTP (implicit TLS on port 465, STARTTLS otherwise)",
			Sources: src("SMTP_TLS", "email.smtp.tls"),
		},
		&cli.StringFlag{
			Name:    "sendgrid-api-key",
			Usage:   "SendGrid API key",
			Sources: src("SENDGRID_API_KEY", "email.sendgrid.api_key"),
		},
		&cli.BoolFlag{
			Name:    "sendgrid-sandbox",
			Usage:   "Enable SendGrid sandbox mode (messages are validated, not delivered)",
			Sources: src("SENDGRID_SANDBOX", "email.sendgrid.sandbox"),
		},
		// Token flags
		&cli.StringFlag{
			Name:    "token-sweep-schedule",
			Value:   "@every 1h",
			Usage:   "Cron schedule for deleting expired confirmation tokens (empty disables)",
			Sources: src("TOKEN_SWEEP_SCHEDULE", "tokens.sweep_schedule"),
		},
		&cli.IntFlag{
			Name:    "password-min-length",
			Value:   8,
			Usage:   "Minimum password length",
			Sources: src("PASSWORD_MIN_LENGTH", "password.min_length"),
		},
		&cli.BoolFlag{
			Name:    "password-require-uppercase",
			Usage:   "Require at least one uppercase letter in passwords",
			Sources: src("PASSWORD_REQUIRE_UPPERCASE", "password.require_uppercase"),
		},
		&cli.BoolFlag{
			Name:    "password-require-lowercase",
			Usage:   "Require at least one lowercase letter in passwords",
			Sources: src("PASSWORD_REQUIRE_LOWERCASE", "password.require_lowercase"),
		},
		&cli.BoolFlag{
			Name:    "password-require-digit",
			Usage:   "Require at least one digit in passwords",
			Sources: src("PASSWORD_REQUIRE_DIGIT", "password.require_digit"),
		},
		&cli.BoolFlag{
			Name:    "password-require-special",
			Usage:   "Require at least one punctuation or symbol character in passwords",
			Sources: src("PASSWORD_REQUIRE_SPECIAL", "password.require_special"),
		},
	}
}
