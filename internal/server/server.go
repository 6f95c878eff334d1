// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/database"
	"codeberg.org/oliverandrich/go-account-template/internal/handlers"
	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/metrics"
	appmw "codeberg.org/oliverandrich/go-account-template/internal/middleware"
	"codeberg.org/oliverandrich/go-account-template/internal/repository"
	"codeberg.org/oliverandrich/go-account-template/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"codeberg.org/oliverandrich/go-account-template/internal/services/email"
	"codeberg.org/oliverandrich/go-account-template/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Deps holds the services the HTTP layer is built from.
type Deps struct {
	Config   *config.Config
	DB       *sqlx.DB
	Repo     *repository.Repository
	Auth     *auth.Service
	Confirm  *confirm.Service
	Sessions *session.Manager
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"email_provider", cfg.Email.Provider,
	)
	if !cfg.SecureCookies() && !config.IsLocalhost(cfg.Server.Host) {
		slog.Warn("session cookies are sent without the Secure flag", "base_url", cfg.Server.BaseURL)
	}

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Services
	repo := repository.New(db)

	sender, err := email.NewSender(&cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to create email sender: %w", err)
	}

	confirmSvc := confirm.NewService(repo, repo, sender, cfg.Server.BaseURL, cfg.App.Name)
	authSvc := auth.NewService(repo, confirmSvc, &cfg.Password)

	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// Token reaper
	if cfg.Tokens.SweepSchedule != "" {
		sweeper, sweepErr := confirm.NewSweeper(repo, cfg.Tokens.SweepSchedule)
		if sweepErr != nil {
			return sweepErr
		}
		sweeper.Start()
		defer sweeper.Stop()
		slog.Info("token sweeper started", "schedule", cfg.Tokens.SweepSchedule)
	}

	e := New(Deps{
		Config:   cfg,
		DB:       db,
		Repo:     repo,
		Auth:     authSvc,
		Confirm:  confirmSvc,
		Sessions: sessions,
	})

	return startWithGracefulShutdown(ctx, e, cfg)
}

// New builds the Echo instance with middleware and routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	setupMiddleware(e, d)
	setupRoutes(e, d)
	return e
}

func setupRoutes(e *echo.Echo, d Deps) {
	h := handlers.New(d.DB)
	ah := handlers.NewAuth(d.Auth, d.Confirm, d.Sessions)

	e.GET("/health", h.Health)
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api")

	a := api.Group("/auth")
	a.POST("/signup", ah.Signup)
	a.POST("/login", ah.Login)
	a.POST("/logout", ah.Logout)
	a.POST("/verify-email", ah.VerifyEmail)
	a.POST("/send-verification-email", ah.SendVerificationEmail)
	a.POST("/confirm-email-change", ah.ConfirmEmailChange)
	a.POST("/change-email", ah.ChangeEmail, appmw.RequireSession)
	a.POST("/change-password", ah.ChangePassword, appmw.RequireSession)
	a.POST("/delete-account", ah.DeleteAccount, appmw.RequireSession)

	api.GET("/account", ah.Account, appmw.RequireSession)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsConfig, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		var serveErr error
		if tlsConfig != nil {
			serveErr = startTLSServer(ctx, e, addr, tlsConfig)
		} else {
			serveErr = e.Start(addr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	// Wait for interrupt signal, cancellation or error
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
