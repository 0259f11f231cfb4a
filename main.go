package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/quill/internal/config"
	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/handler"
	"github.com/msomdec/quill/internal/logger"
	"github.com/msomdec/quill/internal/mail"
	"github.com/msomdec/quill/internal/redis"
	"github.com/msomdec/quill/internal/repository/sqlite"
	"github.com/msomdec/quill/internal/service"
	"github.com/msomdec/quill/internal/storage/s3"
)

const pruneInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("database migrations applied")

	healthChecks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}

	var (
		consumed domain.ConsumedTokenStore = db.ConsumedTokens()
		limiter  service.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		consumed = rdb
		limiter = redis.NewLimiter(rdb, cfg.RateLimit.Attempts, cfg.RateLimit.Window)
		healthChecks["redis"] = rdb.Ping
		slog.Info("using redis for reset tokens and rate limiting")
	} else {
		tb := service.NewWindowLimiter(cfg.RateLimit.Attempts, cfg.RateLimit.Window)
		defer tb.Close()
		limiter = tb
		go pruneConsumedTokens(ctx, db.ConsumedTokens())
	}

	mailer, closeMailer, err := newMailer(cfg)
	if err != nil {
		return err
	}
	defer closeMailer()

	avatarStore, err := newAvatarStore(ctx, cfg, db)
	if err != nil {
		return err
	}

	users := db.Users()
	authService := service.NewAuthService(users, cfg.JWTSecret, cfg.BcryptCost,
		service.WithSessionTTL(cfg.SessionTTL, cfg.RememberTTL))

	var resetOpts []service.ResetOption
	if cfg.ResetTokenSingleUse {
		resetOpts = append(resetOpts, service.WithConsumedTokenStore(consumed))
	}
	resetService := service.NewResetService(users, authService, mailer, cfg.JWTSecret, cfg.ResetTokenTTL, cfg.BaseURL, resetOpts...)

	avatarService := service.NewAvatarService(avatarStore, cfg.Avatar.MaxBytes)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:         authService,
		Reset:        resetService,
		Accounts:     service.NewAccountService(users, avatarService),
		Avatars:      avatarService,
		Posts:        service.NewPostService(db.Posts(), users),
		Limiter:      limiter,
		CookieSecure: cfg.CookieSecure,
		HealthChecks: healthChecks,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.SecurityHeaders(handler.RequestLogger(log)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "mail_transport", cfg.Mail.Transport, "avatar_backend", cfg.Avatar.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// newMailer builds the configured transport. The returned func releases
// any connection it holds.
func newMailer(cfg *config.Config) (domain.Mailer, func(), error) {
	switch cfg.Mail.Transport {
	case config.MailTransportSMTP:
		return mail.NewSMTPMailer(smtpConfig(cfg.Mail), nil), func() {}, nil
	case config.MailTransportAMQP:
		queue, err := mail.DialQueue(cfg.Mail.AMQPURL, cfg.Mail.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		closeQueue := func() {
			if err := queue.Close(); err != nil {
				slog.Warn("close mail queue", "error", err)
			}
		}
		return queue.Publisher(), closeQueue, nil
	default:
		return mail.NewLogMailer(slog.Default()), func() {}, nil
	}
}

func smtpConfig(m config.MailConfig) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     m.SMTPHost,
		Port:     m.SMTPPort,
		Username: m.SMTPUsername,
		Password: m.SMTPPassword,
		From:     m.From,
		StartTLS: m.SMTPStartTLS,
	}
}

func newAvatarStore(ctx context.Context, cfg *config.Config, db *sqlite.DB) (domain.AvatarStore, error) {
	if cfg.Avatar.Backend != config.AvatarBackendS3 {
		return db.Avatars(), nil
	}

	store, err := s3.New(ctx, s3.Options{
		Bucket:    cfg.Avatar.S3Bucket,
		Region:    cfg.Avatar.S3Region,
		Endpoint:  cfg.Avatar.S3Endpoint,
		AccessKey: cfg.Avatar.S3AccessKey,
		SecretKey: cfg.Avatar.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func pruneConsumedTokens(ctx context.Context, tokens *sqlite.ConsumedTokenRepository) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.Prune(ctx)
			if err != nil {
				slog.Warn("prune consumed reset tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned consumed reset tokens", "count", n)
			}
		}
	}
}
