package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-storefront-auth/internal/config"
	"github.com/go-storefront-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"
	"github.com/go-storefront-auth/internal/infrastructure/mailqueue"
	"github.com/go-storefront-auth/internal/infrastructure/memory"
	"github.com/go-storefront-auth/internal/infrastructure/pending"
	"github.com/go-storefront-auth/internal/infrastructure/smtp"
	transporthttp "github.com/go-storefront-auth/internal/transport/http"
	appmiddleware "github.com/go-storefront-auth/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg)
	if envErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := pending.NewStore(pending.Config{OTPTTL: cfg.OTPTTL, ApprovalTTL: cfg.ApprovalTTL})
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		store.Run(ctx, cfg.SweepInterval, log.With().Str("component", "pending").Logger())
	}()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt provider")
	}

	userRepo, adminRepo, err := accountRepos(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("account store")
	}

	mail := mailqueue.New(smtp.NewMailer(cfg), cfg.MailQueueSize, log)
	mail.Start(cfg.MailWorkers)

	// 5 requests/second, burst of 10.
	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserRepo:         userRepo,
		AdminRepo:        adminRepo,
		Pending:          store,
		Mail:             mail,
		JWTProvider:      jwtProvider,
		SensitiveLimiter: limiter,
		Log:              log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Str("account_store", cfg.AccountStore).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	stop()

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	<-janitorDone
	if err := mail.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("mail queue not drained")
	}
	log.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var base zerolog.Logger
	if cfg.AppEnv == "development" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stderr)
	}
	return base.Level(level).With().Timestamp().Str("service", "storefront-auth").Logger()
}

func accountRepos(ctx context.Context, cfg *config.Config, log zerolog.Logger) (transporthttp.AccountRepository, transporthttp.AccountRepository, error) {
	if cfg.AccountStore == "memory" {
		log.Warn().Msg("accounts are kept in memory and lost on restart")
		return memory.NewAccountRepo(), memory.NewAccountRepo(), nil
	}
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables, log)
	return dynamo.NewAccountRepo(client, cfg.DynamoTables.Users),
		dynamo.NewAccountRepo(client, cfg.DynamoTables.Admins), nil
}
