package main

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

	"accounthub/database"
	"accounthub/internal/config"
	"accounthub/internal/identity"
	"accounthub/internal/microservices/http-api/middleware"
	"accounthub/internal/microservices/http-api/repository"
	"accounthub/internal/microservices/http-api/server"
	"accounthub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	limiterSweepInterval = time.Minute
	tokenSweepInterval   = time.Hour
)

func main() {
	if err := run(); err != nil {
		slog.Error("api_server_failed", "error", err.Error())
		os.Exit(1)
	}
}

// run returns instead of exiting so its deferred closes execute.
func run() error {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Setup structured logging
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	// Redis is optional, the profile cache degrades to a pass-through
	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err = repository.NewRedisClient(addr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis_unavailable", "redis_addr", addr, "error", err.Error())
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	profiles := repository.NewProfileRedisCache(rdb, cfg.CacheTTL)

	accounts := service.NewAccountService(
		userRepo,
		profiles,
		identity.NewBcryptHasher(cfg.BcryptCost),
		identity.DefaultPolicy(cfg.PasswordMinLength),
		logger,
	)
	tokens := service.NewTokenService(userRepo, refreshTokenRepo, cfg, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepLimiter(ctx, limiter, logger)
	go sweepRefreshTokens(ctx, refreshTokenRepo, logger)

	router := server.NewRouter(server.Dependencies{
		Accounts: accounts,
		Tokens:   tokens,
		Limiter:  limiter,
		Logger:   logger,
		Ping:     sqlDB.PingContext,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting_api_server",
		"addr", srv.Addr,
		"env", cfg.GoEnv,
		"tls", cfg.TLSEnabled,
	)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server_stopped_gracefully")
		return nil
	case err := <-errChan:
		return fmt.Errorf("serve: %w", err)
	}
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter, logger *slog.Logger) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Cleanup(); n > 0 {
				logger.Debug("rate_limiter_swept", "removed", n)
			}
		}
	}
}

func sweepRefreshTokens(ctx context.Context, repo repository.RefreshTokenRepository, logger *slog.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("refresh_token_sweep_failed", "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Info("refresh_tokens_swept", "removed", n)
			}
		}
	}
}
