package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/justbook-waitlist/pkg/config"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	mw "github.com/diagnosis/justbook-waitlist/pkg/middleware"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/handlers"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/repository"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	// Rate limiting fails open: no Redis means no limits.
	var limiter mw.RateLimitChecker
	rdb, err := repository.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		limiter = repository.NewRateLimitRepository(rdb)
	}

	h := handlers.New(a.waitlist, cfg.Auth)
	router := handlers.NewRouter(h, handlers.RouterOptions{
		ServiceName:     "waitlist",
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimiter:     limiter,
		RateLimitPerIP:  cfg.Redis.RateLimitRequests,
		RateLimitWindow: cfg.Redis.RateLimitWindow,
		Gatherer:        a.registry,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting waitlist service", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down waitlist service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
