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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"captoro/internal/config"
	"captoro/internal/engine"
	"captoro/internal/httpclient"
	"captoro/internal/locale"
	"captoro/internal/session"
	"captoro/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	eng, err := engine.New(ctx, cfg, httpClient, logger)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	// Each browser session keeps its language in a cookie, so prefs only
	// live as long as the session.
	sessions := session.NewRegistry(func(id string) *session.Controller {
		return session.New(session.Options{
			Engine:    eng,
			Prefs:     locale.NewMemoryStore(locale.DefaultPrefs()),
			Logger:    logger.With("session", id),
			NotifyTTL: cfg.NotifyTTL,
		})
	})

	srv := &http.Server{
		Addr: cfg.WebAddr,
		Handler: web.New(web.Options{
			Sessions:       sessions,
			Logger:         logger,
			RequestTimeout: cfg.RequestTimeout,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("web started", "addr", cfg.WebAddr, "backend", cfg.GeminiBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Evict(cfg.SessionIdle); n > 0 {
					logger.Info("idle sessions evicted", "count", n, "remaining", sessions.Len())
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
