package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"captoro/internal/album"
	"captoro/internal/config"
	"captoro/internal/engine"
	"captoro/internal/handlers"
	"captoro/internal/httpclient"
	"captoro/internal/locale"
	"captoro/internal/session"
	"captoro/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	eng, err := engine.New(ctx, cfg, httpClient, logger)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewRegistry(func(key string) *session.Controller {
		return session.New(session.Options{
			Engine:    eng,
			Prefs:     locale.NewMemoryStore(locale.DefaultPrefs()),
			Logger:    logger.With("chat", key),
			NotifyTTL: cfg.NotifyTTL,
		})
	})

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Sessions: sessions,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, cfg.MaxConcurrent)
	run := func(fn func(context.Context)) {
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(gctx, cfg.RequestTimeout)
			defer cancel()

			fn(reqCtx)
		}()
	}

	aggregator := album.New(album.Options{
		Debounce: cfg.AlbumDebounce,
		OnFlush: func(group album.Group) {
			run(func(ctx context.Context) { handler.HandleAlbum(ctx, group) })
		},
	})
	handler.SetAlbumAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username(), "backend", cfg.GeminiBackend)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				logger.Info("shutting down")
				return nil
			case update, ok := <-updates:
				if !ok {
					logger.Info("updates channel closed")
					return nil
				}

				run(func(ctx context.Context) {
					if err := handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("handle update failed", "err", err)
					}
				})
			}
		}
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

	err = g.Wait()
	if n := aggregator.Stop(); n > 0 {
		logger.Info("dropped pending albums", "count", n)
	}
	if err != nil {
		logger.Error("bot stopped", "err", err)
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
