package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cragcast/internal/api"
	"cragcast/internal/config"
	"cragcast/internal/events"
	"cragcast/internal/fetcher"
	"cragcast/internal/localstore"
	"cragcast/internal/owm"
	"cragcast/internal/session"
	"cragcast/internal/store"
	"cragcast/internal/weather"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crags, err := config.LoadCrags(cfg.CragsFile)
	if err != nil {
		slog.Error("failed to load crags", "err", err)
		os.Exit(1)
	}

	timers, err := localstore.Open(cfg.TimerDBPath)
	if err != nil {
		slog.Error("failed to open timer database", "err", err, "path", cfg.TimerDBPath)
		os.Exit(1)
	}
	defer timers.Close()

	var (
		forecastStore weather.ForecastStore
		sessionStore  session.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "err", err)
			os.Exit(1)
		}
		forecastStore, sessionStore = db, db
	} else {
		slog.Warn("DATABASE_URL not set, keeping sessions in the local database", "path", cfg.TimerDBPath)
		sessionStore = timers
	}

	owmClient := owm.NewClient(cfg.OWMBaseURL, cfg.OWMAPIKey, cfg.OWMRateLimit)
	forecasts := weather.NewService(forecastStore, owmClient, cfg.ForecastCacheTTL, cfg.ForecastRetryAttempts)

	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) {
		slog.Info("session event", "topic", e.Topic, "session_id", e.SessionID, "user_id", e.UserID)
	}, events.SessionStarted, events.SessionEnded)
	sessions := session.NewService(sessionStore, timers, bus)

	warmer := fetcher.New(forecasts, crags)
	go warmer.Run(ctx, cfg.WarmInterval)

	mux := http.NewServeMux()
	handler := api.NewHandler(forecasts, sessions)
	handler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	slog.Info("server stopped")
}
