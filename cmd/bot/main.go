package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"carwatch/internal/config"
	"carwatch/internal/coordinator"
	"carwatch/internal/dispatch"
	"carwatch/internal/matcher"
	"carwatch/internal/notify"
	"carwatch/internal/source"
	"carwatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, log)
	if err != nil {
		log.Error("create notifier", "error", err)
		os.Exit(1)
	}

	orch := source.NewOrchestrator(
		buildSources(cfg), cfg.RequestTimeout, cfg.FetchRetries, cfg.FetchBackoff, log)
	m := matcher.New(cfg.Criteria)
	limiter := dispatch.New(store, notifier, cfg.MaxNotificationsPerHour, log)
	coord := coordinator.New(orch, m, store, limiter, notifier, cfg.CheckInterval, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting monitor",
		"interval", cfg.CheckInterval,
		"max_per_hour", cfg.MaxNotificationsPerHour,
	)
	if err := notifier.SendText(notify.FormatStartup(
		cfg.Criteria, int(cfg.CheckInterval.Seconds()), cfg.MaxNotificationsPerHour)); err != nil {
		log.Warn("send startup notification", "error", err)
	}

	coord.Run(ctx)

	log.Info("monitor stopped")
}

func buildSources(cfg *config.Config) []source.Source {
	client := http.DefaultClient

	var sources []source.Source
	if cfg.OLXSearchURL != "" {
		sources = append(sources, source.NewOLX(client, cfg.OLXSearchURL))
	}
	if cfg.CarmudiSearchURL != "" {
		sources = append(sources, source.NewCarmudi(client, cfg.CarmudiSearchURL))
	}
	if cfg.Mobil123SearchURL != "" {
		sources = append(sources, source.NewMobil123(client, cfg.Mobil123SearchURL))
	}
	for _, u := range cfg.FeedSearchURLs {
		sources = append(sources, source.NewFeed(client, u))
	}
	return sources
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
