// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"carwatch/internal/model"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	DatabasePath     string
	LogLevel         string

	CheckInterval  time.Duration
	RequestTimeout time.Duration
	FetchRetries   int
	FetchBackoff   time.Duration

	MaxNotificationsPerHour int

	OLXSearchURL      string
	CarmudiSearchURL  string
	Mobil123SearchURL string
	FeedSearchURLs    []string

	Criteria model.FilterCriteria
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first if present; real environment variables
// take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatIDRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDRaw == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(chatIDRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatIDRaw, err)
	}

	cfg := &Config{
		TelegramBotToken: token,
		TelegramChatID:   chatID,
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/carwatch.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),

		OLXSearchURL:      os.Getenv("OLX_SEARCH_URL"),
		CarmudiSearchURL:  os.Getenv("CARMUDI_SEARCH_URL"),
		Mobil123SearchURL: os.Getenv("MOBIL123_SEARCH_URL"),
		FeedSearchURLs:    splitList(os.Getenv("FEED_SEARCH_URLS")),
	}

	if cfg.OLXSearchURL == "" && cfg.CarmudiSearchURL == "" &&
		cfg.Mobil123SearchURL == "" && len(cfg.FeedSearchURLs) == 0 {
		return nil, fmt.Errorf("at least one of OLX_SEARCH_URL, CARMUDI_SEARCH_URL, MOBIL123_SEARCH_URL, FEED_SEARCH_URLS is required")
	}

	intervalSec, err := envInt("CHECK_INTERVAL_SECONDS", 180)
	if err != nil {
		return nil, err
	}
	cfg.CheckInterval = time.Duration(intervalSec) * time.Second

	timeoutSec, err := envInt("REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSec) * time.Second

	if cfg.FetchRetries, err = envInt("FETCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	backoffSec, err := envInt("FETCH_BACKOFF_SECONDS", 2)
	if err != nil {
		return nil, err
	}
	cfg.FetchBackoff = time.Duration(backoffSec) * time.Second

	if cfg.MaxNotificationsPerHour, err = envInt("MAX_NOTIFICATIONS_PER_HOUR", 10); err != nil {
		return nil, err
	}

	crit, err := loadCriteria()
	if err != nil {
		return nil, err
	}
	cfg.Criteria = crit

	return cfg, nil
}

func loadCriteria() (model.FilterCriteria, error) {
	var c model.FilterCriteria
	var err error

	c.ModelKeywords = splitList(envOrDefault("FILTER_KEYWORDS", "avanza,veloz"))
	c.ForbiddenKeywords = splitList(os.Getenv("FILTER_EXCLUDE_KEYWORDS"))

	if c.MinYear, err = envInt("FILTER_MIN_YEAR", 2019); err != nil {
		return c, err
	}
	if c.MaxYear, err = envInt("FILTER_MAX_YEAR", 2021); err != nil {
		return c, err
	}
	if c.MinYear > c.MaxYear {
		return c, fmt.Errorf("FILTER_MIN_YEAR %d exceeds FILTER_MAX_YEAR %d", c.MinYear, c.MaxYear)
	}

	minPrice, err := envInt("FILTER_MIN_PRICE", 120_000_000)
	if err != nil {
		return c, err
	}
	maxPrice, err := envInt("FILTER_MAX_PRICE", 190_000_000)
	if err != nil {
		return c, err
	}
	c.MinPrice, c.MaxPrice = int64(minPrice), int64(maxPrice)
	if c.MinPrice > c.MaxPrice {
		return c, fmt.Errorf("FILTER_MIN_PRICE %d exceeds FILTER_MAX_PRICE %d", c.MinPrice, c.MaxPrice)
	}

	if c.MaxMileageKM, err = envInt("FILTER_MAX_KM", 60_000); err != nil {
		return c, err
	}

	switch trans := strings.ToLower(envOrDefault("FILTER_TRANSMISSION", "manual")); trans {
	case "manual":
		c.Transmission = model.TransmissionManual
	case "automatic", "matic":
		c.Transmission = model.TransmissionAutomatic
	case "any", "":
		c.Transmission = model.TransmissionUnknown
	default:
		return c, fmt.Errorf("invalid FILTER_TRANSMISSION %q", trans)
	}

	plate := strings.ToUpper(strings.TrimSpace(envOrDefault("PRIORITY_PLATE", "F")))
	if len(plate) > 1 {
		return c, fmt.Errorf("PRIORITY_PLATE must be a single letter, got %q", plate)
	}
	c.PriorityPlate = plate

	return c, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
