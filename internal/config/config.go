package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

var (
	ErrMissingAPIKey        = errors.New("GEMINI_API_KEY is required")
	ErrMissingTelegramToken = errors.New("TELEGRAM_BOT_TOKEN is required")
)

type Config struct {
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiBackend    string
	CaptionModel     string
	ImageModel       string

	LogLevel string
	Debug    bool

	PreferIPv4     bool
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	WebAddr     string
	SessionIdle time.Duration
	NotifyTTL   time.Duration

	TelegramToken string
	MaxConcurrent int
	AlbumDebounce time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		GeminiBackend:    strings.ToLower(getEnv("GEMINI_BACKEND", BackendREST)),
		CaptionModel:     getEnv("CAPTION_MODEL", "gemini-3-flash-preview"),
		ImageModel:       getEnv("IMAGE_MODEL", "gemini-2.5-flash-image"),
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		WebAddr:          getEnv("WEB_ADDR", ":8080"),
		SessionIdle:      time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 60)) * time.Minute,
		NotifyTTL:        time.Duration(getEnvInt("NOTIFY_TTL_MS", 3000)) * time.Millisecond,
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 4),
		AlbumDebounce:    time.Duration(getEnvInt("ALBUM_DEBOUNCE_MS", 1200)) * time.Millisecond,
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, ErrMissingAPIKey
	}

	if cfg.GeminiBackend != BackendSDK {
		cfg.GeminiBackend = BackendREST
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.NotifyTTL <= 0 {
		cfg.NotifyTTL = 3 * time.Second
	}
	if cfg.AlbumDebounce <= 0 {
		cfg.AlbumDebounce = 1200 * time.Millisecond
	}

	return cfg, nil
}

// RequireTelegram reports whether the bot can start with cfg.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return ErrMissingTelegramToken
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
