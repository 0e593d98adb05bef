// Package engine picks the Gemini client a front-end talks to.
package engine

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"captoro/internal/config"
	"captoro/internal/gemini"
	"captoro/internal/genaisdk"
	"captoro/internal/session"
)

// New returns the REST client, or the genai SDK client when the backend
// is "sdk".
func New(ctx context.Context, cfg config.Config, httpClient *http.Client, logger *slog.Logger) (session.Engine, error) {
	if cfg.GeminiBackend == config.BackendSDK {
		baseURL := strings.TrimSpace(cfg.GeminiBaseURL)
		if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		client, err := genaisdk.New(ctx, genaisdk.Options{
			APIKey:       cfg.GeminiAPIKey,
			BaseURL:      baseURL,
			APIVersion:   cfg.GeminiAPIVersion,
			CaptionModel: cfg.CaptionModel,
			ImageModel:   cfg.ImageModel,
			HTTPClient:   httpClient,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	return gemini.New(gemini.Options{
		APIKey:       cfg.GeminiAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		APIVersion:   cfg.GeminiAPIVersion,
		CaptionModel: cfg.CaptionModel,
		ImageModel:   cfg.ImageModel,
		HTTPClient:   httpClient,
		Logger:       logger,
	}), nil
}
