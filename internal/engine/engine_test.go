package engine

import (
	"context"
	"net/http"
	"testing"

	"captoro/internal/config"
	"captoro/internal/gemini"
	"captoro/internal/genaisdk"
)

func TestNew_SelectsBackend(t *testing.T) {
	cfg := config.Config{
		GeminiAPIKey:     "k",
		GeminiBaseURL:    "https://generativelanguage.googleapis.com",
		GeminiAPIVersion: "v1beta",
		GeminiBackend:    config.BackendREST,
	}

	eng, err := New(context.Background(), cfg, http.DefaultClient, nil)
	if err != nil {
		t.Fatalf("New(rest) error = %v", err)
	}
	if _, ok := eng.(*gemini.Client); !ok {
		t.Errorf("rest backend = %T", eng)
	}

	cfg.GeminiBackend = config.BackendSDK
	eng, err = New(context.Background(), cfg, http.DefaultClient, nil)
	if err != nil {
		t.Fatalf("New(sdk) error = %v", err)
	}
	if _, ok := eng.(*genaisdk.Client); !ok {
		t.Errorf("sdk backend = %T", eng)
	}
}
