package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"captoro/internal/caption"
)

type recordedCall struct {
	Path    string
	APIKey  string
	Payload generateContentRequest
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(n int, payload generateContentRequest) (int, string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var payload generateContentRequest
	_ = json.Unmarshal(raw, &payload)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Path: r.URL.Path, APIKey: r.Header.Get("x-goog-api-key"), Payload: payload})
	n := len(f.calls)
	f.mu.Unlock()

	status, body := f.respond(n, payload)
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func textResponse(text string) string {
	raw, _ := json.Marshal(generateContentResponse{Candidates: []candidate{{
		Content: content{Role: "model", Parts: []part{{Text: text}}},
	}}})
	return string(raw)
}

const threeOptions = `[
	{"category":"Bold","text":"One","hashtags":["#a","b"],"metrics":{"viralScore":90}},
	{"category":"Story","text":"Two","hashtags":[]},
	{"category":"Soft","text":"Three","hashtags":["c"]}
]`

func testRequest(t *testing.T, image, idea string) caption.Request {
	t.Helper()
	req, ok := caption.NewRequest(caption.DefaultSettings(), image, idea)
	if !ok {
		t.Fatal("request not ready")
	}
	return req
}

func TestGenerateCaptions(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		return http.StatusOK, textResponse(threeOptions)
	}}
	c := newTestClient(t, api)

	options, err := c.GenerateCaptions(context.Background(), testRequest(t, "data:image/webp;base64,UklGRg==", "sunset run"))
	if err != nil {
		t.Fatalf("GenerateCaptions() error = %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("len(options) = %d, want 3", len(options))
	}
	if options[0].Text != "One" || options[0].Hashtags[0] != "a" || options[0].Metrics.ViralScore != 90 {
		t.Errorf("options[0] = %+v", options[0])
	}

	call := api.calls[0]
	if call.Path != "/v1beta/models/"+DefaultCaptionModel+":generateContent" {
		t.Errorf("path = %q", call.Path)
	}
	if call.APIKey != "test-key" {
		t.Errorf("api key = %q", call.APIKey)
	}
	cfg := call.Payload.GenerationConfig
	if cfg.ResponseMimeType != "application/json" || cfg.ResponseSchema == nil {
		t.Errorf("generation config = %+v", cfg)
	}
	if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingBudget != 0 {
		t.Errorf("thinking config = %+v", cfg.ThinkingConfig)
	}
	if call.Payload.SystemInstruction == nil || !strings.Contains(call.Payload.SystemInstruction.Parts[0].Text, "PLATFORM: Instagram") {
		t.Error("system instruction not sent")
	}

	parts := call.Payload.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want text + image", len(parts))
	}
	if !strings.HasSuffix(parts[0].Text, "Context: sunset run") {
		t.Errorf("user prompt = %q", parts[0].Text)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.Data != "UklGRg==" || parts[1].InlineData.MimeType != "image/webp" {
		t.Errorf("inline data = %+v", parts[1].InlineData)
	}
}

func TestGenerateCaptions_IdeaOnlySendsNoImage(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		return http.StatusOK, textResponse("[]")
	}}
	c := newTestClient(t, api)

	options, err := c.GenerateCaptions(context.Background(), testRequest(t, "", "cold brew launch"))
	if err != nil {
		t.Fatalf("GenerateCaptions() error = %v", err)
	}
	if options == nil || len(options) != 0 {
		t.Errorf("options = %v, want empty", options)
	}
	if n := len(api.calls[0].Payload.Contents[0].Parts); n != 1 {
		t.Errorf("parts = %d, want 1", n)
	}
}

func TestGenerateCaptions_MalformedJSONIsEmptyNotError(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		return http.StatusOK, textResponse("Sure! Here are your captions: ...")
	}}
	c := newTestClient(t, api)

	options, err := c.GenerateCaptions(context.Background(), testRequest(t, "", "gym day"))
	if err != nil {
		t.Fatalf("GenerateCaptions() error = %v, want nil", err)
	}
	if options == nil || len(options) != 0 {
		t.Errorf("options = %v, want empty", options)
	}
}

func TestGenerateCaptions_APIErrorPropagates(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		return http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`
	}}
	c := newTestClient(t, api)

	_, err := c.GenerateCaptions(context.Background(), testRequest(t, "", "gym day"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.Unauthorized() || apiErr.Message != "API key not valid" || apiErr.Status != "PERMISSION_DENIED" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if len(api.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(api.calls))
	}
}

func TestGenerateCaptions_RetriesWithoutThinkingConfig(t *testing.T) {
	api := &fakeAPI{respond: func(n int, payload generateContentRequest) (int, string) {
		if payload.GenerationConfig.ThinkingConfig != nil {
			return http.StatusBadRequest, `{"error":{"message":"Invalid JSON payload received. Unknown name \"thinkingConfig\" at 'generation_config'"}}`
		}
		return http.StatusOK, textResponse(threeOptions)
	}}
	c := newTestClient(t, api)

	options, err := c.GenerateCaptions(context.Background(), testRequest(t, "", "gym day"))
	if err != nil {
		t.Fatalf("GenerateCaptions() error = %v", err)
	}
	if len(options) != 3 || len(api.calls) != 2 {
		t.Errorf("options = %d calls = %d, want 3 and 2", len(options), len(api.calls))
	}
}

func TestGenerateCaptions_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: &http.Client{}})
	if _, err := c.GenerateCaptions(context.Background(), testRequest(t, "", "gym day")); err == nil {
		t.Fatal("GenerateCaptions() error = nil on closed server")
	}

	nilClient := New(Options{APIKey: "k"})
	if _, err := nilClient.GenerateCaptions(context.Background(), testRequest(t, "", "gym day")); !errors.Is(err, ErrNoHTTPClient) {
		t.Errorf("error = %v, want ErrNoHTTPClient", err)
	}
}

func TestEnhanceImage(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		raw, _ := json.Marshal(generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{
				{Text: "here you go"},
				{InlineData: &blob{Data: "RU5IQU5DRUQ=", MimeType: "image/png"}},
			}},
		}}})
		return http.StatusOK, string(raw)
	}}
	c := newTestClient(t, api)

	got, err := c.EnhanceImage(context.Background(), "data:image/jpeg;base64,T1JJR0lOQUw=", "golden hour")
	if err != nil {
		t.Fatalf("EnhanceImage() error = %v", err)
	}
	if got != "data:image/png;base64,RU5IQU5DRUQ=" {
		t.Errorf("EnhanceImage() = %q", got)
	}

	call := api.calls[0]
	if call.Path != "/v1beta/models/"+DefaultImageModel+":generateContent" {
		t.Errorf("path = %q", call.Path)
	}
	parts := call.Payload.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.Data != "T1JJR0lOQUw=" {
		t.Errorf("original not sent: %+v", parts[0])
	}
	if !strings.Contains(parts[1].Text, "golden hour") {
		t.Errorf("instruction = %q", parts[1].Text)
	}
}

func TestEnhanceImage_NoImagePart(t *testing.T) {
	api := &fakeAPI{respond: func(int, generateContentRequest) (int, string) {
		return http.StatusOK, textResponse("I cannot edit this image.")
	}}
	c := newTestClient(t, api)

	got, err := c.EnhanceImage(context.Background(), "data:image/jpeg;base64,AAAA", "make it pop")
	if err != nil || got != "" {
		t.Errorf("EnhanceImage() = %q, %v; want empty, nil", got, err)
	}
}

func TestEnhanceImage_Preconditions(t *testing.T) {
	c := New(Options{HTTPClient: http.DefaultClient})
	if _, err := c.EnhanceImage(context.Background(), "data:image/jpeg;base64,AAAA", "  "); !errors.Is(err, ErrEmptyInstruction) {
		t.Errorf("error = %v, want ErrEmptyInstruction", err)
	}
	if _, err := c.EnhanceImage(context.Background(), "", "x"); !errors.Is(err, ErrMissingOriginal) {
		t.Errorf("error = %v, want ErrMissingOriginal", err)
	}
}
