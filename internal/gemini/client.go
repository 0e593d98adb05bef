package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"captoro/internal/caption"
	"captoro/internal/media"
	"captoro/internal/prompt"
)

var (
	ErrNoHTTPClient     = errors.New("http client is nil")
	ErrEmptyInstruction = errors.New("enhancement instruction is empty")
	ErrMissingOriginal  = errors.New("original image is empty")
)

const enhancedFallbackMime = "image/png"

type Options struct {
	APIKey       string
	BaseURL      string
	APIVersion   string
	CaptionModel string
	ImageModel   string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client talks to the Gemini generateContent REST endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	captionModel string
	imageModel   string
	httpClient   *http.Client
	logger       *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	captionModel := strings.TrimSpace(opts.CaptionModel)
	if captionModel == "" {
		captionModel = DefaultCaptionModel
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = DefaultImageModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		apiVersion:   apiVersion,
		captionModel: captionModel,
		imageModel:   imageModel,
		httpClient:   opts.HTTPClient,
		logger:       logger,
	}
}

// GenerateCaptions performs one caption call. Transport and API failures
// are returned as errors. An answer that is not a JSON array of options is
// logged and reported as an empty result.
func (c *Client) GenerateCaptions(ctx context.Context, req caption.Request) ([]caption.Option, error) {
	parts := []part{{Text: prompt.CaptionUserPrompt(req)}}
	if req.HasImage() {
		mimeType, data, err := media.ParseDataURI(req.Image)
		if err != nil {
			return nil, fmt.Errorf("caption image: %w", err)
		}
		parts = append(parts, part{InlineData: &blob{Data: data, MimeType: mimeType}})
	}

	payload := generateContentRequest{
		Contents:          []content{{Role: "user", Parts: parts}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: prompt.CaptionSystemInstruction(req)}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   prompt.CaptionSchema(),
			ThinkingConfig:   &thinkingConfig{ThinkingBudget: 0},
		},
	}

	resp, err := c.generateContent(ctx, c.captionModel, payload)
	if err != nil && isUnknownFieldError(err, "thinkingConfig") {
		payload.GenerationConfig.ThinkingConfig = nil
		resp, err = c.generateContent(ctx, c.captionModel, payload)
	}
	if err != nil {
		c.logger.Error("caption generation failed", "model", c.captionModel, "err", err)
		return nil, err
	}

	options, err := caption.DecodeOptions([]byte(resp.Text))
	if err != nil {
		c.logger.Warn("caption response rejected", "model", c.captionModel, "finish_reason", resp.FinishReason, "err", err)
		return []caption.Option{}, nil
	}

	c.logger.Debug("captions generated", "model", c.captionModel, "count", len(options))
	return options, nil
}

// EnhanceImage re-renders original with a visual edit instruction. It
// returns "" with a nil error when the model answers without an image.
func (c *Client) EnhanceImage(ctx context.Context, original, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", ErrEmptyInstruction
	}
	if strings.TrimSpace(original) == "" {
		return "", ErrMissingOriginal
	}

	mimeType, data, err := media.ParseDataURI(original)
	if err != nil {
		return "", fmt.Errorf("original image: %w", err)
	}

	payload := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &blob{Data: data, MimeType: mimeType}},
				{Text: prompt.EnhancePrompt(instruction)},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, payload)
	if err != nil {
		c.logger.Error("image enhancement failed", "model", c.imageModel, "err", err)
		return "", err
	}
	if len(resp.Images) == 0 {
		c.logger.Warn("image enhancement returned no image", "model", c.imageModel, "finish_reason", resp.FinishReason, "text", truncate(resp.Text, 200))
		return "", nil
	}

	img := resp.Images[0]
	outMime := img.MimeType
	if !strings.HasPrefix(outMime, "image/") {
		outMime = enhancedFallbackMime
	}
	return fmt.Sprintf("data:%s;base64,%s", outMime, img.Data), nil
}

type result struct {
	Text         string
	Images       []blob
	FinishReason string
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (result, error) {
	if c.httpClient == nil {
		return result{}, ErrNoHTTPClient
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return result{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return result{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return result{}, newAPIError(httpResp, rawBody)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return result{}, fmt.Errorf("decode response: %w", err)
	}

	return extractParts(decoded), nil
}

func extractParts(resp generateContentResponse) result {
	if len(resp.Candidates) == 0 {
		return result{}
	}

	var out result
	var textBuilder strings.Builder

	cand := resp.Candidates[0]
	out.FinishReason = cand.FinishReason
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			out.Images = append(out.Images, *p.InlineData)
		}
	}
	out.Text = textBuilder.String()
	return out
}

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Unauthorized reports whether the key was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}

	parsed := gjson.ParseBytes(body)
	if status := parsed.Get("error.status").String(); status != "" {
		apiErr.Status = status
	}
	apiErr.Message = parsed.Get("error.message").String()
	if apiErr.Message == "" {
		apiErr.Message = truncate(strings.TrimSpace(string(body)), 500)
	}
	return apiErr
}

func isUnknownFieldError(err error, field string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Message, "Unknown name") && strings.Contains(apiErr.Message, field)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
