// Package genaisdk implements the caption and enhancement calls on top of
// the official google.golang.org/genai SDK. It is interchangeable with the
// REST client in internal/gemini.
package genaisdk

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"captoro/internal/caption"
	"captoro/internal/gemini"
	"captoro/internal/media"
	"captoro/internal/prompt"
)

var ErrAPIKeyRequired = errors.New("gemini api key is required")

type Options struct {
	APIKey       string
	BaseURL      string
	APIVersion   string
	CaptionModel string
	ImageModel   string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

type Client struct {
	models       *genai.Models
	captionModel string
	imageModel   string
	logger       *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(opts.BaseURL),
			APIVersion: strings.TrimSpace(opts.APIVersion),
		},
	}

	sdk, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	captionModel := strings.TrimSpace(opts.CaptionModel)
	if captionModel == "" {
		captionModel = gemini.DefaultCaptionModel
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = gemini.DefaultImageModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		models:       sdk.Models,
		captionModel: captionModel,
		imageModel:   imageModel,
		logger:       logger,
	}, nil
}

func (c *Client) GenerateCaptions(ctx context.Context, req caption.Request) ([]caption.Option, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt.CaptionUserPrompt(req))}
	if req.HasImage() {
		mimeType, data, err := media.DecodeDataURI(req.Image)
		if err != nil {
			return nil, fmt.Errorf("caption image: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.CaptionSystemInstruction(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    toGenaiSchema(prompt.CaptionSchema()),
		ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}

	resp, err := c.models.GenerateContent(ctx, c.captionModel, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		c.logger.Error("caption generation failed", "model", c.captionModel, "err", err)
		return nil, fmt.Errorf("generate content: %w", err)
	}

	options, err := caption.DecodeOptions([]byte(responseText(resp)))
	if err != nil {
		c.logger.Warn("caption response rejected", "model", c.captionModel, "err", err)
		return []caption.Option{}, nil
	}

	c.logger.Debug("captions generated", "model", c.captionModel, "count", len(options))
	return options, nil
}

func (c *Client) EnhanceImage(ctx context.Context, original, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", gemini.ErrEmptyInstruction
	}
	if strings.TrimSpace(original) == "" {
		return "", gemini.ErrMissingOriginal
	}

	mimeType, data, err := media.DecodeDataURI(original)
	if err != nil {
		return "", fmt.Errorf("original image: %w", err)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(prompt.EnhancePrompt(instruction)),
	}, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, c.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		c.logger.Error("image enhancement failed", "model", c.imageModel, "err", err)
		return "", fmt.Errorf("generate content: %w", err)
	}

	for _, p := range firstParts(resp) {
		if p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		outMime := p.InlineData.MIMEType
		if !strings.HasPrefix(outMime, "image/") {
			outMime = "image/png"
		}
		return "data:" + outMime + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data), nil
	}

	c.logger.Warn("image enhancement returned no image", "model", c.imageModel)
	return "", nil
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

// responseText joins the text parts of the first candidate. Thought parts
// are skipped.
func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, p := range firstParts(resp) {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func toGenaiSchema(s *prompt.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             genai.Type(s.Type),
		Items:            toGenaiSchema(s.Items),
		PropertyOrdering: s.PropertyOrdering,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
