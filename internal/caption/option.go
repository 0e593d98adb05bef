package caption

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Option is one generated caption variant.
type Option struct {
	Category   string      `json:"category"`
	Text       string      `json:"text"`
	Hashtags   []string    `json:"hashtags"`
	Strategy   Strategy    `json:"strategy"`
	Metrics    Metrics     `json:"metrics"`
	Analysis   Analysis    `json:"analysis"`
	MagicEdits []MagicEdit `json:"magicEditSuggestions"`
}

type Strategy struct {
	Hook string `json:"hook"`
	Body string `json:"body"`
	CTA  string `json:"cta"`
}

// Metrics are percentages supplied by the model. They are not checked.
type Metrics struct {
	VisualImpact  Score `json:"visualImpact"`
	HookStrength  Score `json:"hookStrength"`
	RetentionRate Score `json:"retentionRate"`
	ViralScore    Score `json:"viralScore"`
}

type Analysis struct {
	TargetAudience  string `json:"targetAudience"`
	BestPostingTime string `json:"bestPostingTime"`
	WhyItWorks      string `json:"whyItWorks"`
}

type MagicEdit struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VisualPrompt string `json:"visualPrompt"`
	Impact       string `json:"impact"`
}

// Score is an integer percentage. The model answers with JSON numbers that
// are sometimes fractional, so decoding rounds instead of failing.
type Score int

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	data = bytes.Trim(data, `"`)
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score(math.Round(f))
	return nil
}

// NormalizeHashtags strips leading '#' characters and drops empty tags.
// Tags are stored bare and prefixed again when rendered.
func NormalizeHashtags(tags []string) []string {
	out := lo.Map(tags, func(tag string, _ int) string {
		return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
	})
	return lo.Filter(out, func(tag string, _ int) bool { return tag != "" })
}

func RenderHashtags(tags []string) string {
	return strings.Join(lo.Map(NormalizeHashtags(tags), func(tag string, _ int) string {
		return "#" + tag
	}), " ")
}

// ClipboardText is the plain text exported when the user copies a caption:
// the body, a blank line, then the space separated hashtags.
func ClipboardText(o Option) string {
	return o.Text + "\n\n" + RenderHashtags(o.Hashtags)
}

// DecodeOptions parses the model's JSON array answer. A surrounding
// markdown code fence is tolerated; anything else that is not a JSON array
// of options is an error.
func DecodeOptions(raw []byte) ([]Option, error) {
	raw = stripCodeFence(bytes.TrimSpace(raw))
	if len(raw) == 0 {
		return []Option{}, nil
	}

	var options []Option
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, fmt.Errorf("decode caption options: %w", err)
	}
	if options == nil {
		options = []Option{}
	}
	for i := range options {
		options[i].Hashtags = NormalizeHashtags(options[i].Hashtags)
	}
	return options, nil
}

func stripCodeFence(raw []byte) []byte {
	if !bytes.HasPrefix(raw, []byte("```")) {
		return raw
	}
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		raw = raw[idx+1:]
	} else {
		raw = bytes.TrimPrefix(raw, []byte("```"))
	}
	raw = bytes.TrimSpace(raw)
	raw = bytes.TrimSuffix(raw, []byte("```"))
	return bytes.TrimSpace(raw)
}
