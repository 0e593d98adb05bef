package prompt

import (
	"fmt"
	"strings"

	"captoro/internal/caption"
)

const (
	defaultStyle   = "High-impact, authentic, and modern"
	defaultContext = "Visual content scan"
)

// ForbiddenOpeners are phrases the model must never start a caption with.
var ForbiddenOpeners = []string{"POV"}

// CaptionSystemInstruction renders the behavioural contract sent with every
// caption request: three options, a scroll-stopping first line, the
// forbidden openers, the hook-bridge-payload-CTA template and exactly one
// visual enhancement per option.
func CaptionSystemInstruction(req caption.Request) string {
	s := req.Settings

	style := strings.TrimSpace(s.CommunicationStyle)
	if style == "" {
		style = defaultStyle
	}
	lang := strings.TrimSpace(s.Language)
	if lang == "" {
		lang = caption.DefaultLanguage
	}

	var b strings.Builder
	b.WriteString("You are CAPTORO FAST, the high-velocity Virality Engine.\n\n")
	b.WriteString(fmt.Sprintf("PLATFORM: %s\n", s.Platform))
	b.WriteString(fmt.Sprintf("ACCOUNT TYPE: %s\n", s.AccountType))
	b.WriteString(fmt.Sprintf("OBJECTIVE: %s\n", s.Objective()))
	b.WriteString(fmt.Sprintf("CONTENT: %s\n", s.Modality))
	b.WriteString(fmt.Sprintf("STYLE: %s\n", style))
	b.WriteString(fmt.Sprintf("LANGUAGE: %s\n", lang))
	b.WriteString(fmt.Sprintf("LENGTH: %d/10 (%s)\n", s.Length, lengthHint(s.Length)))
	b.WriteString(fmt.Sprintf("EMOJI DENSITY: %d/10 (%s)\n", s.EmojiDensity, emojiHint(s.EmojiDensity)))

	b.WriteString("\nCORE VIRAL PROTOCOL (EXECUTE IMMEDIATELY):\n")
	b.WriteString("1. THE HOOK: First line MUST stop the scroll. Use a curiosity gap or bold claim.\n")
	b.WriteString("2. SPACING: Minimize friction. Use line breaks only for dramatic impact or clarity.\n")
	b.WriteString(fmt.Sprintf("3. NO %s: Strictly forbidden.\n", strings.Join(quoteAll(ForbiddenOpeners), ", ")))
	b.WriteString("4. STRUCTURE: Hook -> Value Bridge -> Punchline/Meat -> CTA.\n")
	b.WriteString("5. MAGIC EDIT: Suggest exactly one high-end visual enhancement (lighting/color/texture) per option.\n")
	b.WriteString("6. HASHTAGS: Plain words without the leading #.\n")
	b.WriteString("\nDeliver exactly 3 ultra-viral options in JSON format.")

	return b.String()
}

func CaptionUserPrompt(req caption.Request) string {
	idea := strings.TrimSpace(req.Idea)
	if idea == "" {
		idea = defaultContext
	}
	return "GENERATE 3 VIRAL CAPTIONS NOW. Context: " + idea
}

func EnhancePrompt(instruction string) string {
	return fmt.Sprintf("Viral Realism Transformation: %s. Professional cinematic lighting. Return ONLY the edited image.", strings.TrimSpace(instruction))
}

func lengthHint(n int) string {
	switch {
	case n <= 3:
		return "punchy, one or two lines"
	case n <= 7:
		return "short paragraph"
	default:
		return "long-form, story driven"
	}
}

func emojiHint(n int) string {
	switch {
	case n <= 2:
		return "none or almost none"
	case n <= 6:
		return "a few, where they add meaning"
	default:
		return "expressive, emoji-rich"
	}
}

func quoteAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprintf("%q", v))
	}
	return out
}
