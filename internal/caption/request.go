package caption

import (
	"strings"
	"unicode/utf8"
)

const MinIdeaLength = 3

// Request is the immutable input of one caption generation call.
type Request struct {
	Settings Settings
	Idea     string
	// Image is the full data URI; engines strip the prefix before sending.
	Image string
}

func (r Request) HasImage() bool {
	return strings.TrimSpace(r.Image) != ""
}

// NewRequest assembles a request from the current session values. It
// reports false when there is neither an image nor an idea of at least
// MinIdeaLength characters; that is a "not ready" signal, not an error.
func NewRequest(settings Settings, image, idea string) (Request, bool) {
	image = strings.TrimSpace(image)
	idea = strings.TrimSpace(idea)
	if image == "" && utf8.RuneCountInString(idea) < MinIdeaLength {
		return Request{}, false
	}
	return Request{
		Settings: settings.Clone(),
		Idea:     idea,
		Image:    image,
	}, true
}
