package caption

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	MinScale = 1
	MaxScale = 10

	DefaultLanguage           = "English"
	DefaultCommunicationStyle = "Authentic, engaging, and modern"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings is everything the user configures before generating, i.e. a
// Request without the image and idea.
type Settings struct {
	AccountType        AccountType `json:"accountType"`
	Platform           Platform    `json:"platform"`
	Modality           Modality    `json:"modality"`
	Modes              []Mode      `json:"modes"`
	Length             int         `json:"length"`
	EmojiDensity       int         `json:"emojiDensity"`
	Language           string      `json:"language"`
	CommunicationStyle string      `json:"communicationStyle,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		AccountType:        AccountCreator,
		Platform:           PlatformInstagram,
		Modality:           ModalityPhoto,
		Modes:              []Mode{ModeViral},
		Length:             5,
		EmojiDensity:       5,
		Language:           DefaultLanguage,
		CommunicationStyle: DefaultCommunicationStyle,
	}
}

func (s Settings) Validate() error {
	switch {
	case !s.AccountType.Valid():
		return fmt.Errorf("%w: account type %q", ErrInvalidSettings, s.AccountType)
	case !s.Platform.Valid():
		return fmt.Errorf("%w: platform %q", ErrInvalidSettings, s.Platform)
	case !s.Modality.Valid():
		return fmt.Errorf("%w: modality %q", ErrInvalidSettings, s.Modality)
	case len(s.Modes) == 0:
		return fmt.Errorf("%w: at least one mode is required", ErrInvalidSettings)
	case s.Length < MinScale || s.Length > MaxScale:
		return fmt.Errorf("%w: length %d not in [%d,%d]", ErrInvalidSettings, s.Length, MinScale, MaxScale)
	case s.EmojiDensity < MinScale || s.EmojiDensity > MaxScale:
		return fmt.Errorf("%w: emoji density %d not in [%d,%d]", ErrInvalidSettings, s.EmojiDensity, MinScale, MaxScale)
	case strings.TrimSpace(s.Language) == "":
		return fmt.Errorf("%w: language is empty", ErrInvalidSettings)
	}
	for _, m := range s.Modes {
		if !m.Valid() {
			return fmt.Errorf("%w: mode %q", ErrInvalidSettings, m)
		}
	}
	return nil
}

// Objective is the mode sent to the model; only the first selected mode
// steers generation.
func (s Settings) Objective() Mode {
	if len(s.Modes) == 0 {
		return ModeViral
	}
	return s.Modes[0]
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	out := s
	out.Modes = lo.Uniq(s.Modes)
	return out
}
