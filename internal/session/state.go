package session

import (
	"time"

	"captoro/internal/caption"
	"captoro/internal/locale"
)

// State is a point-in-time view of a session for rendering.
type State struct {
	Image       string `json:"image,omitempty"`
	HasImage    bool   `json:"hasImage"`
	Enhanced    bool   `json:"enhanced"`
	Comparing   bool   `json:"comparing"`
	Idea        string `json:"idea"`
	Language    string `json:"language"`
	ProfileName string `json:"profileName"`

	Settings    caption.Settings `json:"settings"`
	Captions    []caption.Option `json:"captions"`
	ActiveIndex int              `json:"activeIndex"`
	Active      *caption.Option  `json:"active,omitempty"`

	Generating   bool   `json:"generating"`
	Enhancing    bool   `json:"enhancing"`
	CanGenerate  bool   `json:"canGenerate"`
	CanEnhance   bool   `json:"canEnhance"`
	Status       string `json:"status,omitempty"`
	Notification string `json:"notification,omitempty"`
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	_, ready := caption.NewRequest(c.settings, c.media.Current(), c.idea)

	st := State{
		Image:        c.media.Displayed(),
		HasImage:     c.media.HasImage(),
		Enhanced:     c.media.HasBeenEnhanced(),
		Comparing:    c.media.Comparing(),
		Idea:         c.idea,
		Language:     c.settings.Language,
		ProfileName:  c.profileName,
		Settings:     c.settings.Clone(),
		Captions:     append([]caption.Option{}, c.captions...),
		ActiveIndex:  c.active,
		Generating:   c.generating,
		Enhancing:    c.enhancing,
		CanGenerate:  ready && !c.generating,
		CanEnhance:   c.media.HasImage() && !c.enhancing,
		Status:       c.statusLocked(now),
		Notification: c.notificationLocked(now),
	}
	if opt, ok := c.activeLocked(); ok {
		st.Active = &opt
	}
	return st
}

// statusLocked is the cycling loading message shown while either flow is
// busy. It is derived from the time spent in the flow rather than stored.
func (c *Controller) statusLocked(now time.Time) string {
	var since time.Time
	switch {
	case c.generating:
		since = c.generatingSince
	case c.enhancing:
		since = c.enhancingSince
	default:
		return ""
	}

	loading := locale.For(c.settings.Language).Loading
	if len(loading) == 0 {
		return ""
	}
	elapsed := max(now.Sub(since), 0)
	return loading[int(elapsed/c.statusInterval)%len(loading)]
}
