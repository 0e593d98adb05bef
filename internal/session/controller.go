package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"captoro/internal/caption"
	"captoro/internal/locale"
	"captoro/internal/media"
)

const (
	DefaultNotifyTTL      = 3 * time.Second
	DefaultStatusInterval = 1500 * time.Millisecond
)

var (
	ErrNotReady              = errors.New("add an image or an idea of at least 3 characters")
	ErrGenerationInProgress  = errors.New("caption generation already in progress")
	ErrEnhancementInProgress = errors.New("image enhancement already in progress")
	ErrNoImage               = errors.New("no image uploaded")
	ErrEmptyInstruction      = errors.New("enhancement instruction is empty")
	ErrNoCaption             = errors.New("no caption selected")
	ErrNoSuggestion          = errors.New("suggestion not found")
	ErrNoEnhancement         = errors.New("model returned no image")
	ErrStaleResult           = errors.New("image changed while the request was running")
	ErrEngine                = errors.New("engine error")
	ErrNoEngine              = errors.New("session has no engine")
)

// Engine is the hosted model behind a session.
type Engine interface {
	GenerateCaptions(ctx context.Context, req caption.Request) ([]caption.Option, error)
	EnhanceImage(ctx context.Context, original, instruction string) (string, error)
}

type Options struct {
	Engine Engine
	Prefs  locale.PrefsStore
	Logger *slog.Logger

	// Settings seeds the generation settings; the language always comes
	// from Prefs.
	Settings *caption.Settings

	Now            func() time.Time
	NotifyTTL      time.Duration
	StatusInterval time.Duration
}

// Controller owns one user's session: the media store, the caption list,
// the busy flags of the two flows and the notification slot. All methods
// are safe for concurrent use. Each flow admits one call at a time and
// rejects a second one instead of queueing it.
type Controller struct {
	mu sync.Mutex

	engine         Engine
	prefs          locale.PrefsStore
	logger         *slog.Logger
	now            func() time.Time
	notifyTTL      time.Duration
	statusInterval time.Duration

	media       media.Store
	settings    caption.Settings
	profileName string
	idea        string

	captions []caption.Option
	active   int

	generating      bool
	generatingSince time.Time
	enhancing       bool
	enhancingSince  time.Time

	notice        string
	noticeExpires time.Time
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	notifyTTL := opts.NotifyTTL
	if notifyTTL <= 0 {
		notifyTTL = DefaultNotifyTTL
	}
	statusInterval := opts.StatusInterval
	if statusInterval <= 0 {
		statusInterval = DefaultStatusInterval
	}
	prefsStore := opts.Prefs
	if prefsStore == nil {
		prefsStore = locale.NewMemoryStore(locale.DefaultPrefs())
	}

	prefs, err := prefsStore.Load()
	if err != nil {
		logger.Warn("load prefs failed, using defaults", "err", err)
		prefs = locale.DefaultPrefs()
	}

	settings := caption.DefaultSettings()
	if opts.Settings != nil {
		settings = opts.Settings.Clone()
	}
	settings.Language = locale.Normalize(prefs.Language)

	return &Controller{
		engine:         opts.Engine,
		prefs:          prefsStore,
		logger:         logger,
		now:            now,
		notifyTTL:      notifyTTL,
		statusInterval: statusInterval,
		settings:       settings,
		profileName:    prefs.ProfileName,
	}
}

// SetImage installs a fresh upload. It invalidates the caption list and
// any enhancement still in flight for the previous image. It is rejected
// with ErrGenerationInProgress while captions are being generated.
func (c *Controller) SetImage(dataURI string) error {
	if err := checkImage(dataURI); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generating {
		return ErrGenerationInProgress
	}
	c.setImageLocked(dataURI)
	return nil
}

// Upload sets the image and then immediately generates captions for it.
// The image is installed and the generation claimed under one lock, so the
// generation always sees this image and a rejected upload changes nothing.
func (c *Controller) Upload(ctx context.Context, dataURI string) error {
	if c.engine == nil {
		return ErrNoEngine
	}
	if err := checkImage(dataURI); err != nil {
		return err
	}

	c.mu.Lock()
	if c.generating {
		c.mu.Unlock()
		return ErrGenerationInProgress
	}
	c.setImageLocked(dataURI)
	req, epoch, err := c.beginGenerationLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return c.runGeneration(ctx, req, epoch)
}

func checkImage(dataURI string) error {
	mimeType, _, err := media.ParseDataURI(dataURI)
	if err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("set image: %w", media.ErrNotImage)
	}
	return nil
}

func (c *Controller) setImageLocked(dataURI string) {
	c.media.SetImage(strings.TrimSpace(dataURI))
	c.captions = nil
	c.active = 0
}

func (c *Controller) RemoveImage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.media.Clear()
	c.captions = nil
	c.active = 0
}

func (c *Controller) BeginCompare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media.BeginCompare()
}

func (c *Controller) EndCompare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media.EndCompare()
}

func (c *Controller) SetIdea(idea string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idea = idea
}

// SetSettings replaces the generation settings. An empty language keeps
// the current one; a new language is saved like SetLanguage does.
func (c *Controller) SetSettings(s caption.Settings) error {
	s = s.Clone()
	explicit := strings.TrimSpace(s.Language) != ""
	if explicit {
		s.Language = locale.Normalize(s.Language)
	}

	c.mu.Lock()
	if !explicit {
		s.Language = c.settings.Language
	}
	if err := s.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	changed := s.Language != c.settings.Language
	c.settings = s
	c.mu.Unlock()

	if changed {
		return c.savePrefs()
	}
	return nil
}

func (c *Controller) Settings() caption.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// SetLanguage switches the display and caption language and persists it.
func (c *Controller) SetLanguage(lang string) error {
	c.mu.Lock()
	c.settings.Language = locale.Normalize(lang)
	c.mu.Unlock()
	return c.savePrefs()
}

func (c *Controller) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Language
}

func (c *Controller) SetProfileName(name string) error {
	c.mu.Lock()
	c.profileName = strings.TrimSpace(name)
	if c.profileName == "" {
		c.profileName = locale.DefaultProfileName
	}
	c.mu.Unlock()
	return c.savePrefs()
}

func (c *Controller) savePrefs() error {
	c.mu.Lock()
	p := locale.Prefs{Language: c.settings.Language, ProfileName: c.profileName}
	c.mu.Unlock()

	if err := c.prefs.Save(p); err != nil {
		c.logger.Error("save prefs failed", "err", err)
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}

// Generate runs one caption call for the current image and idea.
//
// It returns ErrNotReady without calling the engine when there is nothing
// to caption, and ErrGenerationInProgress while another generation runs.
// An engine failure keeps the previous captions, shows "Engine Error" and
// returns an error wrapping ErrEngine. A successful answer replaces the
// caption list, even when it is empty.
func (c *Controller) Generate(ctx context.Context) error {
	if c.engine == nil {
		return ErrNoEngine
	}

	c.mu.Lock()
	req, epoch, err := c.beginGenerationLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return c.runGeneration(ctx, req, epoch)
}

// beginGenerationLocked builds the request and marks the session as
// generating. The caller must hold c.mu and run the returned request with
// runGeneration.
func (c *Controller) beginGenerationLocked() (caption.Request, uint64, error) {
	req, ok := caption.NewRequest(c.settings, c.media.Current(), c.idea)
	if !ok {
		return caption.Request{}, 0, ErrNotReady
	}
	if c.generating {
		return caption.Request{}, 0, ErrGenerationInProgress
	}
	c.generating = true
	c.generatingSince = c.now()
	return req, c.media.Epoch(), nil
}

func (c *Controller) runGeneration(ctx context.Context, req caption.Request, epoch uint64) error {
	defer c.finishGenerating()

	options, err := c.engine.GenerateCaptions(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Error("generate captions failed", "err", err)
		c.notifyLocked(locale.EngineError)
		return fmt.Errorf("%w: %w", ErrEngine, err)
	}
	if epoch != c.media.Epoch() {
		c.logger.Info("dropping captions for a replaced image", "count", len(options))
		return ErrStaleResult
	}

	c.captions = append([]caption.Option{}, options...)
	c.active = 0
	c.logger.Debug("captions updated", "count", len(c.captions))
	return nil
}

func (c *Controller) finishGenerating() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generating = false
}

// Enhance re-renders the original upload with a visual edit instruction.
// Enhancements never stack: every call starts from the original.
func (c *Controller) Enhance(ctx context.Context, instruction string) error {
	if c.engine == nil {
		return ErrNoEngine
	}
	instruction = strings.TrimSpace(instruction)

	c.mu.Lock()
	original := c.media.Original()
	switch {
	case original == "":
		c.mu.Unlock()
		return ErrNoImage
	case instruction == "":
		c.mu.Unlock()
		return ErrEmptyInstruction
	case c.enhancing:
		c.mu.Unlock()
		return ErrEnhancementInProgress
	}
	c.enhancing = true
	c.enhancingSince = c.now()
	epoch := c.media.Epoch()
	c.mu.Unlock()

	defer c.finishEnhancing()

	enhanced, err := c.engine.EnhanceImage(ctx, original, instruction)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Error("enhance image failed", "err", err)
		c.notifyLocked(locale.MagicFailed)
		return fmt.Errorf("%w: %w", ErrEngine, err)
	case enhanced == "":
		c.logger.Warn("enhance image returned nothing")
		c.notifyLocked(locale.MagicFailed)
		return ErrNoEnhancement
	case epoch != c.media.Epoch():
		c.logger.Info("dropping enhancement for a replaced image")
		return ErrStaleResult
	}

	c.media.SetEnhancedImage(enhanced)
	c.notifyLocked(locale.Transformed)
	return nil
}

func (c *Controller) finishEnhancing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhancing = false
}

// ApplySuggestion enhances with the visual prompt of the idx-th magic edit
// of the active caption.
func (c *Controller) ApplySuggestion(ctx context.Context, idx int) error {
	prompt, err := c.SuggestionPrompt(idx)
	if err != nil {
		return err
	}
	return c.Enhance(ctx, prompt)
}

// SuggestionPrompt is the visual prompt of the idx-th magic edit of the
// active caption.
func (c *Controller) SuggestionPrompt(idx int) (string, error) {
	c.mu.Lock()
	opt, ok := c.activeLocked()
	c.mu.Unlock()
	if !ok {
		return "", ErrNoCaption
	}
	if idx < 0 || idx >= len(opt.MagicEdits) {
		return "", ErrNoSuggestion
	}
	return opt.MagicEdits[idx].VisualPrompt, nil
}

func (c *Controller) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(c.active + 1)
}

func (c *Controller) Prev() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(c.active - 1)
}

// Select moves to caption idx, clamped to the available range.
func (c *Controller) Select(idx int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(idx)
}

func (c *Controller) selectLocked(idx int) int {
	last := len(c.captions) - 1
	switch {
	case last < 0:
		idx = 0
	case idx < 0:
		idx = 0
	case idx > last:
		idx = last
	}
	c.active = idx
	return idx
}

func (c *Controller) activeLocked() (caption.Option, bool) {
	if c.active < 0 || c.active >= len(c.captions) {
		return caption.Option{}, false
	}
	return c.captions[c.active], true
}

// Copy returns the clipboard text of the active caption.
func (c *Controller) Copy() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opt, ok := c.activeLocked()
	if !ok {
		return "", false
	}
	c.notifyLocked(locale.For(c.settings.Language).Copied)
	return caption.ClipboardText(opt), true
}

// Notify shows msg until the notification TTL passes or another
// notification replaces it.
func (c *Controller) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyLocked(msg)
}

func (c *Controller) notifyLocked(msg string) {
	c.notice = msg
	c.noticeExpires = c.now().Add(c.notifyTTL)
}

func (c *Controller) Notification() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notificationLocked(c.now())
}

func (c *Controller) notificationLocked(now time.Time) string {
	if c.notice == "" || !now.Before(c.noticeExpires) {
		return ""
	}
	return c.notice
}

func (c *Controller) Busy() (generating, enhancing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating, c.enhancing
}
