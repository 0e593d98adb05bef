package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captoro/internal/caption"
	"captoro/internal/locale"
)

const (
	imageA = "data:image/jpeg;base64,SU1BR0VB"
	imageB = "data:image/png;base64,SU1BR0VC"
	edited = "data:image/png;base64,RURJVEVE"
)

type fakeEngine struct {
	mu sync.Mutex

	captions   []caption.Option
	captionErr error
	enhanced   string
	enhanceErr error

	requests  []caption.Request
	originals []string

	// When started is set, each call signals it and waits on release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeEngine) GenerateCaptions(_ context.Context, req caption.Request) ([]caption.Option, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	out, err := f.captions, f.captionErr
	f.mu.Unlock()

	f.wait()
	return out, err
}

func (f *fakeEngine) EnhanceImage(_ context.Context, original, _ string) (string, error) {
	f.mu.Lock()
	f.originals = append(f.originals, original)
	out, err := f.enhanced, f.enhanceErr
	f.mu.Unlock()

	f.wait()
	return out, err
}

func (f *fakeEngine) wait() {
	if f.started == nil {
		return
	}
	f.started <- struct{}{}
	<-f.release
}

func (f *fakeEngine) set(fn func(f *fakeEngine)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func options(texts ...string) []caption.Option {
	out := make([]caption.Option, 0, len(texts))
	for _, t := range texts {
		out = append(out, caption.Option{Category: "Bold", Text: t, Hashtags: []string{"go"}})
	}
	return out
}

func newController(t *testing.T, engine Engine) (*Controller, *fakeClock) {
	t.Helper()
	clock := newClock()
	return New(Options{Engine: engine, Now: clock.Now}), clock
}

func TestGenerate_NotReadyDoesNotCallEngine(t *testing.T) {
	engine := &fakeEngine{captions: options("a")}
	c, _ := newController(t, engine)

	c.SetIdea("ab")
	if err := c.Generate(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Generate() error = %v, want ErrNotReady", err)
	}
	if len(engine.requests) != 0 {
		t.Errorf("engine called %d times", len(engine.requests))
	}

	c.SetIdea("abc")
	if err := c.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(engine.requests) != 1 || engine.requests[0].HasImage() {
		t.Errorf("requests = %+v", engine.requests)
	}
}

func TestUpload_GeneratesForTheNewImage(t *testing.T) {
	engine := &fakeEngine{captions: options("one", "two", "three")}
	c, _ := newController(t, engine)

	if err := c.Upload(context.Background(), imageA); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got := engine.requests[0].Image; got != imageA {
		t.Errorf("engine saw image %q, want %q", got, imageA)
	}

	st := c.Snapshot()
	if len(st.Captions) != 3 || st.ActiveIndex != 0 || st.Active == nil || st.Active.Text != "one" {
		t.Errorf("state = %+v", st)
	}
	if !st.HasImage || st.Enhanced || st.Image != imageA {
		t.Errorf("media state = %+v", st)
	}

	if err := c.Upload(context.Background(), imageB); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got := engine.requests[1].Image; got != imageB {
		t.Errorf("second upload sent %q, want %q", got, imageB)
	}
}

func TestSetImage_RejectsNonImage(t *testing.T) {
	c, _ := newController(t, &fakeEngine{})
	if err := c.SetImage("data:text/plain;base64,aGVsbG8="); err == nil {
		t.Fatal("SetImage() error = nil for text payload")
	}
	if c.Snapshot().HasImage {
		t.Error("image installed after rejected upload")
	}
}

func TestGenerate_EngineErrorKeepsCaptions(t *testing.T) {
	engine := &fakeEngine{captions: options("one", "two", "three")}
	c, _ := newController(t, engine)
	c.SetIdea("coffee shop opening")

	if err := c.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	c.Select(2)

	engine.set(func(f *fakeEngine) { f.captionErr = errors.New("quota exceeded") })
	err := c.Generate(context.Background())
	if !errors.Is(err, ErrEngine) {
		t.Fatalf("Generate() error = %v, want ErrEngine", err)
	}

	st := c.Snapshot()
	if len(st.Captions) != 3 || st.ActiveIndex != 2 {
		t.Errorf("captions = %d active = %d, want 3 and 2", len(st.Captions), st.ActiveIndex)
	}
	if st.Notification != locale.EngineError {
		t.Errorf("notification = %q, want %q", st.Notification, locale.EngineError)
	}
	if st.Generating {
		t.Error("still generating after failure")
	}
}

func TestGenerate_EmptyResultClearsCaptions(t *testing.T) {
	engine := &fakeEngine{captions: options("one", "two")}
	c, _ := newController(t, engine)
	c.SetIdea("coffee shop opening")

	if err := c.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	c.Next()

	engine.set(func(f *fakeEngine) { f.captions = []caption.Option{} })
	if err := c.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	st := c.Snapshot()
	if len(st.Captions) != 0 || st.ActiveIndex != 0 || st.Active != nil {
		t.Errorf("state = %+v, want empty list", st)
	}
	if st.Notification != "" {
		t.Errorf("notification = %q, want none", st.Notification)
	}
}

func TestGenerate_RejectsSecondCallWhileRunning(t *testing.T) {
	engine := &fakeEngine{
		captions: options("one"),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, _ := newController(t, engine)
	c.SetIdea("launch day")

	done := make(chan error, 1)
	go func() { done <- c.Generate(context.Background()) }()
	<-engine.started

	if err := c.Generate(context.Background()); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("second Generate() error = %v, want ErrGenerationInProgress", err)
	}
	if st := c.Snapshot(); !st.Generating || st.CanGenerate {
		t.Errorf("generating = %v canGenerate = %v", st.Generating, st.CanGenerate)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	if len(engine.requests) != 1 {
		t.Errorf("engine calls = %d, want 1", len(engine.requests))
	}
}

func TestGenerate_DropsResultForRemovedImage(t *testing.T) {
	engine := &fakeEngine{
		captions: options("for A"),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, _ := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Generate(context.Background()) }()
	<-engine.started

	c.RemoveImage()
	close(engine.release)

	if err := <-done; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("Generate() error = %v, want ErrStaleResult", err)
	}
	if st := c.Snapshot(); len(st.Captions) != 0 || st.HasImage {
		t.Errorf("state = %+v", st)
	}
}

func TestUpload_RejectedWhileGeneratingChangesNothing(t *testing.T) {
	engine := &fakeEngine{
		captions: options("for A", "also A"),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, _ := newController(t, engine)

	done := make(chan error, 1)
	go func() { done <- c.Upload(context.Background(), imageA) }()
	<-engine.started

	if err := c.Upload(context.Background(), imageB); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("Upload(B) error = %v, want ErrGenerationInProgress", err)
	}
	if err := c.SetImage(imageB); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("SetImage(B) error = %v, want ErrGenerationInProgress", err)
	}
	if got := c.Snapshot().Image; got != imageA {
		t.Errorf("image during generation = %q, want A", got)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatalf("Upload(A) error = %v", err)
	}

	st := c.Snapshot()
	if st.Image != imageA || len(st.Captions) != 2 || st.Generating {
		t.Errorf("state = %+v", st)
	}
	if len(engine.requests) != 1 || engine.requests[0].Image != imageA {
		t.Errorf("requests = %+v", engine.requests)
	}
}

func TestUpload_WithoutEngineKeepsImage(t *testing.T) {
	c := New(Options{})
	if err := c.Upload(context.Background(), imageA); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("Upload() error = %v, want ErrNoEngine", err)
	}
	if c.Snapshot().HasImage {
		t.Error("image installed without an engine")
	}
}

func TestEnhance_AlwaysSendsTheOriginal(t *testing.T) {
	engine := &fakeEngine{enhanced: edited}
	c, _ := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}

	if err := c.Enhance(context.Background(), "golden hour"); err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	engine.set(func(f *fakeEngine) { f.enhanced = "data:image/png;base64,QUdBSU4=" })
	if err := c.Enhance(context.Background(), "neon"); err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}

	for i, got := range engine.originals {
		if got != imageA {
			t.Errorf("call %d sent %q, want original", i, got)
		}
	}

	st := c.Snapshot()
	if !st.Enhanced || st.Image != "data:image/png;base64,QUdBSU4=" {
		t.Errorf("state = %+v", st)
	}
	if st.Notification != locale.Transformed {
		t.Errorf("notification = %q", st.Notification)
	}
}

func TestEnhance_FailureLeavesImage(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     error
		wantErr error
	}{
		{name: "engine error", err: errors.New("boom"), wantErr: ErrEngine},
		{name: "no image returned", wantErr: ErrNoEnhancement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{enhanced: tt.out, enhanceErr: tt.err}
			c, _ := newController(t, engine)
			if err := c.SetImage(imageA); err != nil {
				t.Fatal(err)
			}

			if err := c.Enhance(context.Background(), "make it pop"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enhance() error = %v, want %v", err, tt.wantErr)
			}
			st := c.Snapshot()
			if st.Image != imageA || st.Enhanced {
				t.Errorf("image changed: %+v", st)
			}
			if st.Notification != locale.MagicFailed {
				t.Errorf("notification = %q, want %q", st.Notification, locale.MagicFailed)
			}
		})
	}
}

func TestEnhance_Preconditions(t *testing.T) {
	engine := &fakeEngine{enhanced: edited}
	c, _ := newController(t, engine)

	if err := c.Enhance(context.Background(), "x"); !errors.Is(err, ErrNoImage) {
		t.Errorf("Enhance() without image = %v, want ErrNoImage", err)
	}
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}
	if err := c.Enhance(context.Background(), "   "); !errors.Is(err, ErrEmptyInstruction) {
		t.Errorf("Enhance() with blank instruction = %v, want ErrEmptyInstruction", err)
	}
	if len(engine.originals) != 0 {
		t.Errorf("engine called %d times", len(engine.originals))
	}

	if err := New(Options{}).Generate(context.Background()); !errors.Is(err, ErrNoEngine) {
		t.Errorf("Generate() without engine = %v", err)
	}
}

func TestEnhance_RejectsSecondCallWhileRunning(t *testing.T) {
	engine := &fakeEngine{
		enhanced: edited,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, _ := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Enhance(context.Background(), "first") }()
	<-engine.started

	if err := c.Enhance(context.Background(), "second"); !errors.Is(err, ErrEnhancementInProgress) {
		t.Errorf("second Enhance() error = %v, want ErrEnhancementInProgress", err)
	}
	if st := c.Snapshot(); st.Status != locale.For(locale.English).Loading[0] || st.CanEnhance {
		t.Errorf("status = %q canEnhance = %v", st.Status, st.CanEnhance)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatalf("first Enhance() error = %v", err)
	}
}

func TestGenerate_UsesEnhancedImage(t *testing.T) {
	engine := &fakeEngine{enhanced: edited, captions: options("x")}
	c, _ := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}
	if err := c.Enhance(context.Background(), "warm tones"); err != nil {
		t.Fatal(err)
	}
	if err := c.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := engine.requests[0].Image; got != edited {
		t.Errorf("generation image = %q, want enhanced", got)
	}
}

func TestCompareShowsOriginal(t *testing.T) {
	engine := &fakeEngine{enhanced: edited}
	c, _ := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}
	if err := c.Enhance(context.Background(), "warm tones"); err != nil {
		t.Fatal(err)
	}

	c.BeginCompare()
	if st := c.Snapshot(); st.Image != imageA || !st.Comparing {
		t.Errorf("comparing state = %+v", st)
	}
	c.EndCompare()
	if st := c.Snapshot(); st.Image != edited || st.Comparing {
		t.Errorf("after compare = %+v", st)
	}

	c.RemoveImage()
	if st := c.Snapshot(); st.HasImage || st.Image != "" || st.Enhanced {
		t.Errorf("after remove = %+v", st)
	}
}

func TestNavigationClamps(t *testing.T) {
	engine := &fakeEngine{captions: options("one", "two", "three")}
	c, _ := newController(t, engine)

	if got := c.Next(); got != 0 {
		t.Errorf("Next() on empty list = %d", got)
	}

	c.SetIdea("summer drop")
	if err := c.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		move func() int
		want int
	}{
		{name: "prev at start", move: c.Prev, want: 0},
		{name: "next", move: c.Next, want: 1},
		{name: "next", move: c.Next, want: 2},
		{name: "next at end", move: c.Next, want: 2},
		{name: "select past end", move: func() int { return c.Select(9) }, want: 2},
		{name: "select negative", move: func() int { return c.Select(-4) }, want: 0},
		{name: "select middle", move: func() int { return c.Select(1) }, want: 1},
	}
	for _, s := range steps {
		if got := s.move(); got != s.want {
			t.Errorf("%s: index = %d, want %d", s.name, got, s.want)
		}
	}
}

func TestCopy(t *testing.T) {
	engine := &fakeEngine{captions: []caption.Option{{Text: "Hello", Hashtags: []string{"ai", "tech"}}}}
	c, _ := newController(t, engine)

	if _, ok := c.Copy(); ok {
		t.Error("Copy() ok with no captions")
	}

	c.SetIdea("robots")
	if err := c.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.SetLanguage(locale.Spanish); err != nil {
		t.Fatal(err)
	}

	text, ok := c.Copy()
	if !ok || text != "Hello\n\n#ai #tech" {
		t.Errorf("Copy() = %q, %v", text, ok)
	}
	if got := c.Notification(); got != "¡COPIADO!" {
		t.Errorf("notification = %q", got)
	}
}

func TestNotificationExpiresAndIsReplaced(t *testing.T) {
	c, clock := newController(t, &fakeEngine{})

	c.Notify("first")
	clock.Advance(2 * time.Second)
	c.Notify("second")

	clock.Advance(2 * time.Second)
	if got := c.Notification(); got != "second" {
		t.Errorf("notification = %q, want second", got)
	}

	clock.Advance(time.Second)
	if got := c.Notification(); got != "" {
		t.Errorf("notification = %q after ttl, want none", got)
	}
}

func TestStatusCyclesWhileGenerating(t *testing.T) {
	engine := &fakeEngine{
		captions: options("x"),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, clock := newController(t, engine)
	c.SetIdea("city lights")

	done := make(chan error, 1)
	go func() { done <- c.Generate(context.Background()) }()
	<-engine.started

	loading := locale.For(locale.English).Loading
	for i := 0; i < len(loading)+1; i++ {
		want := loading[i%len(loading)]
		if got := c.Snapshot().Status; got != want {
			t.Errorf("step %d: status = %q, want %q", i, got, want)
		}
		clock.Advance(DefaultStatusInterval)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Status; got != "" {
		t.Errorf("status after generation = %q", got)
	}
}

func TestStatusCyclesWhileEnhancing(t *testing.T) {
	engine := &fakeEngine{
		enhanced: edited,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	c, clock := newController(t, engine)
	if err := c.SetImage(imageA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Enhance(context.Background(), "neon") }()
	<-engine.started

	loading := locale.For(locale.English).Loading
	for i := 0; i < len(loading)+1; i++ {
		want := loading[i%len(loading)]
		if got := c.Snapshot().Status; got != want {
			t.Errorf("step %d: status = %q, want %q", i, got, want)
		}
		clock.Advance(DefaultStatusInterval)
	}

	close(engine.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Status; got != "" {
		t.Errorf("status after enhancement = %q", got)
	}
}

func TestApplySuggestion(t *testing.T) {
	engine := &fakeEngine{
		enhanced: edited,
		captions: []caption.Option{{
			Text:       "x",
			MagicEdits: []caption.MagicEdit{{Title: "Glow", VisualPrompt: "soft rim light"}},
		}},
	}
	c, _ := newController(t, engine)

	if err := c.ApplySuggestion(context.Background(), 0); !errors.Is(err, ErrNoCaption) {
		t.Errorf("ApplySuggestion() without captions = %v", err)
	}
	if err := c.Upload(context.Background(), imageA); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplySuggestion(context.Background(), 3); !errors.Is(err, ErrNoSuggestion) {
		t.Errorf("ApplySuggestion(3) = %v, want ErrNoSuggestion", err)
	}
	if err := c.ApplySuggestion(context.Background(), 0); err != nil {
		t.Fatalf("ApplySuggestion(0) = %v", err)
	}
	if c.Snapshot().Image != edited {
		t.Error("suggestion not applied")
	}
}

func TestLanguageIsPersisted(t *testing.T) {
	prefs := locale.NewMemoryStore(locale.DefaultPrefs())
	c := New(Options{Engine: &fakeEngine{}, Prefs: prefs})

	if got := c.Language(); got != locale.English {
		t.Fatalf("default language = %q", got)
	}
	if err := c.SetLanguage("es"); err != nil {
		t.Fatal(err)
	}
	if prefs.Saves() != 1 {
		t.Errorf("saves = %d, want 1", prefs.Saves())
	}

	reopened := New(Options{Engine: &fakeEngine{}, Prefs: prefs})
	if got := reopened.Language(); got != locale.Spanish {
		t.Errorf("reloaded language = %q, want Spanish", got)
	}
	if got := reopened.Settings().Language; got != locale.Spanish {
		t.Errorf("caption language = %q, want Spanish", got)
	}
}

func TestSetSettings(t *testing.T) {
	prefs := locale.NewMemoryStore(locale.DefaultPrefs())
	c := New(Options{Engine: &fakeEngine{}, Prefs: prefs})

	s := caption.DefaultSettings()
	s.Language = ""
	s.Platform = caption.PlatformTikTok
	s.Modes = []caption.Mode{caption.ModeStorytelling, caption.ModeViral}
	if err := c.SetSettings(s); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}
	if got := c.Settings(); got.Platform != caption.PlatformTikTok || got.Objective() != caption.ModeStorytelling {
		t.Errorf("settings = %+v", got)
	}
	if prefs.Saves() != 0 {
		t.Errorf("saves = %d, want 0 when language unchanged", prefs.Saves())
	}

	s.Length = 11
	if err := c.SetSettings(s); !errors.Is(err, caption.ErrInvalidSettings) {
		t.Errorf("SetSettings() error = %v, want ErrInvalidSettings", err)
	}
}

func TestSetSettings_DoesNotRevertConcurrentLanguage(t *testing.T) {
	c := New(Options{Engine: &fakeEngine{}})

	s := caption.DefaultSettings()
	s.Language = ""

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := c.SetSettings(s); err != nil {
				t.Errorf("SetSettings() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.SetLanguage(locale.Spanish); err != nil {
			t.Errorf("SetLanguage() error = %v", err)
		}
	}()
	wg.Wait()

	if got := c.Language(); got != locale.Spanish {
		t.Errorf("language = %q, want Spanish", got)
	}
}
