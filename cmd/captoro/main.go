package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"captoro/internal/caption"
	"captoro/internal/config"
	"captoro/internal/engine"
	"captoro/internal/httpclient"
	"captoro/internal/locale"
	"captoro/internal/media"
	"captoro/internal/session"
)

var version = "dev"

type App struct {
	Out       io.Writer
	Err       io.Writer
	Logger    *slog.Logger
	NewEngine func(ctx context.Context) (session.Engine, error)
	NewPrefs  func() (locale.PrefsStore, error)
	ReadFile  func(string) ([]byte, error)
	WriteFile func(string, []byte, os.FileMode) error
}

func DefaultApp() *App {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Logger: logger,
		NewEngine: func(ctx context.Context) (session.Engine, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			httpClient := httpclient.New(httpclient.Options{
				PreferIPv4: cfg.PreferIPv4,
				Timeout:    cfg.HTTPTimeout,
			})
			return engine.New(ctx, cfg, httpClient, logger)
		},
		NewPrefs: func() (locale.PrefsStore, error) {
			path, err := locale.DefaultPrefsPath()
			if err != nil {
				return nil, err
			}
			return locale.NewFileStore(path), nil
		},
		ReadFile:  os.ReadFile,
		WriteFile: os.WriteFile,
	}
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(DefaultApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captoro",
		Short: "Viral captions and image enhancement from the command line",
		Long: `captoro sends a photo and/or an idea to Gemini and prints three caption
variants, or re-renders a photo with a visual edit instruction.

Examples:
  captoro generate --image beach.jpg
  captoro generate "new latte art menu" --platform TikTok --mode Humor --mode FOMO
  captoro enhance --image beach.jpg --instruction "golden hour light" -o out.png
  captoro lang es`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newGenerateCmd(app), newEnhanceCmd(app), newLangCmd(app))
	return cmd
}

type generateFlags struct {
	image    string
	platform string
	account  string
	format   string
	modes    []string
	length   int
	emoji    int
	style    string
	lang     string
	json     bool
}

func newGenerateCmd(app *App) *cobra.Command {
	var f generateFlags
	defaults := caption.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "generate [idea]",
		Short: "Generate three caption variants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idea := ""
			if len(args) > 0 {
				idea = args[0]
			}
			return runGenerate(cmd.Context(), app, f, idea)
		},
	}

	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image file to caption")
	cmd.Flags().StringVarP(&f.platform, "platform", "p", string(defaults.Platform), "target platform")
	cmd.Flags().StringVarP(&f.account, "account", "a", string(defaults.AccountType), "account type (Personal, Business, Creator)")
	cmd.Flags().StringVar(&f.format, "format", string(defaults.Modality), "content format (Photo, Video)")
	cmd.Flags().StringSliceVarP(&f.modes, "mode", "m", []string{string(caption.ModeViral)}, "caption modes; the first one steers generation")
	cmd.Flags().IntVar(&f.length, "length", defaults.Length, "caption length 1-10")
	cmd.Flags().IntVar(&f.emoji, "emoji", defaults.EmojiDensity, "emoji density 1-10")
	cmd.Flags().StringVar(&f.style, "style", defaults.CommunicationStyle, "communication style")
	cmd.Flags().StringVar(&f.lang, "lang", "", "caption language (defaults to the saved language)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the raw caption options as JSON")

	return cmd
}

func (f generateFlags) settings() (caption.Settings, error) {
	s := caption.DefaultSettings()

	var ok bool
	if s.Platform, ok = caption.ParsePlatform(f.platform); !ok {
		return s, fmt.Errorf("unknown platform %q: one of %v", f.platform, caption.Platforms())
	}
	if s.AccountType, ok = caption.ParseAccountType(f.account); !ok {
		return s, fmt.Errorf("unknown account type %q: one of %v", f.account, caption.AccountTypes())
	}
	if s.Modality, ok = caption.ParseModality(f.format); !ok {
		return s, fmt.Errorf("unknown format %q: one of %v", f.format, caption.Modalities())
	}

	s.Modes = nil
	for _, raw := range f.modes {
		m, ok := caption.ParseMode(raw)
		if !ok {
			return s, fmt.Errorf("unknown mode %q: one of %v", raw, caption.Modes())
		}
		s.Modes = append(s.Modes, m)
	}

	s.Length = f.length
	s.EmojiDensity = f.emoji
	s.CommunicationStyle = strings.TrimSpace(f.style)
	// Empty keeps the language the controller loaded from prefs.
	s.Language = ""
	return s, nil
}

func runGenerate(ctx context.Context, app *App, f generateFlags, idea string) error {
	ctx, cancel := signal.NotifyContext(contextOrBackground(ctx), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, err := f.settings()
	if err != nil {
		return err
	}

	lang := ""
	if f.lang != "" {
		var ok bool
		if lang, ok = locale.Lookup(f.lang); !ok {
			return fmt.Errorf("unsupported language %q", f.lang)
		}
	}

	ctrl, err := app.newController(ctx, lang)
	if err != nil {
		return err
	}
	if err := ctrl.SetSettings(settings); err != nil {
		return err
	}

	if f.image != "" {
		if err := app.loadImage(ctrl, f.image); err != nil {
			return err
		}
	}
	ctrl.SetIdea(idea)

	fmt.Fprintln(app.Err, locale.For(ctrl.Language()).Loading[0])
	if err := ctrl.Generate(ctx); err != nil {
		if errors.Is(err, session.ErrEngine) {
			fmt.Fprintln(app.Err, locale.EngineError)
		}
		return err
	}

	st := ctrl.Snapshot()
	if f.json {
		enc := json.NewEncoder(app.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Captions)
	}
	printCaptions(app.Out, st)
	return nil
}

func printCaptions(w io.Writer, st session.State) {
	msgs := locale.For(st.Language)
	if len(st.Captions) == 0 {
		fmt.Fprintln(w, msgs.NoOptions)
		return
	}

	for i, opt := range st.Captions {
		fmt.Fprintf(w, "── %d/%d · %s · viral %d%%\n", i+1, len(st.Captions), opt.Category, opt.Metrics.ViralScore)
		fmt.Fprintln(w, caption.ClipboardText(opt))
		if opt.Analysis.WhyItWorks != "" {
			fmt.Fprintf(w, "%s: %s\n", msgs.WhyItWorks, opt.Analysis.WhyItWorks)
		}
		if opt.Analysis.BestPostingTime != "" {
			fmt.Fprintf(w, "%s: %s\n", msgs.BestTime, opt.Analysis.BestPostingTime)
		}
		for _, edit := range opt.MagicEdits {
			fmt.Fprintf(w, "  ✨ %s: %s\n", edit.Title, edit.VisualPrompt)
		}
		fmt.Fprintln(w)
	}
}

type enhanceFlags struct {
	image       string
	instruction string
	output      string
}

func newEnhanceCmd(app *App) *cobra.Command {
	var f enhanceFlags

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Re-render a photo with a visual edit instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnhance(cmd.Context(), app, f)
		},
	}

	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image file to enhance")
	cmd.Flags().StringVar(&f.instruction, "instruction", "", "visual edit instruction")
	cmd.Flags().StringVarP(&f.output, "out", "o", "", "output file (default <image>_enhanced.<ext>)")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("instruction")

	return cmd
}

func runEnhance(ctx context.Context, app *App, f enhanceFlags) error {
	ctx, cancel := signal.NotifyContext(contextOrBackground(ctx), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctrl, err := app.newController(ctx, "")
	if err != nil {
		return err
	}
	if err := app.loadImage(ctrl, f.image); err != nil {
		return err
	}

	fmt.Fprintln(app.Err, locale.For(ctrl.Language()).ApplyingMagic)
	if err := ctrl.Enhance(ctx, f.instruction); err != nil {
		if errors.Is(err, session.ErrEngine) || errors.Is(err, session.ErrNoEnhancement) {
			fmt.Fprintln(app.Err, locale.MagicFailed)
		}
		return err
	}

	mimeType, data, err := media.DecodeDataURI(ctrl.Snapshot().Image)
	if err != nil {
		return err
	}

	out := f.output
	if out == "" {
		out = enhancedPath(f.image, mimeType)
	}
	if err := app.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Fprintf(app.Out, "%s: %s\n", locale.Transformed, out)
	return nil
}

func newLangCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lang [code]",
		Short: "Show or save the display and caption language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := app.NewPrefs()
			if err != nil {
				return err
			}
			prefs, err := store.Load()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Fprintf(app.Out, "%s\n", prefs.Language)
				fmt.Fprintf(app.Out, "available: %s\n", strings.Join(lo.Map(locale.Supported(), func(l locale.Language, _ int) string {
					return strings.ToLower(l.Label) + " (" + l.Code + ")"
				}), ", "))
				return nil
			}

			lang, ok := locale.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unsupported language %q", args[0])
			}
			prefs.Language = lang
			if err := store.Save(prefs); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s\n", lang)
			return nil
		},
	}
}

// newController builds a one-shot session. A non-empty lang overrides the
// saved language for this run only.
func (app *App) newController(ctx context.Context, lang string) (*session.Controller, error) {
	eng, err := app.NewEngine(ctx)
	if err != nil {
		return nil, err
	}

	prefs, err := app.NewPrefs()
	if err != nil {
		app.Logger.Warn("prefs unavailable, using defaults", "err", err)
		prefs = locale.NewMemoryStore(locale.DefaultPrefs())
	}
	if lang != "" {
		saved, err := prefs.Load()
		if err != nil {
			saved = locale.DefaultPrefs()
		}
		saved.Language = lang
		prefs = locale.NewMemoryStore(saved)
	}

	return session.New(session.Options{
		Engine: eng,
		Prefs:  prefs,
		Logger: app.Logger,
	}), nil
}

func (app *App) loadImage(ctrl *session.Controller, path string) error {
	data, err := app.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	dataURI, err := media.FromUpload(mime.TypeByExtension(filepath.Ext(path)), data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return ctrl.SetImage(dataURI)
}

func enhancedPath(src, mimeType string) string {
	ext := ".png"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	base := strings.TrimSuffix(src, filepath.Ext(src))
	return base + "_enhanced" + ext
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
