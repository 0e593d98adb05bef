package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"captoro/internal/album"
	"captoro/internal/locale"
	"captoro/internal/session"
	"captoro/internal/telegram"
)

// Messenger is the part of the Telegram client the handler needs.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	SendPhotoDataURI(chatID int64, dataURI, caption string) error
	AnswerCallback(callbackID, text string, alert bool) error
	DownloadFileDataURI(ctx context.Context, fileID string) (string, error)
}

type Options struct {
	Telegram Messenger
	Sessions *session.Registry
	Logger   *slog.Logger
}

type Handler struct {
	tg       Messenger
	sessions *session.Registry
	menus    *menuStore
	logger   *slog.Logger
	albums   *album.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewRegistry(nil)
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: sessions,
		menus:    newMenuStore(),
		logger:   logger,
	}
}

func (h *Handler) SetAlbumAggregator(ag *album.Aggregator) {
	h.albums = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	langCode := ""
	if msg.From != nil {
		langCode = msg.From.LanguageCode
	}
	ctrl := h.session(chatID, langCode)

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, ctrl, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, ctrl, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, ctrl, msg.Text)
	}

	return nil
}

// HandleAlbum captions the first photo of an album.
func (h *Handler) HandleAlbum(ctx context.Context, group album.Group) {
	fileID, ok := group.First()
	if !ok {
		return
	}
	ctrl := h.session(group.ChatID, group.LanguageCode)
	if err := h.processPhoto(ctx, group.ChatID, ctrl, fileID, group.Caption); err != nil {
		h.logger.Error("album processing failed", "chat_id", group.ChatID, "err", err)
	}
}

// session returns the chat's controller. A new chat starts in the user's
// Telegram language when it is one of ours.
func (h *Handler) session(chatID int64, langCode string) *session.Controller {
	key := strconv.FormatInt(chatID, 10)
	if ctrl, ok := h.sessions.Get(key); ok {
		return ctrl
	}
	ctrl := h.sessions.GetOrCreate(key)
	if lang, ok := locale.Lookup(langCode); ok {
		if err := ctrl.SetLanguage(lang); err != nil {
			h.logger.Warn("apply telegram language failed", "chat_id", chatID, "err", err)
		}
	}
	return ctrl
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, ctrl *session.Controller, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "settings":
		h.menus.Update(chatID, func(st *menuState) { st.Menu = menuSettings })
		return h.renderCard(chatID, ctrl, false)
	case "clear":
		ctrl.RemoveImage()
		ctrl.SetIdea("")
		h.menus.Reset(chatID)
		return h.tg.SendText(chatID, "🧹 Cleared. Send a photo or an idea to start again.")
	case "lang":
		if args == "" {
			return h.tg.SendText(chatID, "🌐 Language: "+ctrl.Language()+"\nUsage: /lang es")
		}
		lang, ok := locale.Lookup(args)
		if !ok {
			return h.tg.SendText(chatID, "❌ Unsupported language. Try: "+supportedLanguageList())
		}
		if err := ctrl.SetLanguage(lang); err != nil {
			return err
		}
		return h.tg.SendText(chatID, "🌐 Language: "+lang)
	case "magic":
		if args == "" {
			h.menus.Update(chatID, func(st *menuState) { st.AwaitingInstruction = true })
			return h.tg.SendText(chatID, "✨ Describe the edit, e.g. \"golden hour light\". /cancel to stop.")
		}
		return h.enhance(ctx, chatID, ctrl, args)
	case "cancel":
		h.menus.Update(chatID, func(st *menuState) { st.AwaitingInstruction = false })
		return h.tg.SendText(chatID, "OK")
	case "generate":
		if args != "" {
			ctrl.SetIdea(args)
		}
		return h.generate(ctx, chatID, ctrl)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID int64, ctrl *session.Controller, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if h.menus.Get(chatID).AwaitingInstruction {
		h.menus.Update(chatID, func(st *menuState) { st.AwaitingInstruction = false })
		return h.enhance(ctx, chatID, ctrl, text)
	}

	ctrl.SetIdea(text)
	return h.generate(ctx, chatID, ctrl)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, ctrl *session.Controller, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.albums != nil {
		item := album.Item{
			ChatID:       chatID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       photo.FileID,
		}
		if msg.From != nil {
			item.UserID = msg.From.ID
			item.LanguageCode = msg.From.LanguageCode
		}
		h.albums.Add(item)
		return nil
	}

	return h.processPhoto(ctx, chatID, ctrl, photo.FileID, msg.Caption)
}

// processPhoto installs the photo and generates captions for it. A photo
// caption becomes the idea.
func (h *Handler) processPhoto(ctx context.Context, chatID int64, ctrl *session.Controller, fileID, idea string) error {
	h.tg.SendTyping(chatID)

	dataURI, err := h.tg.DownloadFileDataURI(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo.")
	}

	if idea = strings.TrimSpace(idea); idea != "" {
		ctrl.SetIdea(idea)
	}

	h.menus.Update(chatID, func(st *menuState) {
		st.Menu = menuCard
		st.MessageID = 0
	})
	return h.reportGenerate(chatID, ctrl, ctrl.Upload(ctx, dataURI))
}

func (h *Handler) generate(ctx context.Context, chatID int64, ctrl *session.Controller) error {
	h.tg.SendTyping(chatID)
	h.menus.Update(chatID, func(st *menuState) {
		st.Menu = menuCard
		st.MessageID = 0
	})
	return h.reportGenerate(chatID, ctrl, ctrl.Generate(ctx))
}

func (h *Handler) reportGenerate(chatID int64, ctrl *session.Controller, err error) error {
	switch {
	case err == nil, errors.Is(err, session.ErrEngine):
		return h.renderCard(chatID, ctrl, false)
	case errors.Is(err, session.ErrNotReady):
		return h.tg.SendText(chatID, "✍️ Send a photo or an idea of at least 3 characters.")
	case errors.Is(err, session.ErrGenerationInProgress):
		return h.tg.SendText(chatID, "⏳ "+ctrl.Snapshot().Status)
	case errors.Is(err, session.ErrStaleResult):
		return nil
	}
	h.logger.Error("generate failed", "chat_id", chatID, "err", err)
	return h.tg.SendText(chatID, "❌ "+err.Error())
}

// enhance runs one enhancement and sends the edited photo. The progress
// message is only sent once the session can start the enhancement.
func (h *Handler) enhance(ctx context.Context, chatID int64, ctrl *session.Controller, instruction string) error {
	instruction = strings.TrimSpace(instruction)

	var err error
	switch st := ctrl.Snapshot(); {
	case !st.HasImage:
		err = session.ErrNoImage
	case st.Enhancing:
		err = session.ErrEnhancementInProgress
	case instruction == "":
		err = session.ErrEmptyInstruction
	default:
		h.tg.SendTyping(chatID)
		_ = h.tg.SendText(chatID, "✨ "+locale.For(st.Language).ApplyingMagic)
		err = ctrl.Enhance(ctx, instruction)
	}

	switch {
	case err == nil:
		st := ctrl.Snapshot()
		if err := h.tg.SendPhotoDataURI(chatID, st.Image, st.Notification); err != nil {
			return err
		}
		return nil
	case errors.Is(err, session.ErrEngine), errors.Is(err, session.ErrNoEnhancement):
		return h.tg.SendText(chatID, "❌ "+locale.MagicFailed)
	case errors.Is(err, session.ErrNoImage):
		return h.tg.SendText(chatID, "📷 Send a photo first.")
	case errors.Is(err, session.ErrEnhancementInProgress):
		return h.tg.SendText(chatID, "⏳ "+locale.For(ctrl.Language()).ApplyingMagic)
	case errors.Is(err, session.ErrEmptyInstruction), errors.Is(err, session.ErrNoSuggestion), errors.Is(err, session.ErrNoCaption):
		return h.tg.SendText(chatID, "❌ "+err.Error())
	case errors.Is(err, session.ErrStaleResult):
		return nil
	}
	h.logger.Error("enhance failed", "chat_id", chatID, "err", err)
	return h.tg.SendText(chatID, "❌ "+err.Error())
}

const helpText = "📸 Captoro\n\n" +
	"Send a photo and get 3 viral captions for it.\n" +
	"Send text (3+ characters) to caption an idea instead.\n\n" +
	"Commands:\n" +
	"/settings - platform, account, modes, language\n" +
	"/generate [idea] - regenerate captions\n" +
	"/magic <edit> - re-render the photo\n" +
	"/lang <code> - display and caption language\n" +
	"/clear - start over"
