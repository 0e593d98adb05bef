package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"captoro/internal/caption"
	"captoro/internal/session"
)

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	parts := strings.Split(strings.TrimSpace(q.Data), ":")
	if len(parts) < 2 || parts[0] != callbackPrefix {
		return nil
	}

	action := parts[1]
	args := parts[2:]
	chatID := q.Message.Chat.ID
	langCode := ""
	if q.From != nil {
		langCode = q.From.LanguageCode
	}
	ctrl := h.session(chatID, langCode)

	h.menus.Update(chatID, func(st *menuState) { st.MessageID = q.Message.MessageID })

	switch action {
	case "prev":
		ctrl.Prev()
	case "next":
		ctrl.Next()
	case "copy":
		text, ok := ctrl.Copy()
		if !ok {
			_ = h.tg.AnswerCallback(q.ID, session.ErrNoCaption.Error(), false)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, ctrl.Notification(), false)
		return h.tg.SendText(chatID, text)
	case "regen":
		_ = h.tg.AnswerCallback(q.ID, "🔄", false)
		return h.generate(ctx, chatID, ctrl)
	case "magic":
		idx, err := strconv.Atoi(firstArg(args))
		if err != nil {
			return h.tg.AnswerCallback(q.ID, session.ErrNoSuggestion.Error(), false)
		}
		prompt, err := ctrl.SuggestionPrompt(idx)
		if err != nil {
			return h.tg.AnswerCallback(q.ID, err.Error(), false)
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.enhance(ctx, chatID, ctrl, prompt)
	case "custom":
		h.menus.Update(chatID, func(st *menuState) { st.AwaitingInstruction = true })
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.tg.SendText(chatID, "✨ Describe the edit, e.g. \"golden hour light\". /cancel to stop.")
	case "original":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.sendOriginal(chatID, ctrl)
	case "menu":
		h.menus.Update(chatID, func(st *menuState) { st.Menu = lo.Ternary(firstArg(args) != "", firstArg(args), menuCard) })
	case "set":
		if len(args) >= 2 {
			if err := h.applySetting(ctrl, args[0], strings.Join(args[1:], ":")); err != nil {
				return h.tg.AnswerCallback(q.ID, err.Error(), true)
			}
		}
		h.menus.Update(chatID, func(st *menuState) { st.Menu = menuSettings })
	case "mode":
		if idx, err := strconv.Atoi(firstArg(args)); err == nil {
			if err := ctrl.SetSettings(toggleMode(ctrl.Settings(), idx)); err != nil {
				return h.tg.AnswerCallback(q.ID, err.Error(), true)
			}
		}
	case "length", "emoji":
		delta, err := strconv.Atoi(firstArg(args))
		if err == nil {
			s := ctrl.Settings()
			if action == "length" {
				s.Length = clampScale(s.Length + delta)
			} else {
				s.EmojiDensity = clampScale(s.EmojiDensity + delta)
			}
			if err := ctrl.SetSettings(s); err != nil {
				return h.tg.AnswerCallback(q.ID, err.Error(), true)
			}
		}
	case "noop":
	default:
		return h.tg.AnswerCallback(q.ID, "Unknown action", false)
	}

	_ = h.tg.AnswerCallback(q.ID, "", false)
	return h.renderCard(chatID, ctrl, true)
}

func (h *Handler) applySetting(ctrl *session.Controller, field, value string) error {
	if field == "lang" {
		return ctrl.SetLanguage(value)
	}

	s := ctrl.Settings()
	ok := false
	switch field {
	case "platform":
		s.Platform, ok = caption.ParsePlatform(value)
	case "account":
		s.AccountType, ok = caption.ParseAccountType(value)
	case "format":
		s.Modality, ok = caption.ParseModality(value)
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s %q", caption.ErrInvalidSettings, field, value)
	}
	return ctrl.SetSettings(s)
}

// sendOriginal shows the untouched upload next to the enhanced one.
func (h *Handler) sendOriginal(chatID int64, ctrl *session.Controller) error {
	ctrl.BeginCompare()
	defer ctrl.EndCompare()

	st := ctrl.Snapshot()
	if !st.HasImage {
		return h.tg.SendText(chatID, "📷 Send a photo first.")
	}
	return h.tg.SendPhotoDataURI(chatID, st.Image, "🖼 Original")
}

// toggleMode adds or removes the idx-th mode. The last selected mode
// cannot be removed.
func toggleMode(s caption.Settings, idx int) caption.Settings {
	modes := caption.Modes()
	if idx < 0 || idx >= len(modes) {
		return s
	}
	m := modes[idx]
	switch {
	case !lo.Contains(s.Modes, m):
		s.Modes = append(append([]caption.Mode(nil), s.Modes...), m)
	case len(s.Modes) > 1:
		s.Modes = lo.Without(s.Modes, m)
	}
	return s
}

func clampScale(v int) int {
	return lo.Clamp(v, caption.MinScale, caption.MaxScale)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
