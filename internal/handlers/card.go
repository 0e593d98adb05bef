package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"captoro/internal/caption"
	"captoro/internal/locale"
	"captoro/internal/session"
	"captoro/internal/telegram"
)

const (
	callbackPrefix = "cp"
	maxMagicRows   = 3
)

// renderCard shows the chat's current menu, editing the previous inline
// message when edit is set.
func (h *Handler) renderCard(chatID int64, ctrl *session.Controller, edit bool) error {
	st := ctrl.Snapshot()
	ms := h.menus.Get(chatID)

	text, kb := view(ms, st)

	if edit && ms.MessageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, ms.MessageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.menus.Update(chatID, func(st *menuState) { st.MessageID = msgID })
	return nil
}

func view(ms menuState, st session.State) (string, telegram.Keyboard) {
	switch ms.Menu {
	case menuSettings:
		return settingsText(st), settingsKeyboard(st)
	case menuPlatform:
		return settingsText(st), choiceKeyboard("platform", lo.Map(caption.Platforms(), toString[caption.Platform]), string(st.Settings.Platform))
	case menuAccount:
		return settingsText(st), choiceKeyboard("account", lo.Map(caption.AccountTypes(), toString[caption.AccountType]), string(st.Settings.AccountType))
	case menuFormat:
		return settingsText(st), choiceKeyboard("format", lo.Map(caption.Modalities(), toString[caption.Modality]), string(st.Settings.Modality))
	case menuModes:
		return settingsText(st), modesKeyboard(st.Settings.Modes)
	case menuLanguage:
		return settingsText(st), choiceKeyboard("lang", lo.Map(locale.Supported(), func(l locale.Language, _ int) string { return l.Code }), st.Language)
	default:
		return cardText(st), cardKeyboard(st)
	}
}

func cardText(st session.State) string {
	msgs := locale.For(st.Language)

	var b strings.Builder
	if st.Active == nil {
		b.WriteString("📭 " + msgs.NoOptions + "\n\n")
		b.WriteString("Send a photo, or text of at least 3 characters.")
	} else {
		opt := *st.Active
		b.WriteString(fmt.Sprintf("📝 %d/%d · %s\n\n", st.ActiveIndex+1, len(st.Captions), opt.Category))
		b.WriteString(opt.Text)
		if tags := caption.RenderHashtags(opt.Hashtags); tags != "" {
			b.WriteString("\n\n" + tags)
		}
		b.WriteString(fmt.Sprintf("\n\n🔥 %d%% · 🪝 %d%% · 👁 %d%% · ⏱ %d%%",
			opt.Metrics.ViralScore, opt.Metrics.HookStrength, opt.Metrics.VisualImpact, opt.Metrics.RetentionRate))

		insights := []struct{ label, value string }{
			{"💡 " + msgs.WhyItWorks, opt.Analysis.WhyItWorks},
			{"🎯 " + msgs.Audience, opt.Analysis.TargetAudience},
			{"🕒 " + msgs.BestTime, opt.Analysis.BestPostingTime},
			{"📱 " + msgs.Platform, string(st.Settings.Platform)},
		}
		b.WriteString("\n")
		for _, in := range insights {
			if strings.TrimSpace(in.value) == "" {
				continue
			}
			b.WriteString("\n" + in.label + ": " + in.value)
		}
	}

	if st.Notification != "" {
		b.WriteString("\n\n🔔 " + st.Notification)
	}
	return strings.TrimSpace(b.String())
}

func cardKeyboard(st session.State) telegram.Keyboard {
	msgs := locale.For(st.Language)

	var rows [][]tgbotapi.InlineKeyboardButton
	if n := len(st.Captions); n > 0 {
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("◀", cb("prev")),
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", st.ActiveIndex+1, n), cb("noop")),
				tgbotapi.NewInlineKeyboardButtonData("▶", cb("next")),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("📋 "+msgs.CopyLabel, cb("copy")),
				tgbotapi.NewInlineKeyboardButtonData("🔄", cb("regen")),
			},
		)
	}

	if st.Active != nil && st.HasImage {
		for i, edit := range st.Active.MagicEdits {
			if i >= maxMagicRows {
				break
			}
			label := "✨ " + lo.Ternary(edit.Title != "", edit.Title, msgs.MagicApplyCTA)
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(label, cb("magic", strconv.Itoa(i))),
			})
		}
	}

	var tools []tgbotapi.InlineKeyboardButton
	if st.HasImage {
		tools = append(tools, tgbotapi.NewInlineKeyboardButtonData("✏️ Magic", cb("custom")))
	}
	if st.Enhanced {
		tools = append(tools, tgbotapi.NewInlineKeyboardButtonData("🖼 Original", cb("original")))
	}
	tools = append(tools, tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", cb("menu", menuSettings)))
	rows = append(rows, tools)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settingsText(st session.State) string {
	s := st.Settings

	var b strings.Builder
	b.WriteString("⚙️ " + st.ProfileName + "\n\n")
	b.WriteString(fmt.Sprintf("Platform: %s\n", s.Platform))
	b.WriteString(fmt.Sprintf("Account: %s\n", s.AccountType))
	b.WriteString(fmt.Sprintf("Format: %s\n", s.Modality))
	b.WriteString(fmt.Sprintf("Modes: %s (objective: %s)\n", joinModes(s.Modes), s.Objective()))
	b.WriteString(fmt.Sprintf("Length: %d/%d\n", s.Length, caption.MaxScale))
	b.WriteString(fmt.Sprintf("Emoji: %d/%d\n", s.EmojiDensity, caption.MaxScale))
	b.WriteString(fmt.Sprintf("Language: %s", st.Language))
	return b.String()
}

func settingsKeyboard(st session.State) telegram.Keyboard {
	s := st.Settings
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📱 "+string(s.Platform), cb("menu", menuPlatform)),
			tgbotapi.NewInlineKeyboardButtonData("👤 "+string(s.AccountType), cb("menu", menuAccount)),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎯 Modes", cb("menu", menuModes)),
			tgbotapi.NewInlineKeyboardButtonData("🖼 "+string(s.Modality), cb("menu", menuFormat)),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Length −", cb("length", "-1")),
			tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(s.Length), cb("noop")),
			tgbotapi.NewInlineKeyboardButtonData("+", cb("length", "1")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Emoji −", cb("emoji", "-1")),
			tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(s.EmojiDensity), cb("noop")),
			tgbotapi.NewInlineKeyboardButtonData("+", cb("emoji", "1")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🌐 "+st.Language, cb("menu", menuLanguage)),
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb("menu", menuCard)),
		},
	)
}

// choiceKeyboard lists values two per row, marking the current one.
func choiceKeyboard(field string, values []string, current string) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, chunk := range lo.Chunk(values, 2) {
		row := lo.Map(chunk, func(v string, _ int) tgbotapi.InlineKeyboardButton {
			label := lo.Ternary(v == current, "✅ "+v, v)
			return tgbotapi.NewInlineKeyboardButtonData(label, cb("set", field, v))
		})
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb("menu", menuSettings)),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func modesKeyboard(selected []caption.Mode) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	modes := caption.Modes()
	for start := 0; start < len(modes); start += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for i := start; i < start+2 && i < len(modes); i++ {
			label := lo.Ternary(lo.Contains(selected, modes[i]), "✅ ", "⬜ ") + string(modes[i])
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb("mode", strconv.Itoa(i))))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb("menu", menuSettings)),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(parts ...string) string {
	return callbackPrefix + ":" + strings.Join(parts, ":")
}

func joinModes(modes []caption.Mode) string {
	return strings.Join(lo.Map(modes, toString[caption.Mode]), ", ")
}

func toString[T ~string](v T, _ int) string {
	return string(v)
}

func supportedLanguageList() string {
	return strings.Join(lo.Map(locale.Supported(), func(l locale.Language, _ int) string {
		return strings.ToLower(l.Label)
	}), ", ")
}
