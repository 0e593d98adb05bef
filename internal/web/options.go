package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"captoro/internal/caption"
	"captoro/internal/locale"
)

type languageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type optionsResponse struct {
	AccountTypes []caption.AccountType `json:"accountTypes"`
	Platforms    []caption.Platform    `json:"platforms"`
	Modalities   []caption.Modality    `json:"modalities"`
	Modes        []caption.Mode        `json:"modes"`
	Languages    []languageOption      `json:"languages"`
	Defaults     caption.Settings      `json:"defaults"`
	Scale        [2]int                `json:"scale"`
}

// handleOptions lists the values a client can put in the settings form.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	defaults := caption.DefaultSettings()
	defaults.Language = requestLanguage(r)

	writeJSON(w, http.StatusOK, optionsResponse{
		AccountTypes: caption.AccountTypes(),
		Platforms:    caption.Platforms(),
		Modalities:   caption.Modalities(),
		Modes:        caption.Modes(),
		Languages: lo.Map(locale.Supported(), func(l locale.Language, _ int) languageOption {
			return languageOption{Code: l.Code, Label: l.Label}
		}),
		Defaults: defaults,
		Scale:    [2]int{caption.MinScale, caption.MaxScale},
	})
}

// requestLanguage prefers the saved cookie and falls back to the
// browser's Accept-Language header.
func requestLanguage(r *http.Request) string {
	if c, err := r.Cookie(LanguageCookie); err == nil {
		if lang, ok := locale.Lookup(c.Value); ok {
			return lang
		}
	}
	return locale.FromAcceptLanguage(r.Header.Get("Accept-Language"))
}

func parseIndex(value string) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return idx, true
}
