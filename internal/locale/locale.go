package locale

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	English  = "English"
	Spanish  = "Spanish"
	French   = "French"
	German   = "German"
	Japanese = "Japanese"

	Default = English
)

type Language struct {
	Code  string
	Label string
	Tag   language.Tag
}

// The first entry is the fallback when nothing matches.
var supported = []Language{
	{Code: English, Label: "EN", Tag: language.English},
	{Code: Spanish, Label: "ES", Tag: language.Spanish},
	{Code: French, Label: "FR", Tag: language.French},
	{Code: German, Label: "DE", Tag: language.German},
	{Code: Japanese, Label: "JP", Tag: language.Japanese},
}

var matcher = language.NewMatcher(supportedTags())

func supportedTags() []language.Tag {
	tags := make([]language.Tag, 0, len(supported))
	for _, l := range supported {
		tags = append(tags, l.Tag)
	}
	return tags
}

func Supported() []Language {
	return append([]Language(nil), supported...)
}

// Normalize maps a language name ("spanish"), short label ("ES") or BCP 47
// tag ("es-MX") to one of the supported display languages. Anything it
// cannot place falls back to English.
func Normalize(value string) string {
	code, _ := Lookup(value)
	return code
}

// Lookup is Normalize that also reports whether the value was recognized.
func Lookup(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Default, false
	}

	for _, l := range supported {
		if strings.EqualFold(value, l.Code) || strings.EqualFold(value, l.Label) {
			return l.Code, true
		}
	}

	tag, err := language.Parse(value)
	if err != nil {
		return Default, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default, false
	}
	return supported[idx].Code, true
}

// FromAcceptLanguage picks the best supported language for an HTTP
// Accept-Language header.
func FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return supported[idx].Code
}
