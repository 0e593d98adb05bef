package caption

import (
	"strings"

	"github.com/samber/lo"
)

type AccountType string

const (
	AccountPersonal AccountType = "Personal"
	AccountBusiness AccountType = "Business"
	AccountCreator  AccountType = "Creator"
)

type Platform string

const (
	PlatformInstagram Platform = "Instagram"
	PlatformTikTok    Platform = "TikTok"
	PlatformLinkedIn  Platform = "LinkedIn"
	PlatformX         Platform = "X"
	PlatformThreads   Platform = "Threads"
)

type Modality string

const (
	ModalityPhoto Modality = "Photo"
	ModalityVideo Modality = "Video"
)

// Mode is the rhetorical objective steering the caption style.
type Mode string

const (
	ModeViral        Mode = "Viral"
	ModeStorytelling Mode = "Storytelling"
	ModeEducational  Mode = "Educational"
	ModeSales        Mode = "Sales"
	ModeHumor        Mode = "Humor"
	ModeMinimalist   Mode = "Minimalist"
	ModeProvocative  Mode = "Provocative"
	ModeEmpathetic   Mode = "Empathetic"
	ModeProfessional Mode = "Professional"
	ModeFOMO         Mode = "FOMO Effect"
	ModeUGC          Mode = "UGC Style"
)

var (
	accountTypes = []AccountType{AccountPersonal, AccountBusiness, AccountCreator}
	platforms    = []Platform{PlatformInstagram, PlatformTikTok, PlatformLinkedIn, PlatformX, PlatformThreads}
	modalities   = []Modality{ModalityPhoto, ModalityVideo}
	modes        = []Mode{
		ModeViral, ModeStorytelling, ModeEducational, ModeSales, ModeHumor, ModeMinimalist,
		ModeProvocative, ModeEmpathetic, ModeProfessional, ModeFOMO, ModeUGC,
	}
)

func AccountTypes() []AccountType { return append([]AccountType(nil), accountTypes...) }
func Platforms() []Platform       { return append([]Platform(nil), platforms...) }
func Modalities() []Modality      { return append([]Modality(nil), modalities...) }
func Modes() []Mode               { return append([]Mode(nil), modes...) }

func (a AccountType) Valid() bool { return lo.Contains(accountTypes, a) }
func (p Platform) Valid() bool    { return lo.Contains(platforms, p) }
func (m Modality) Valid() bool    { return lo.Contains(modalities, m) }
func (m Mode) Valid() bool        { return lo.Contains(modes, m) }

func ParseAccountType(value string) (AccountType, bool) { return parseEnum(accountTypes, value) }
func ParsePlatform(value string) (Platform, bool)       { return parseEnum(platforms, value) }
func ParseModality(value string) (Modality, bool)       { return parseEnum(modalities, value) }

// ParseMode also accepts the short forms "FOMO" and "UGC".
func ParseMode(value string) (Mode, bool) {
	if m, ok := parseEnum(modes, value); ok {
		return m, true
	}
	switch normalizeKey(value) {
	case "fomo":
		return ModeFOMO, true
	case "ugc":
		return ModeUGC, true
	}
	return "", false
}

func parseEnum[T ~string](values []T, raw string) (T, bool) {
	key := normalizeKey(raw)
	return lo.Find(values, func(v T) bool {
		return normalizeKey(string(v)) == key
	})
}

func normalizeKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.ReplaceAll(value, "-", " ")
	return strings.Join(strings.Fields(value), " ")
}
