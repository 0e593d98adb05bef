package locale

// Notifications that are shown verbatim in every language.
const (
	EngineError = "Engine Error"
	MagicFailed = "Magic failed"
	Transformed = "TRANSFORMED"
)

type Messages struct {
	Copied        string
	Loading       []string
	ApplyingMagic string
	NoOptions     string
	CopyLabel     string
	MagicApplyCTA string
	ViewOriginal  string
	WhyItWorks    string
	BestTime      string
	Audience      string
	Platform      string
	Idle          string
}

var messages = map[string]Messages{
	English: {
		Copied:        "COPIED!",
		Loading:       []string{"SCANNING...", "ARCHITECTING...", "OPTIMIZING..."},
		ApplyingMagic: "ENHANCING...",
		NoOptions:     "NO OPTIONS",
		CopyLabel:     "COPY TEXT",
		MagicApplyCTA: "VIRALIZE IMAGE",
		ViewOriginal:  "HOLD TO SEE ORIGINAL",
		WhyItWorks:    "AI INSIGHT",
		BestTime:      "PEAK TIME",
		Audience:      "TARGET",
		Platform:      "PLATFORM",
		Idle:          "GENERATE < 10S",
	},
	Spanish: {
		Copied:        "¡COPIADO!",
		Loading:       []string{"ESCANEANDO...", "CREANDO...", "OPTIMIZANDO..."},
		ApplyingMagic: "MEJORANDO...",
		NoOptions:     "SIN OPCIONES",
		CopyLabel:     "COPIAR",
		MagicApplyCTA: "VIRALIZAR IMAGEN",
		ViewOriginal:  "MANTÉN PARA VER ORIGINAL",
		WhyItWorks:    "INSIGHT IA",
		BestTime:      "HORA PICO",
		Audience:      "AUDIENCIA",
		Platform:      "PLATAFORMA",
		Idle:          "GENERAR < 10S",
	},
	French: {
		Copied:        "COPIÉ !",
		Loading:       []string{"ANALYSE...", "CONSTRUCTION...", "OPTIMISATION..."},
		ApplyingMagic: "AMÉLIORATION...",
		CopyLabel:     "COPIER",
		Platform:      "PLATEFORME",
		Idle:          "GÉNÉRER < 10S",
	},
	German: {
		Copied:        "KOPIERT!",
		Loading:       []string{"SCANNEN...", "ENTWERFEN...", "OPTIMIEREN..."},
		ApplyingMagic: "VERBESSERN...",
		CopyLabel:     "TEXT KOPIEREN",
		Platform:      "PLATTFORM",
		Idle:          "GENERIEREN < 10S",
	},
}

// For returns the strings of a display language. Keys missing from a
// translation fall back to English one by one.
func For(lang string) Messages {
	base := messages[English]
	m, ok := messages[Normalize(lang)]
	if !ok {
		return cloneMessages(base)
	}

	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}

	out := Messages{
		Copied:        pick(m.Copied, base.Copied),
		Loading:       m.Loading,
		ApplyingMagic: pick(m.ApplyingMagic, base.ApplyingMagic),
		NoOptions:     pick(m.NoOptions, base.NoOptions),
		CopyLabel:     pick(m.CopyLabel, base.CopyLabel),
		MagicApplyCTA: pick(m.MagicApplyCTA, base.MagicApplyCTA),
		ViewOriginal:  pick(m.ViewOriginal, base.ViewOriginal),
		WhyItWorks:    pick(m.WhyItWorks, base.WhyItWorks),
		BestTime:      pick(m.BestTime, base.BestTime),
		Audience:      pick(m.Audience, base.Audience),
		Platform:      pick(m.Platform, base.Platform),
		Idle:          pick(m.Idle, base.Idle),
	}
	if len(out.Loading) == 0 {
		out.Loading = base.Loading
	}
	return cloneMessages(out)
}

func cloneMessages(m Messages) Messages {
	m.Loading = append([]string(nil), m.Loading...)
	return m
}
