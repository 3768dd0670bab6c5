package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeGerman  locale = "de"
	localeSpanish locale = "es"
)

// messages are the fixed indicator texts. Notice texts from the session are shown as-is.
type messages struct {
	recording  string
	processing string
	errorText  string
}

var catalog = map[locale]messages{
	localeEnglish: {recording: "Recording…", processing: "Thinking…", errorText: "Talk request failed"},
	localeGerman:  {recording: "Aufnahme…", processing: "Denke nach…", errorText: "Anfrage fehlgeschlagen"},
	localeSpanish: {recording: "Grabando…", processing: "Pensando…", errorText: "La solicitud falló"},
}

// indicatorMessagesFromEnv follows LC_ALL, then LC_MESSAGES, then LANG.
func indicatorMessagesFromEnv() messages {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return indicatorMessages(resolveLocale(v))
		}
	}
	return indicatorMessages(localeEnglish)
}

// resolveLocale maps a POSIX locale name such as de_DE.UTF-8 to a shipped catalog.
func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	lang, _, _ := strings.Cut(raw, "_")
	lang, _, _ = strings.Cut(lang, ".")
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	if m, ok := catalog[tag]; ok {
		return m
	}
	return catalog[localeEnglish]
}
