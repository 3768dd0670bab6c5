package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeGerman, resolveLocale("de_DE.UTF-8"))
	require.Equal(t, localeSpanish, resolveLocale("es"))
	require.Equal(t, localeEnglish, resolveLocale("C.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Recording…", msg.recording)
	require.Equal(t, "Thinking…", msg.processing)
	require.Equal(t, "Talk request failed", msg.errorText)
}

func TestIndicatorMessagesFromEnvPrecedence(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "de_DE.UTF-8")
	t.Setenv("LANG", "es_ES.UTF-8")
	require.Equal(t, "Aufnahme…", indicatorMessagesFromEnv().recording)

	t.Setenv("LC_ALL", "es_MX.UTF-8")
	require.Equal(t, "Grabando…", indicatorMessagesFromEnv().recording)

	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
	require.Equal(t, "Recording…", indicatorMessagesFromEnv().recording)
}
