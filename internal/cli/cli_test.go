package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/aitalk.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/aitalk.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseSendJoinsText(t *testing.T) {
	parsed, err := Parse([]string{"--voice", "Kim", "send", "Hello", "there"})
	require.NoError(t, err)
	require.Equal(t, CommandSend, parsed.Command)
	require.Equal(t, "Kim", parsed.Voice)
	require.Equal(t, "Hello there", parsed.Text)
}

func TestParseSendAfterDoubleDashKeepsFlagsAsText(t *testing.T) {
	parsed, err := Parse([]string{"send", "--", "--help", "me"})
	require.NoError(t, err)
	require.Equal(t, "--help me", parsed.Text)
	require.False(t, parsed.ShowHelp)
}

func TestParseSendWithoutTextLeavesBlank(t *testing.T) {
	parsed, err := Parse([]string{"send"})
	require.NoError(t, err)
	require.Equal(t, CommandSend, parsed.Command)
	require.Empty(t, parsed.Text)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "missing voice", args: []string{"--voice"}, wantErr: "requires a name"},
		{name: "blank voice", args: []string{"--voice", " ", "send", "hi"}, wantErr: "requires a name"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"listen"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "serve", args: []string{"serve"}, wantCmd: CommandServe},
		{name: "start", args: []string{"start"}, wantCmd: CommandStart},
		{name: "voices", args: []string{"voices"}, wantCmd: CommandVoices},
		{name: "health", args: []string{"health"}, wantCmd: CommandHealth},
		{name: "stop with config", args: []string{"--config", "/tmp/cfg", "stop"}, wantCmd: CommandStop, wantPath: "/tmp/cfg"},
		{name: "cancel", args: []string{"cancel"}, wantCmd: CommandCancel},
		{name: "inline config", args: []string{"--config=/tmp/cfg", "status"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "inline empty config", args: []string{"--config=", "status"}, wantErr: "requires a path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestParseInlineVoice(t *testing.T) {
	parsed, err := Parse([]string{"--voice=Adam", "send", "Hi"})
	require.NoError(t, err)
	require.Equal(t, "Adam", parsed.Voice)
	require.Equal(t, "Hi", parsed.Text)
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("aitalk")
	for _, want := range []string{"serve", "toggle", "send", "voices", "health", "doctor", "--config PATH", "--voice NAME"} {
		require.Contains(t, text, want)
	}
	for _, c := range commands {
		require.Contains(t, text, "  "+string(c.name)+" ")
	}
}
