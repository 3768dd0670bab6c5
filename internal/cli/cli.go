// Package cli parses aitalk's command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandToggle  Command = "toggle"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandSend    Command = "send"
	CommandStatus  Command = "status"
	CommandVoices  Command = "voices"
	CommandDevices Command = "devices"
	CommandHealth  Command = "health"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commands lists every command in help order.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandServe, "Run the owner process (IPC socket and optional HTTP API)"},
	{CommandToggle, "Start recording, or stop and send when already recording"},
	{CommandStart, "Start recording"},
	{CommandStop, "Stop recording and send the audio"},
	{CommandCancel, "Discard the active recording without sending"},
	{CommandSend, "Send text and play the spoken reply"},
	{CommandStatus, "Print current state"},
	{CommandVoices, "List configured voices"},
	{CommandDevices, "List available input devices"},
	{CommandHealth, "Check the backend health endpoint"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

func known(cmd Command) bool {
	for _, c := range commands {
		if c.name == cmd {
			return true
		}
	}
	return false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Voice      string
	// Text is the prompt for send, joined from the remaining arguments.
	Text     string
	ShowHelp bool
}

// Parse reads global flags up to the first command word. Only send accepts
// trailing arguments; a leading "--" after send keeps flag-like words as text.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return parseCommand(parsed, arg, args[i+1:])
		}

		name, value, inline := strings.Cut(arg, "=")
		takeValue := func() (string, bool) {
			if inline {
				return value, true
			}
			if i+1 >= len(args) {
				return "", false
			}
			i++
			return args[i], true
		}

		switch name {
		case "-h", "--help":
			parsed.Command, parsed.ShowHelp = CommandHelp, true
		case "--version":
			parsed.Command, parsed.ShowHelp = CommandVersion, false
		case "--config":
			path, ok := takeValue()
			if !ok || path == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = path
		case "--voice":
			voice, _ := takeValue()
			if voice = strings.TrimSpace(voice); voice == "" {
				return Parsed{}, errors.New("--voice requires a name")
			}
			parsed.Voice = voice
		default:
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return parsed, nil
}

func parseCommand(parsed Parsed, word string, rest []string) (Parsed, error) {
	cmd := Command(word)
	if !known(cmd) {
		return Parsed{}, fmt.Errorf("unknown command: %s", word)
	}
	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp

	if cmd == CommandSend {
		if len(rest) > 0 && rest[0] == "--" {
			rest = rest[1:]
		}
		parsed.Text = strings.TrimSpace(strings.Join(rest, " "))
		return parsed, nil
	}
	if len(rest) > 0 {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", word)
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] [--voice NAME] <command> [text...]\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/aitalk/config.jsonc)
  --voice NAME    Voice for send (default: first configured voice)
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}
