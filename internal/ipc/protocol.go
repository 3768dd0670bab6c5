package ipc

import "github.com/empathyphone/aitalk/internal/state"

// Commands accepted by the owner process.
const (
	CommandStatus = "status"
	CommandVoices = "voices"
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandToggle = "toggle"
	CommandSend   = "send"
	CommandCancel = "cancel"
)

type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

type Response struct {
	OK         bool          `json:"ok"`
	State      string        `json:"state,omitempty"`
	Recording  bool          `json:"recording"`
	Processing bool          `json:"processing"`
	Voices     []string      `json:"voices,omitempty"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	Notice     *state.Notice `json:"notice,omitempty"`
	Reply      *state.Reply  `json:"reply,omitempty"`
}
