// Package talk defines the request/response values exchanged with the talk backend.
package talk

import "time"

// DefaultAudioFormat is assumed when the backend does not name the reply encoding.
const DefaultAudioFormat = "mp3"

// Request is one talk round-trip input. It is either an AudioUpload or a TextPrompt.
type Request interface {
	isRequest()
	// Kind names the request variant for logs.
	Kind() string
}

// AudioUpload sends a finished recording file.
type AudioUpload struct {
	FilePath string
	MimeType string
}

func (AudioUpload) isRequest() {}

func (AudioUpload) Kind() string { return "audio" }

// TextPrompt sends typed text with the voice that should speak the reply.
type TextPrompt struct {
	Text         string
	Voice        string
	Language     string
	SystemPrompt string
}

func (TextPrompt) isRequest() {}

func (TextPrompt) Kind() string { return "text" }

// RawResponse is the fully read HTTP reply before decoding.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	Latency     time.Duration
}

// Response is a decoded backend reply ready for playback.
type Response struct {
	StatusCode  int
	RequestID   string
	ReplyText   string
	Audio       []byte
	AudioFormat string
}
