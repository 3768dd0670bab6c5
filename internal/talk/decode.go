package talk

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyBody indicates a successful status with nothing to play.
	ErrEmptyBody = errors.New("backend returned an empty body")
	// ErrMalformedAudio indicates the JSON envelope did not carry decodable audio.
	ErrMalformedAudio = errors.New("backend returned malformed audio")
)

const maxErrorBodyLen = 2048

// BackendError is a non-2xx backend reply.
type BackendError struct {
	StatusCode int
	Body       string
	Message    string
	RequestID  string
}

func (e *BackendError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("backend error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("backend error: HTTP %d: %s", e.StatusCode, detail)
}

type envelope struct {
	RequestID   string  `json:"request_id"`
	Text        string  `json:"text"`
	AudioBase64 *string `json:"audio_base64"`
	AudioFormat string  `json:"audio_format"`
}

type errorEnvelope struct {
	Error     any    `json:"error"`
	RequestID string `json:"request_id"`
}

// Decode converts a raw backend reply into a playable Response.
//
// The body is a JSON envelope when its first non-space byte is `{`; anything else is
// taken as raw audio in DefaultAudioFormat.
func Decode(raw RawResponse) (Response, error) {
	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		return Response{}, newBackendError(raw)
	}

	trimmed := bytes.TrimSpace(raw.Body)
	if len(trimmed) == 0 {
		return Response{}, ErrEmptyBody
	}

	if trimmed[0] != '{' {
		audio := make([]byte, len(raw.Body))
		copy(audio, raw.Body)
		return Response{
			StatusCode:  raw.StatusCode,
			Audio:       audio,
			AudioFormat: DefaultAudioFormat,
		}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Response{}, fmt.Errorf("%w: decode envelope: %v", ErrMalformedAudio, err)
	}
	if env.AudioBase64 == nil {
		return Response{}, fmt.Errorf("%w: audio_base64 missing", ErrMalformedAudio)
	}

	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*env.AudioBase64))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedAudio, err)
	}
	if len(audio) == 0 {
		return Response{}, fmt.Errorf("%w: audio_base64 is empty", ErrMalformedAudio)
	}

	format := strings.ToLower(strings.TrimSpace(env.AudioFormat))
	if format == "" {
		format = DefaultAudioFormat
	}

	return Response{
		StatusCode:  raw.StatusCode,
		RequestID:   env.RequestID,
		ReplyText:   env.Text,
		Audio:       audio,
		AudioFormat: format,
	}, nil
}

// newBackendError keeps the body for diagnostics and lifts the backend's error envelope when present.
func newBackendError(raw RawResponse) *BackendError {
	body := strings.TrimSpace(string(raw.Body))
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}

	out := &BackendError{StatusCode: raw.StatusCode, Body: body}

	var env errorEnvelope
	if strings.HasPrefix(body, "{") && json.Unmarshal([]byte(body), &env) == nil {
		out.RequestID = env.RequestID
		switch v := env.Error.(type) {
		case string:
			out.Message = v
		case nil:
		default:
			if encoded, err := json.Marshal(v); err == nil {
				out.Message = string(encoded)
			}
		}
	}
	return out
}
