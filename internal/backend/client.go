// Package backend posts talk requests to the speech/text backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/empathyphone/aitalk/internal/talk"
	"github.com/empathyphone/aitalk/internal/version"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 90 * time.Second
	defaultWriteTimeout   = 60 * time.Second
	defaultRetryDelay     = 300 * time.Millisecond
	defaultMaxAttempts    = 2
	defaultHealthPath     = "/health"

	// RequestIDHeader carries the client-generated correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Config controls endpoint, timeouts, and retry policy.
type Config struct {
	URL            string
	HealthPath     string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RetryDelay     time.Duration
	MaxAttempts    int
	// TextField is the JSON key carrying prompt text ("text" or "prompt").
	TextField string
}

// Client sends one talk request per Send call with bounded retry.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient applies defaults for zero-valued config fields.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if strings.TrimSpace(cfg.HealthPath) == "" {
		cfg.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.TextField) == "" {
		cfg.TextField = "text"
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: newTransport(cfg)},
		logger: logger,
	}
}

// Send posts req and returns the fully read reply. HTTP error statuses are
// returned as responses; only transport failures are retried.
func (c *Client) Send(ctx context.Context, req talk.Request) (talk.RawResponse, error) {
	body, contentType, err := c.encode(req)
	if err != nil {
		return talk.RawResponse{}, err
	}

	clientRequestID := uuid.NewString()
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		raw, err := c.do(ctx, body, contentType, clientRequestID)
		if err == nil {
			raw.Attempts = attempt
			raw.Latency = time.Since(started)
			c.logInfo("backend reply",
				"client_request_id", clientRequestID,
				"kind", req.Kind(),
				"attempt", attempt,
				"status", raw.StatusCode,
				"bytes", len(raw.Body),
				"latency_ms", raw.Latency.Milliseconds(),
			)
			return raw, nil
		}

		lastErr = err
		c.logWarn("backend attempt failed",
			"client_request_id", clientRequestID,
			"kind", req.Kind(),
			"attempt", attempt,
			"error", err.Error(),
		)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return talk.RawResponse{}, &ExhaustedError{Attempts: attempt, Cause: ctxErr}
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
			return talk.RawResponse{}, &ExhaustedError{Attempts: attempt, Cause: err}
		}
	}

	return talk.RawResponse{}, &ExhaustedError{Attempts: c.cfg.MaxAttempts, Cause: lastErr}
}

// Health calls GET <scheme://host><health_path> and expects a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	target, err := c.HealthURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend health: HTTP %d", resp.StatusCode)
	}
	return nil
}

// HealthURL resolves the health endpoint against the talk URL's origin.
func (c *Client) HealthURL() (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.cfg.URL))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("backend url %q must include scheme and host", c.cfg.URL)
	}
	path := c.cfg.HealthPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}).String(), nil
}

func (c *Client) do(ctx context.Context, body []byte, contentType string, clientRequestID string) (talk.RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return talk.RawResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(RequestIDHeader, clientRequestID)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return talk.RawResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return talk.RawResponse{}, fmt.Errorf("read response body: %w", err)
	}

	return talk.RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// encode renders req once so every attempt sends identical bytes.
func (c *Client) encode(req talk.Request) ([]byte, string, error) {
	switch r := req.(type) {
	case talk.AudioUpload:
		return encodeAudio(r)
	case talk.TextPrompt:
		return c.encodeText(r)
	case nil:
		return nil, "", errors.New("nil talk request")
	default:
		return nil, "", fmt.Errorf("unsupported talk request %T", req)
	}
}

func encodeAudio(r talk.AudioUpload) ([]byte, string, error) {
	data, err := os.ReadFile(r.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("read recording: %w", err)
	}

	mimeType := strings.TrimSpace(r.MimeType)
	if mimeType == "" {
		mimeType = "audio/mp4"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filepath.Base(r.FilePath)))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) encodeText(r talk.TextPrompt) ([]byte, string, error) {
	payload := map[string]string{
		c.cfg.TextField: r.Text,
		"voice":         r.Voice,
	}
	if lang := strings.TrimSpace(r.Language); lang != "" {
		payload["language"] = lang
	}
	if prompt := strings.TrimSpace(r.SystemPrompt); prompt != "" {
		payload["system_prompt"] = prompt
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode text prompt: %w", err)
	}
	return data, "application/json; charset=utf-8", nil
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// deadlineConn bounds each socket read and write independently.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.read))
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.write))
	}
	return c.Conn.Write(b)
}
