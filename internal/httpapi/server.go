// Package httpapi exposes the session controller over a local HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/empathyphone/aitalk/internal/capture"
	"github.com/empathyphone/aitalk/internal/session"
	"github.com/empathyphone/aitalk/internal/state"
)

// Controller is the session surface the API drives.
type Controller interface {
	Snapshot() state.Snapshot
	Store() *state.Store
	Voices() []string
	SendText(ctx context.Context, text string, voice string) error
	Toggle(ctx context.Context, start bool) error
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// BackendHealth, when set, is checked by GET /health.
	BackendHealth func(context.Context) error
	// KeepAlive is the SSE comment interval. Zero uses 15s.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

type api struct {
	ctl  Controller
	opts Options
}

// NewRouter builds the chi router for the talk API.
func NewRouter(ctl Controller, opts Options) http.Handler {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	a := &api{ctl: ctl, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Get("/voices", a.voices)
	r.Get("/state", a.state)
	r.Get("/events", a.events)
	r.Post("/text", a.sendText)
	r.Post("/record", a.record)
	return r
}

// Serve runs the API on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", addr, err)
	}
	return serveListener(ctx, listener, handler, logger)
}

func serveListener(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	if logger != nil {
		logger.Info("http api listening", "addr", listener.Addr().String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type textRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type recordRequest struct {
	Start *bool `json:"start"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if a.opts.BackendHealth != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := a.opts.BackendHealth(ctx); err != nil {
			body["status"] = "degraded"
			body["backend"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["backend"] = "ok"
		}
	}
	writeJSON(w, status, body)
}

func (a *api) voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"voices": a.ctl.Voices()})
}

func (a *api) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.ctl.Snapshot())
}

func (a *api) sendText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := a.ctl.SendText(r.Context(), req.Text, req.Voice); err != nil {
		a.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, a.ctl.Snapshot())
}

func (a *api) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Start == nil {
		a.writeError(w, r, http.StatusBadRequest, errors.New(`"start" is required`))
		return
	}
	if err := a.ctl.Toggle(r.Context(), *req.Start); err != nil {
		a.writeError(w, r, statusFor(err), err)
		return
	}
	status := http.StatusOK
	if !*req.Start {
		status = http.StatusAccepted
	}
	writeJSON(w, status, a.ctl.Snapshot())
}

// events streams state snapshots as server-sent events. Slow readers see coalesced snapshots.
func (a *api) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	updates, cancel := a.ctl.Store().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(a.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", snap.Version, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.opts.Logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.opts.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency_ms", time.Since(started).Milliseconds(),
			"client_request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if a.opts.Logger != nil && status >= http.StatusInternalServerError {
		a.opts.Logger.Warn("http request failed", "path", r.URL.Path, "status", status, "error", err.Error())
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBlankInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, capture.ErrAlreadyRecording),
		errors.Is(err, capture.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, capture.ErrNoData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
