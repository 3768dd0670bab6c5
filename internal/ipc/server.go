package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	defaultReadTimeout = 2 * time.Second
	defaultMaxRequest  = 64 << 10
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers one JSON-line request per connection.
type Server struct {
	Handler Handler
	Logger  *slog.Logger

	// ReadTimeout bounds how long a client may take to send its request line.
	ReadTimeout time.Duration
	// MaxRequestBytes caps the request line, newline included.
	MaxRequestBytes int
}

// Serve runs a Server with default limits.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return (&Server{Handler: handler}).Serve(ctx, listener)
}

// Serve accepts clients until ctx ends or listener closes. In-flight
// connections finish before it returns.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var conns sync.WaitGroup
	defer conns.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	req, err := s.readRequest(conn)
	var resp Response
	if err != nil {
		resp = Response{Error: err.Error()}
		s.logger().Debug("ipc request rejected", "error", err)
	} else {
		resp = s.Handler.Handle(ctx, req)
	}

	// The handler may outlive the read deadline.
	_ = conn.SetDeadline(time.Time{})
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger().Debug("ipc response write failed", "command", req.Command, "error", err)
	}
}

func (s *Server) readRequest(conn net.Conn) (Request, error) {
	timeout := s.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	limit := s.MaxRequestBytes
	if limit <= 0 {
		limit = defaultMaxRequest
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	reader := bufio.NewReader(io.LimitReader(conn, int64(limit)))
	line, err := reader.ReadBytes('\n')
	switch {
	case errors.Is(err, io.EOF) && len(line) >= limit:
		return Request{}, fmt.Errorf("read request: exceeds %d bytes", limit)
	case err != nil:
		return Request{}, fmt.Errorf("read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
