package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrNoOwner indicates no process is listening on the owner socket.
var ErrNoOwner = errors.New("no running aitalk owner")

// CommandError is a command the owner received and rejected.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("command %q rejected", e.Command)
}

// Send performs one request/response exchange with the owner at path. timeout
// covers dialing and the whole exchange.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	return exchange(conn, req)
}

func exchange(conn net.Conn, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Forward sends req to the owner at path. It returns ErrNoOwner when nothing is
// listening and a *CommandError when the owner rejected the command.
func Forward(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	resp, err := Send(ctx, path, req, timeout)
	switch {
	case noListener(err):
		return Response{}, ErrNoOwner
	case err != nil:
		return Response{}, fmt.Errorf("forward command %q: %w", req.Command, err)
	case !resp.OK:
		return resp, &CommandError{Command: req.Command, Message: resp.Error}
	}
	return resp, nil
}

// Ping reports whether a responsive owner is listening on path. A socket that
// accepts but never answers yields an error rather than false.
func Ping(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case noListener(err):
		return false, nil
	}
	return false, fmt.Errorf("ping socket: %w", err)
}

// noListener matches a missing socket file or one nobody accepts on.
func noListener(err error) bool {
	return err != nil && (errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED))
}
