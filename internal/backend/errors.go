package backend

import (
	"errors"
	"fmt"
)

// ErrExhausted matches any ExhaustedError via errors.Is.
var ErrExhausted = errors.New("backend unreachable")

// ExhaustedError reports that every attempt failed at the transport level.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s after %d attempt(s)", ErrExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrExhausted, e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
