// Package fsm holds the talk session state machine as a pure transition table.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateUploading State = "uploading"
	StateError     State = "error"
)

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
	EventSend  Event = "send"
	EventDone  Event = "done"
	EventFail  Event = "fail"
	EventReset Event = "reset"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

// table lists the allowed edges. EventFail is accepted everywhere and is not listed.
var table = map[State]map[Event]State{
	StateIdle:      {EventStart: StateRecording, EventSend: StateUploading},
	StateRecording: {EventStop: StateUploading},
	StateUploading: {EventDone: StateIdle},
	StateError:     {EventReset: StateIdle},
}

// Transition returns the next state for event, or an error when the event is not
// allowed in current. The returned state equals current on error.
func Transition(current State, event Event) (State, error) {
	edges, known := table[current]
	if !known && event != EventFail {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}
	if next, ok := edges[event]; ok {
		return next, nil
	}
	return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
}

// Processing reports whether a network round-trip is in flight in state.
func (s State) Processing() bool {
	return s == StateUploading
}
