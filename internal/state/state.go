// Package state publishes the observable talk session snapshot.
package state

import (
	"sync"
	"time"

	"github.com/empathyphone/aitalk/internal/fsm"
)

// NoticeKind classifies a user-visible notice.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is the last user-facing message raised by the session.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Reply summarizes the last decoded backend reply.
type Reply struct {
	RequestID   string    `json:"request_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	AudioFormat string    `json:"audio_format"`
	AudioBytes  int       `json:"audio_bytes"`
	At          time.Time `json:"at"`
}

// Snapshot is one immutable view of session state.
type Snapshot struct {
	Recording  bool      `json:"recording"`
	Processing bool      `json:"processing"`
	Phase      fsm.State `json:"phase"`
	Notice     *Notice   `json:"notice,omitempty"`
	Reply      *Reply    `json:"reply,omitempty"`
	Version    uint64    `json:"version"`
}

// Store holds the current snapshot. It has one writer and any number of readers.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	nextSub int
	subs    map[int]chan Snapshot
}

// NewStore returns a store positioned at an idle snapshot.
func NewStore() *Store {
	return &Store{
		current: Snapshot{Phase: fsm.StateIdle},
		subs:    make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies mutate to a copy of the current snapshot, bumps Version, and
// notifies subscribers. It returns the published snapshot.
func (s *Store) Update(mutate func(*Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	mutate(&next)
	next.Version = s.current.Version + 1
	s.current = next

	for _, ch := range s.subs {
		publish(ch, next)
	}
	return next
}

// Subscribe returns a channel that always holds the latest unseen snapshot.
// Slow readers skip intermediate versions. Call cancel to release the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- s.current
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publish replaces any pending value with snap. Callers hold s.mu.
func publish(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
