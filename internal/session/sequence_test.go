package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/empathyphone/aitalk/internal/capture"
	"github.com/empathyphone/aitalk/internal/fsm"
	"github.com/empathyphone/aitalk/internal/state"
	"github.com/stretchr/testify/require"
)

// memoryCapture mirrors capture.Controller semantics without touching the filesystem.
type memoryCapture struct {
	mu     sync.Mutex
	active bool
}

func (m *memoryCapture) Start(context.Context) (capture.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return capture.Session{}, capture.ErrAlreadyRecording
	}
	m.active = true
	return capture.Session{ID: "s", MimeType: "audio/mp4", StartedAt: time.Now(), State: capture.SessionRecording}, nil
}

func (m *memoryCapture) Stop() (capture.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return capture.Session{}, capture.ErrNotRecording
	}
	m.active = false
	return capture.Session{ID: "s", FilePath: "/dev/null", MimeType: "audio/mp4", State: capture.SessionStopped}, nil
}

func (m *memoryCapture) Discard(capture.Session) error { return nil }

func (m *memoryCapture) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type op string

const (
	opStart op = "start"
	opStop  op = "stop"
	opSend  op = "send"
)

func sequences(maxLen int) [][]op {
	all := [][]op{{}}
	frontier := [][]op{{}}
	for n := 1; n <= maxLen; n++ {
		next := make([][]op, 0, len(frontier)*3)
		for _, seq := range frontier {
			for _, o := range []op{opStart, opStop, opSend} {
				grown := append(append([]op(nil), seq...), o)
				next = append(next, grown)
			}
		}
		all = append(all, next...)
		frontier = next
	}
	return all
}

func TestSequencesNeverLeaveProcessingSet(t *testing.T) {
	seqs := sequences(5)
	require.Len(t, seqs, 1+3+9+27+81+243)

	for _, seq := range seqs {
		name := "empty"
		if len(seq) > 0 {
			parts := make([]string, len(seq))
			for i, o := range seq {
				parts[i] = string(o)
			}
			name = strings.Join(parts, "-")
		}

		t.Run(name, func(t *testing.T) {
			sender := &fakeSender{}
			mem := &memoryCapture{}
			ctrl := NewController(nil, mem, sender, &fakePlayer{}, nil, state.NewStore(), Options{Voices: []string{"Kim"}})
			startWorker(t, ctrl)

			expectedSends := int32(0)
			for _, o := range seq {
				var err error
				before := ctrl.State()
				switch o {
				case opStart:
					err = ctrl.StartRecording(context.Background())
				case opStop:
					err = ctrl.StopRecording(context.Background())
				case opSend:
					err = ctrl.SendText(context.Background(), "Hello", "Kim")
				}
				if err == nil && (o == opSend || o == opStop) {
					expectedSends++
				}
				ctrl.Wait()

				snap := ctrl.Snapshot()
				require.False(t, snap.Processing, "processing after %s from %s", o, before)
				require.Equal(t, snap.Phase == fsm.StateRecording, snap.Recording)
				require.Equal(t, mem.Recording(), snap.Recording)
				require.NotEqual(t, fsm.StateError, snap.Phase)
			}

			require.Equal(t, expectedSends, sender.hits.Load())
		})
	}
}
