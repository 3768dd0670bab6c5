package session

import (
	"context"
	"testing"

	"github.com/empathyphone/aitalk/internal/ipc"
	"github.com/empathyphone/aitalk/internal/state"
	"github.com/stretchr/testify/require"
)

func TestHandleStatusAndVoices(t *testing.T) {
	h := newHarness(t, nil, Options{Voices: []string{"Kim", "Adam"}})

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, "idle", status.State)
	require.False(t, status.Recording)
	require.False(t, status.Processing)

	voices := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandVoices})
	require.True(t, voices.OK)
	require.Equal(t, []string{"Kim", "Adam"}, voices.Voices)
}

func TestHandleToggleRecordsThenUploads(t *testing.T) {
	h := newHarness(t, nil, Options{})

	started := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggle})
	require.True(t, started.OK, started.Error)
	require.Equal(t, "recording", started.Message)
	require.True(t, started.Recording)

	stopped := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggle})
	require.True(t, stopped.OK, stopped.Error)
	require.Equal(t, "processing", stopped.Message)
	h.ctrl.Wait()

	requireIdle(t, h.ctrl)
	require.Equal(t, int32(1), h.sender.hits.Load())

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.NotNil(t, status.Reply)
	require.Equal(t, "Hi!", status.Reply.Text)
}

func TestHandleSendCarriesTextAndVoice(t *testing.T) {
	h := newHarness(t, nil, Options{})

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandSend, Text: "Hello", Voice: "Adam"})
	require.True(t, resp.OK, resp.Error)
	h.ctrl.Wait()

	require.Equal(t, int32(1), h.sender.hits.Load())
	require.Equal(t, 1, h.player.count())
}

func TestHandleRejectsBlankSendAndStopWhenIdle(t *testing.T) {
	h := newHarness(t, nil, Options{})

	blank := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandSend, Text: "  ", Voice: "Kim"})
	require.False(t, blank.OK)
	require.Equal(t, ErrBlankInput.Error(), blank.Error)
	require.Empty(t, blank.Message)

	stop := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stop.OK)
	require.Contains(t, stop.Error, "state is idle")
	require.Zero(t, h.sender.hits.Load())
}

func TestHandleCancelDiscardsRecording(t *testing.T) {
	h := newHarness(t, nil, Options{})

	require.True(t, h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStart}).OK)
	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, "cancelled", resp.Message)
	require.NotNil(t, resp.Notice)
	require.Equal(t, state.NoticeError, resp.Notice.Kind)
	require.Equal(t, NoticeCancelled, resp.Notice.Message)
	require.Zero(t, h.sender.hits.Load())
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newHarness(t, nil, Options{})

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: "listen"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command: listen")
	require.Equal(t, "idle", resp.State)
}
