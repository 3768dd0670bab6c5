package session

import (
	"context"
	"fmt"

	"github.com/empathyphone/aitalk/internal/fsm"
	"github.com/empathyphone/aitalk/internal/ipc"
)

// Handle serves IPC commands for the owner process.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.response(nil, "status")
	case ipc.CommandVoices:
		resp := c.response(nil, "voices")
		resp.Voices = c.Voices()
		return resp
	case ipc.CommandStart:
		return c.response(c.StartRecording(ctx), "recording")
	case ipc.CommandStop:
		return c.response(c.StopRecording(ctx), "processing")
	case ipc.CommandToggle:
		if c.State() == fsm.StateRecording {
			return c.response(c.StopRecording(ctx), "processing")
		}
		return c.response(c.StartRecording(ctx), "recording")
	case ipc.CommandCancel:
		return c.response(c.Cancel(ctx), "cancelled")
	case ipc.CommandSend:
		return c.response(c.SendText(ctx, req.Text, req.Voice), "processing")
	default:
		return c.response(fmt.Errorf("unknown command: %s", req.Command), "")
	}
}

// response renders the current snapshot around the outcome of one command.
func (c *Controller) response(err error, message string) ipc.Response {
	snap := c.store.Snapshot()
	resp := ipc.Response{
		OK:         err == nil,
		State:      string(snap.Phase),
		Recording:  snap.Recording,
		Processing: snap.Processing,
		Notice:     snap.Notice,
		Reply:      snap.Reply,
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Message = message
	return resp
}
