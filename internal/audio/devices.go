// Package audio adapts PulseAudio and ffmpeg to the capture and playback ports.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const appName = "aitalk"

// ErrPulseUnavailable indicates the Pulse server could not be reached.
var ErrPulseUnavailable = errors.New("connect pulse server")

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPulseUnavailable, err)
	}
	return client, nil
}

// ListDevices returns the Pulse input sources, marking the server default.
func ListDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := newPulseClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var replies pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &replies); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return devicesFromReplies(replies, defaultSource.ID()), nil
}

func devicesFromReplies(replies pulseproto.GetSourceInfoListReply, defaultID string) []Device {
	devices := make([]Device, 0, len(replies))
	for _, source := range replies {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices
}

// problem names why a device cannot record, or returns "" when it can.
func (d Device) problem() string {
	switch {
	case d.Muted:
		return "muted"
	case !d.Available:
		return "unavailable"
	}
	return ""
}

// SelectDevice resolves capture.input and capture.fallback against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList picks the input device. An unusable primary falls back to
// the fallback term, or to the server default when no fallback is configured.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}
	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	primary := findDevice(devices, input)
	if primary == nil {
		if isDefaultTerm(input) {
			return Selection{}, errors.New("default audio source is unavailable")
		}
		return Selection{}, fmt.Errorf("capture.input %q did not match any device", input)
	}

	reason := primary.problem()
	if reason == "" {
		return Selection{Device: *primary}, nil
	}

	chosen := findDevice(devices, fallback)
	if chosen == nil {
		if isDefaultTerm(fallback) {
			return Selection{}, fmt.Errorf("primary input %q is %s and no default source exists", primary.ID, reason)
		}
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
	}
	if problem := chosen.problem(); problem != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", chosen.ID, problem)
	}

	return Selection{
		Device:   *chosen,
		Warning:  fmt.Sprintf("capture.input %q is %s; falling back to %q", primary.ID, reason, chosen.ID),
		Fallback: primary.ID != chosen.ID,
	}, nil
}

// findDevice returns the default device for a default term, otherwise the first match.
func findDevice(devices []Device, term string) *Device {
	for i := range devices {
		if isDefaultTerm(term) && devices[i].Default {
			return &devices[i]
		}
		if !isDefaultTerm(term) && deviceMatches(devices[i], term) {
			return &devices[i]
		}
	}
	return nil
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func isDefaultTerm(term string) bool {
	return term == "" || term == "default"
}

func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

var sourceStates = map[uint32]string{0: "running", 1: "idle", 2: "suspended"}

func sourceStateString(state uint32) string {
	if name, ok := sourceStates[state]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// sourceAvailable reads the active port's availability (0 unknown, 1 no, 2 yes).
// Sources without ports count as available.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
