package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notifySignature    = "susssasa{sv}i"
	defaultHyprColor   = "rgb(89b4fa)"
	urgencyNormal      = 1
	urgencyCritical    = 2
	defaultDesktopName = "aitalk"
)

// desktopNote is one freedesktop Notify call.
type desktopNote struct {
	appName   string
	replaceID uint32
	summary   string
	urgency   byte
	timeoutMS int
}

// args renders the busctl argument list. The hints map carries only urgency.
func (d desktopNote) args() []string {
	appName := strings.TrimSpace(d.appName)
	if appName == "" {
		appName = defaultDesktopName
	}
	urgency := d.urgency
	if urgency == 0 {
		urgency = urgencyNormal
	}
	return []string{
		"--user", "call", notificationsDest, notificationsPath, notificationsDest,
		"Notify", notifySignature,
		appName,
		strconv.FormatUint(uint64(d.replaceID), 10),
		"", // icon
		d.summary,
		"", // body
		"0",
		"1", "urgency", "y", strconv.Itoa(int(urgency)),
		strconv.Itoa(d.timeoutMS),
	}
}

// sendDesktop posts note over the session bus and returns the server-assigned ID.
func sendDesktop(ctx context.Context, note desktopNote) (uint32, error) {
	out, err := runTool(ctx, "busctl", note.args()...)
	if err != nil {
		return 0, err
	}

	// busctl prints the reply as "u <id>".
	fields := strings.Fields(out)
	if len(fields) != 2 || fields[0] != "u" {
		return 0, fmt.Errorf("busctl Notify: unexpected reply %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("busctl Notify: parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}

func closeDesktop(ctx context.Context, id uint32) error {
	_, err := runTool(ctx, "busctl",
		"--user", "call", notificationsDest, notificationsPath, notificationsDest,
		"CloseNotification", "u", strconv.FormatUint(uint64(id), 10),
	)
	return err
}

// sendHypr shows text through Hyprland's built-in notification overlay.
func sendHypr(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = defaultHyprColor
	}
	_, err := runTool(ctx, "hyprctl", "--quiet", "dispatch", "notify",
		strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, text)
	return err
}

func clearHypr(ctx context.Context) error {
	_, err := runTool(ctx, "hyprctl", "--quiet", "dispatch", "dismissnotify")
	return err
}

// runTool runs name with args and returns trimmed combined output.
func runTool(ctx context.Context, name string, args ...string) (string, error) {
	raw, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	out := strings.TrimSpace(string(raw))
	if err == nil {
		return out, nil
	}
	verb := name
	if len(args) > 0 {
		verb = name + " " + commandVerb(args)
	}
	if out == "" {
		return "", fmt.Errorf("%s: %w", verb, err)
	}
	return "", fmt.Errorf("%s: %w (%s)", verb, err, out)
}

// commandVerb picks the method or dispatcher name out of a tool argument list for error text.
func commandVerb(args []string) string {
	for i, arg := range args {
		switch arg {
		case "Notify", "CloseNotification":
			return arg
		case "dispatch":
			if i+1 < len(args) {
				return args[i+1]
			}
		}
	}
	return args[0]
}
