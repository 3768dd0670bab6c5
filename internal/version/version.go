// Package version carries build metadata injected with -ldflags. Builds without
// ldflags fall back to the VCS stamp recorded by the Go toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	commit, date := buildStamp()
	return fmt.Sprintf("aitalk %s (commit=%s, date=%s, go=%s)", Version, commit, date, runtime.Version())
}

// UserAgent is sent on backend requests.
func UserAgent() string {
	return "aitalk/" + Version
}

func buildStamp() (commit, date string) {
	commit, date = Commit, Date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	return fromSettings(info.Settings, commit, date)
}

// fromSettings fills unset ldflags values from vcs build settings.
func fromSettings(settings []debug.BuildSetting, commit, date string) (string, string) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && commit == "none" && s.Value != "":
			commit = s.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case s.Key == "vcs.time" && date == "unknown" && s.Value != "":
			date = s.Value
		}
	}
	return commit, date
}
