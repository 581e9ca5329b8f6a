// Package version reports what build is running. Release builds stamp
// the variables with -ldflags "-X"; other builds fall back to the VCS
// data the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(bi)
	}
}

// fillFromBuildInfo replaces the unstamped defaults only.
func fillFromBuildInfo(bi *debug.BuildInfo) {
	vcs := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		vcs[s.Key] = s.Value
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	if rev := vcs["vcs.revision"]; Commit == "unknown" && rev != "" {
		Commit = rev
		if vcs["vcs.modified"] == "true" {
			Commit += "+dirty"
		}
	}
	if t := vcs["vcs.time"]; Date == "unknown" && t != "" {
		Date = t
	}
}

// Info is the one-line banner printed by "validade version".
func Info() string {
	return fmt.Sprintf("validade %s (commit: %s, built: %s, %s/%s)",
		Version, abbrev(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

func abbrev(rev string) string { return rev[:min(len(rev), 7)] }

// UserAgent identifies the bot to remote services ("validade/1.0.0").
func UserAgent() string {
	return "validade/" + Version
}
