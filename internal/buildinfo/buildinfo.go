// Package buildinfo reports version and VCS provenance for the running
// binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time via -ldflags "-X .../buildinfo.Version=X".
var Version string

func settingOrDefault(bi *debug.BuildInfo, key, def string) string {
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return def
}

// String renders a one-line version banner for CLI --version output.
func String() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "laserharp - version unknown"
	}

	commit := settingOrDefault(bi, "vcs.revision", "unknown")
	dirty := settingOrDefault(bi, "vcs.modified", "false")
	if dirty == "true" {
		commit += "-dirty"
	}

	version := Version
	if version == "" {
		version = "dev"
	}

	return fmt.Sprintf("laserharp %s (revision %s)", version, commit)
}
