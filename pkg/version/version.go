package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const Name = "PageCompose"

var (
	// Injected with -ldflags "-X .../pkg/version.Version=..." at release time.
	Version   = "dev"
	CommitSHA = ""
	BuildDate = ""
)

// commit falls back to the VCS revision go build embeds when no SHA was
// injected.
func commit() string {
	if CommitSHA != "" {
		return CommitSHA
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

func GetVersionInfo() string {
	return Name + " " + Version
}

func GetDetailedVersionInfo() string {
	date := BuildDate
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s\nVersion:  %s\nCommit:   %s\nBuilt:    %s\nGo:       %s %s/%s\n",
		Name, Version, commit(), date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
