package version

import (
	"fmt"
	"runtime"
)

const Name = "bliss-boot"

var (
	version = "v2.1.0"
	// gitCommit is set at link time with -X
	gitCommit = "none"
)

func GetVersion() string {
	return version
}

// BuildInfo holds what was baked into the binary at build time.
type BuildInfo struct {
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (commit %s, %s)", Name, b.Version, b.GitCommit, b.GoVersion)
}

func Get() BuildInfo {
	return BuildInfo{
		Version:   GetVersion(),
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
}
