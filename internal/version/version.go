// Package version reports kiln's build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// esbuildModule is the module path whose version is reported alongside kiln's.
const esbuildModule = "github.com/evanw/esbuild"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Esbuild   string    `json:"esbuild"`
	Platform  string    `json:"platform"`
}

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseISOTime(BuildTime),
		GoVersion: runtime.Version(),
		Esbuild:   EsbuildVersion(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the application version
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := readBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
		if rev := setting(info, "vcs.revision"); len(rev) >= 7 {
			return "dev-" + rev[:7]
		}
	}

	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := readBuildInfo(); ok {
		if rev := setting(info, "vcs.revision"); rev != "" {
			return rev
		}
	}
	return "unknown"
}

// EsbuildVersion returns the version of the linked esbuild module, or
// "unknown" when the binary carries no module information.
func EsbuildVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path != esbuildModule {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "unknown"
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 && !strings.HasPrefix(version, "dev-") {
		if version != "dev" {
			return fmt.Sprintf("%s (%s)", version, commit[:7])
		}
		return "dev-" + commit[:7]
	}

	return version
}

// GetDetailedVersion returns one "Key: value" line per known build fact.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		parts = append(parts, "Commit: "+info.GitCommit)
	}
	if !info.BuildTime.IsZero() {
		parts = append(parts, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts,
		"Go: "+info.GoVersion,
		"esbuild: "+info.Esbuild,
		"Platform: "+info.Platform,
	)

	return strings.Join(parts, "\n")
}

// IsDirty reports whether the working tree was modified when built.
func IsDirty() bool {
	if info, ok := readBuildInfo(); ok {
		return setting(info, "vcs.modified") == "true"
	}
	return false
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// parseISOTime parses an ISO 8601 time string, returns zero time on error
func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}

	return time.Time{}
}
