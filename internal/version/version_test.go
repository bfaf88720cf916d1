package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func stubVars(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })
}

func TestLdflagsWin(t *testing.T) {
	stubVars(t, "v1.2.0", "0123456789abcdef", "2026-01-02T03:04:05Z")
	stubBuildInfo(t, nil)

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), GetBuildInfo().BuildTime)
	assert.Equal(t, "unknown", EsbuildVersion())
}

func TestVCSFallback(t *testing.T) {
	stubVars(t, "dev", "unknown", "unknown")
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.modified", Value: "true"},
		},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.9.1"},
			{Path: "github.com/evanw/esbuild", Version: "v0.25.5"},
		},
	})

	assert.Equal(t, "dev-fedcba9", GetVersion())
	assert.Equal(t, "fedcba9876543210", GetGitCommit())
	assert.Equal(t, "dev-fedcba9", GetShortVersion())
	assert.Equal(t, "v0.25.5", EsbuildVersion())
	assert.True(t, IsDirty())

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: dev-fedcba9\n"))
	assert.Contains(t, detailed, "esbuild: v0.25.5")
	assert.NotContains(t, detailed, "Built:")
}

func TestEsbuildReplace(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Deps: []*debug.Module{{
			Path:    "github.com/evanw/esbuild",
			Version: "v0.25.5",
			Replace: &debug.Module{Path: "example.test/esbuild", Version: "v0.25.6"},
		}},
	})
	assert.Equal(t, "v0.25.6", EsbuildVersion())
}

func TestParseISOTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"2026-03-04T05:06:07Z", false},
		{"2026-03-04T05:06:07", false},
		{"2026-03-04 05:06:07", false},
		{"yesterday", true},
		{"unknown", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.zero, parseISOTime(tt.in).IsZero())
		})
	}
}
