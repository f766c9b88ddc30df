package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortRevision(t *testing.T) {
	tests := []struct {
		rev   string
		dirty bool
		want  string
	}{
		{"0123456789abcdef", false, "0123456"},
		{"0123456789abcdef", true, "0123456-dirty"},
		{"abc", false, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortRevision(tt.rev, tt.dirty))
	}
}

func TestFromBuildInfo(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "", ""
	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-03-04T10:00:00Z"},
		},
	}, true)
	assert.Equal(t, "dev-20260304", Version)
	assert.Equal(t, "fedcba9-dirty", Commit)

	Version, Commit = "", ""
	fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}}, true)
	assert.Equal(t, "v0.3.0", Version)
	assert.Empty(t, Commit)

	Version, Commit = "v1", "set"
	fromBuildInfo(nil, false)
	assert.Equal(t, "v1", Version)
	assert.Equal(t, "set", Commit)
}

func TestFull(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v0.3.0", "abc1234"
	assert.Equal(t, "v0.3.0 (commit: abc1234)", Full())
	assert.Equal(t, "v0.3.0", Get().Version)
	assert.NotEmpty(t, Get().GoVersion)
}
