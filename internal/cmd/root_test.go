package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	// Save original values
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestFlagOverrides(t *testing.T) {
	save := func() (string, string, string, string, int) {
		return flagLogLevel, flagLogProfile, flagWorkspace, flagHost, flagPort
	}
	restore := func(level, profile, ws, host string, port int) {
		flagLogLevel, flagLogProfile, flagWorkspace, flagHost, flagPort = level, profile, ws, host, port
	}
	defer restore(save())

	t.Run("empty flags produce no overrides", func(t *testing.T) {
		restore("", "", "", "", 0)
		assert.Empty(t, flagOverrides())
	})

	t.Run("set flags map to config keys", func(t *testing.T) {
		restore("debug", "CONSOLE", "/tmp/kb", "0.0.0.0", 9000)
		o := flagOverrides()
		assert.Equal(t, "debug", o["logging.level"])
		assert.Equal(t, "CONSOLE", o["logging.profile"])
		assert.Equal(t, "/tmp/kb", o["workspace.dir"])
		assert.Equal(t, "0.0.0.0", o["server.host"])
		assert.Equal(t, 9000, o["server.port"])
	})
}

func TestRootCommandRegistrations(t *testing.T) {
	want := []string{"serve", "doctor", "check", "submit", "sweep", "version", "config"}
	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}
