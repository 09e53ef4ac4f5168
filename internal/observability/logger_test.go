package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	tests := []struct {
		name    string
		level   string
		profile string
		wantErr bool
	}{
		{"structured info", "info", ProfileStructured, false},
		{"console debug", "debug", ProfileConsole, false},
		{"empty profile defaults to structured", "warn", "", false},
		{"bad level", "loud", ProfileStructured, true},
		{"bad profile", "info", "FANCY", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.level, tt.profile)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, CLILogger)
		})
	}
}

func TestCLILoggerNeverNilBeforeInit(t *testing.T) {
	assert.NotNil(t, CLILogger)
}
