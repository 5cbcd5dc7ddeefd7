package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupHandlerText(t *testing.T) {
	tests := []struct {
		name            string
		logLevel        string
		expectedLevel   log.Level
		expectCaller    bool
		expectTimestamp bool
	}{
		{name: "trace level", logLevel: "trace", expectedLevel: log.DebugLevel, expectCaller: true, expectTimestamp: true},
		{name: "debug level", logLevel: "debug", expectedLevel: log.DebugLevel, expectCaller: false, expectTimestamp: true},
		{name: "info level", logLevel: "info", expectedLevel: log.InfoLevel},
		{name: "warn level", logLevel: "warn", expectedLevel: log.WarnLevel},
		{name: "unknown level falls back to info", logLevel: "bogus", expectedLevel: log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := SetupHandlerText(tt.logLevel, &buf)
			require.NotNil(t, handler)

			logger, ok := handler.(*log.Logger)
			require.True(t, ok, "handler should be a *log.Logger")
			assert.Equal(t, tt.expectedLevel, logger.GetLevel())
		})
	}
}

func TestSetupHandlerTextNilWriter(t *testing.T) {
	handler := SetupHandlerText("info", nil)
	assert.NotNil(t, handler)
}

func TestSetupLoggerSetsDefault(t *testing.T) {
	handler := SetupLogger("debug")
	assert.NotNil(t, handler)
}
