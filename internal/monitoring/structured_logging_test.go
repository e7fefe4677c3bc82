package monitoring

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSON output carries service and component", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{
			Level:     slog.LevelInfo,
			Format:    FormatJSON,
			Output:    &buf,
			Component: "reader",
			Fields:    map[string]any{"node": "a1"},
		})

		logger.Info("frame decoded", "bytes", 12)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "frame decoded", record["msg"])
		assert.Equal(t, "binx", record["service"])
		assert.Equal(t, "reader", record["component"])
		assert.Equal(t, "a1", record["node"])
		assert.EqualValues(t, 12, record["bytes"])
	})

	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("console format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Level: slog.LevelDebug, Format: FormatConsole, Output: &buf, Component: "writer"})

		logger.Debug("frame encoded", "bytes", 7)

		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "frame encoded")
		assert.Contains(t, out, "component=writer")
		assert.Contains(t, out, "bytes=7")
		assert.True(t, strings.HasSuffix(out, "\n"))
	})

	t.Run("development logger does not panic", func(t *testing.T) {
		logger := NewDevelopmentLogger("test")
		assert.NotNil(t, logger)
		assert.NotPanics(t, func() {
			logger.Debug("debug message")
			logger.Error("error message")
		})
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"fatal", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []LogFormat{FormatJSON, FormatText, FormatConsole} {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
