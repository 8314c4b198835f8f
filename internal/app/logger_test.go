package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("info", "json", &buf)
	logger.Debug("hidden")
	logger.Info("Model resolved.", "model", "robot_x")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Model resolved.", record["msg"])
	assert.Equal(t, "robot_x", record["model"])
}

func TestNewLogger_Levels(t *testing.T) {
	testCases := []struct {
		level   string
		visible []string
	}{
		{"debug", []string{"d", "i", "w", "e"}},
		{"warn", []string{"w", "e"}},
		{"error", []string{"e"}},
		{"bogus", []string{"i", "w", "e"}},
	}
	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tc.level, "text", &buf)
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			lines := bytes.Count(buf.Bytes(), []byte("\n"))
			assert.Equal(t, len(tc.visible), lines)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
