package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	componentLogger := WithComponent(logger, "pipeline")
	componentLogger.Debug().Str("step", "ocr").Msg("stage started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "cv-anonymizer", entry["service"])
	assert.Equal(t, "ocr", entry["step"])
	assert.Equal(t, "stage started", entry["message"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "WARN", Format: FormatJSON, Output: &buf})

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "chatty", Format: FormatJSON, Output: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatConsole, Output: &buf})

	sessionLogger := WithSession(logger, "abc")
	sessionLogger.Info().Msg("session created")
	out := buf.String()
	assert.Contains(t, out, "session created")
	assert.Contains(t, out, "session_id=abc")
}
