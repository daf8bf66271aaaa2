package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/taoyao-code/xbee-digimesh/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNewWriterLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, "info", "json")
	log.Debug("hidden")
	log.Info("frame sent", zap.Uint8("frame_id", 7))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "frame sent", entry["msg"])
	assert.Equal(t, float64(7), entry["frame_id"])
}

func TestInitLogger_WithFile(t *testing.T) {
	cfg := cfgpkg.LoggingConfig{Level: "debug", Format: "console"}
	cfg.File.Filename = filepath.Join(t.TempDir(), "digimesh.log")
	cfg.File.MaxSizeMB = 1
	log, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
