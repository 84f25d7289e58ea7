package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf).With("correlation_id", "abc")
	l.Infof("run %d", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.Equal(t, "run 3", entry["message"])
}

func TestZerologLoggerLevelFilter(t *testing.T) {
	require.NoError(t, os.Setenv("LOG_LEVEL", "warn"))
	defer func() { _ = os.Unsetenv("LOG_LEVEL") }()
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())
	l.Warnf("shown")
	assert.NotZero(t, buf.Len())
}
