package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	tests := []struct {
		name  string
		level string
		dev   bool
		want  logrus.Level
	}{
		{"explicit warn", "warn", false, logrus.WarnLevel},
		{"upper case", "ERROR", false, logrus.ErrorLevel},
		{"development default", "", true, logrus.DebugLevel},
		{"production default", "", false, logrus.InfoLevel},
		{"invalid falls back", "chatty", false, logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(tt.level, tt.dev, &buf)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestNewLogger_EnvLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "trace")
	var buf bytes.Buffer
	log := newLogger("", false, &buf)
	assert.Equal(t, logrus.TraceLevel, log.GetLevel())
}

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	var buf bytes.Buffer
	log := newLogger("info", false, &buf)

	WithComponent(log, "matcher").WithField("mapped", 3).Info("mapping built")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "matcher", entry["component"])
	assert.Equal(t, "mapping built", entry["msg"])
	assert.EqualValues(t, 3, entry["mapped"])
}

func TestWithComponent_DefaultsToGlobalLogger(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	var buf bytes.Buffer
	Logger = newLogger("info", false, &buf)

	entry := WithComponent(nil, "http")
	assert.Same(t, Logger, entry.Logger)
	assert.Equal(t, "http", entry.Data["component"])
	assert.Same(t, Logger, GetLogger())
}

func TestWithRequestContext(t *testing.T) {
	var buf bytes.Buffer
	base := WithComponent(newLogger("info", false, &buf), "http")

	entry := WithRequestContext(base, "req-1", "")
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "http", entry.Data["component"])
	_, hasPlayer := entry.Data["player_id"]
	assert.False(t, hasPlayer)

	entry = WithRequestContext(base, "", "4046")
	assert.Equal(t, "4046", entry.Data["player_id"])
	_, hasRequest := entry.Data["request_id"]
	assert.False(t, hasRequest)

	entry = WithHTTPContext(base, "GET", "/health", "curl")
	assert.Equal(t, "GET", entry.Data["http_method"])
	assert.Equal(t, "/health", entry.Data["http_path"])
	assert.Equal(t, "curl", entry.Data["http_user_agent"])
}
