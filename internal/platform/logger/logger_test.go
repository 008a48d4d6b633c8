package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/config"
)

func testConfig(level, format string) config.Config {
	return config.Config{
		Service: &config.ServiceConfig{Name: "supportdesk", Env: "test", Add: ":0"},
		Logger:  &config.LoggerConfig{Level: level, Format: format},
	}
}

func TestNewLogger_JSONCarriesServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, testConfig("info", "JSON"))

	log.Debug("hidden")
	log.Info("room - start - ok", "room_id", "lobby")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "room - start - ok", entry["msg"])
	assert.Equal(t, "supportdesk", entry["service"])
	assert.Equal(t, "lobby", entry["room_id"])
}

func TestNewLogger_DebugText(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, testConfig("debug", "TEXT"))

	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
