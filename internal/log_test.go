package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogLevelWarn)

	l.Info("hidden %d", 1)
	l.Debug("hidden")
	l.Warn("shown %s", "warn")
	l.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogLevelInfo).Named("service").Named("T01")
	l.Info("matched %d pairs", 3)
	assert.Contains(t, buf.String(), "[INFO] service.T01: matched 3 pairs")
	assert.Equal(t, LogLevelInfo, l.GetLevel())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelTrace, ParseLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}
