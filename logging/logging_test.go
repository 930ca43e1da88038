package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(&buf, true))

	logger.Info("request", "method", "GET", "status", 200)

	line := strings.TrimSpace(buf.String())
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestAdapter_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(&buf, true))

	logger.Warn("activity sink record error", "error", "boom")

	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNew_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(&buf, true))

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger = NewAdapter(New(&buf, false))
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewAdapter_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewAdapter(nil).Error("nothing", "here", 1)
	})
}
