package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", "json", &buf)

	logger.WithField("reference", "PAY-1-ABC").Info("payment created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "payment created", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "PAY-1-ABC", entry["reference"])
	assert.Contains(t, entry, "timestamp")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewWithOutputFallsBackToInfo(t *testing.T) {
	logger := NewWithOutput("verbose", "text", &bytes.Buffer{})

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
