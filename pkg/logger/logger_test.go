package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).With(String("service", "autotrader-api"))

	l.Info("candle accepted",
		String("symbol", "BTCUSDT"),
		Int("count", 3),
		Float64("close", 101.5),
		Duration("took_ms", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "candle accepted", got["message"])
	assert.Equal(t, "autotrader-api", got["service"])
	assert.Equal(t, "BTCUSDT", got["symbol"])
	assert.Equal(t, float64(3), got["count"])
	assert.Equal(t, 101.5, got["close"])
	assert.Equal(t, float64(1500), got["took_ms"])
	assert.Equal(t, "boom", got["error"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)

	l, err := New(&Config{Level: "info", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
