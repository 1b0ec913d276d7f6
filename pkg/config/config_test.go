package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoTrader/internal/domain/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, c.Server.Port)
	assert.Equal(t, "autotrader-api", c.Service)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, "autotrader.candles", c.Kafka.CandlesTopic)
	assert.Equal(t, 10*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.True(t, c.Server.CORS)
	assert.Equal(t, models.SymbolStrict, c.SymbolPolicy())
	assert.False(t, c.KafkaEnabled())
}

func TestLoadFillsPairSymbols(t *testing.T) {
	path := writeConfig(t, `
pairs:
  - { base: btc, quote: usdt }
  - { base: ETH, quote: USD, symbol: ETHUSD }
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Pairs, 2)
	assert.Equal(t, "BTCUSDT", c.Pairs[0].Symbol)
	assert.Equal(t, "ETHUSD", c.Pairs[1].Symbol)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"same base and quote", "pairs:\n  - { base: BTC, quote: BTC }\n"},
		{"strict symbol mismatch", "pairs:\n  - { base: BTC, quote: USDT, symbol: XBTUSDT }\n"},
		{"duplicate symbols", "pairs:\n  - { base: BTC, quote: USDT }\n  - { base: BTC, quote: USDT }\n"},
		{"bad backend", "backend:\n  type: s3\n"},
		{"bad policy", "validation:\n  symbol_policy: lenient\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"clickhouse backend disabled", "backend:\n  type: clickhouse\nclickhouse:\n  enabled: false\n"},
		{"kafka backend without brokers", "backend:\n  type: kafka\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestAdvisoryPolicyKeepsSymbol(t *testing.T) {
	c, err := Load(writeConfig(t, `
validation:
  symbol_policy: advisory
pairs:
  - { base: BTC, quote: USDT, symbol: XBT-USDT }
`))
	require.NoError(t, err)
	assert.Equal(t, "XBT-USDT", c.Pairs[0].Symbol)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"PORT":          "8081",
		"BACKEND":       "clickhouse",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"REDIS_ADDR":    "cache:6380",
		"LOG_LEVEL":     "debug",
	}
	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, 8081, c.Server.Port)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, "debug", c.Log.Level)

	bad := map[string]string{"PORT": "http"}
	require.Error(t, c.applyEnv(func(k string) string { return bad[k] }))
}

func TestLoadWithEnvOverridesPort(t *testing.T) {
	t.Setenv("PORT", "4000")
	c, err := LoadWithEnv(writeConfig(t, "server:\n  port: 3001\n"))
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Server.Port)
}

func TestLoadWithEnvSuppliesKafkaBrokers(t *testing.T) {
	path := writeConfig(t, "backend:\n  type: kafka\n")
	_, err := LoadWithEnv(path)
	require.Error(t, err)

	t.Setenv("KAFKA_BROKERS", "k1:9092")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "kafka", c.Backend.Type)
	assert.True(t, c.KafkaEnabled())
}
