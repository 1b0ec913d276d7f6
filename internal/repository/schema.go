package repository

import "fmt"

const (
	candlesTable = "candles"
	signalsTable = "signals"
)

// Schema returns the idempotent DDL for the candle and signal tables in db.
// Candles are deduplicated on (symbol, ts) keeping the latest ingest.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol      LowCardinality(String),
    ts          Int64,
    bucket      DateTime64(3, 'UTC'),
    open        Float64,
    high        Float64,
    low         Float64,
    close       Float64,
    volume      Float64,
    ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY toYYYYMM(bucket)
ORDER BY (symbol, ts)`, db, candlesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id          String,
    symbol      LowCardinality(String),
    action      LowCardinality(String),
    confidence  Float64,
    reason      String,
    ts          Int64,
    received_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(received_at)
ORDER BY (symbol, received_at)`, db, signalsTable),
	}
}
