package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/domain/repository"
	pkgch "AutoTrader/pkg/clickhouse"
	applogger "AutoTrader/pkg/logger"
	"AutoTrader/pkg/util"
)

// ClickHouseStore implements CandleStore and SignalStore on ClickHouse.
type ClickHouseStore struct {
	ch *pkgch.Client
	db string
	l  *applogger.Logger
}

var (
	_ repository.CandleStore = (*ClickHouseStore)(nil)
	_ repository.SignalStore = (*ClickHouseStore)(nil)
)

// NewClickHouseStore creates the store for database db.
func NewClickHouseStore(ch *pkgch.Client, db string, l *applogger.Logger) *ClickHouseStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseStore{ch: ch, db: db, l: l}
}

// Init creates the tables when they do not exist.
func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema(s.db))
}

func (s *ClickHouseStore) StoreCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()
	q := fmt.Sprintf("INSERT INTO %s.%s (symbol, ts, bucket, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.db, candlesTable)
	if err := s.ch.InsertBatch(ctx, q, candleRows(symbol, candles)); err != nil {
		s.l.Error("clickhouse store candles error",
			applogger.String("symbol", symbol),
			applogger.Int("count", len(candles)),
			applogger.Error(err),
		)
		return fmt.Errorf("store candles: %w", err)
	}
	s.l.Debug("clickhouse stored candles",
		applogger.String("symbol", symbol),
		applogger.Int("count", len(candles)),
		applogger.Duration("took_ms", time.Since(start)),
	)
	return nil
}

// QueryCandles returns candles with bucket in [from, to], oldest first. The
// newest limit candles are kept when the range holds more.
func (s *ClickHouseStore) QueryCandles(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Candle, error) {
	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM (
            SELECT ts, open, high, low, close, volume
            FROM %s.%s FINAL
            WHERE symbol = ? AND bucket >= ? AND bucket <= ?
            ORDER BY ts DESC
            LIMIT ?
        )
        ORDER BY ts ASC`, s.db, candlesTable)

	rows, err := s.ch.DB().QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse query candles error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows, symbol)
}

func (s *ClickHouseStore) StoreSignal(ctx context.Context, ev models.SignalEvent) error {
	q := fmt.Sprintf("INSERT INTO %s.%s (id, symbol, action, confidence, reason, ts, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)", s.db, signalsTable)
	if err := s.ch.InsertBatch(ctx, q, [][]any{signalRow(ev)}); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

func candleRows(symbol string, candles []models.Candle) [][]any {
	symbol = strings.ToUpper(symbol)
	rows := make([][]any, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, []any{
			symbol,
			c.Timestamp,
			util.EpochToTime(c.Timestamp),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
		})
	}
	return rows
}

func signalRow(ev models.SignalEvent) []any {
	return []any{
		ev.ID,
		strings.ToUpper(ev.Signal.Symbol),
		string(ev.Signal.Action),
		ev.Signal.Confidence,
		ev.Signal.Reason,
		ev.Signal.Timestamp,
		time.UnixMilli(ev.ReceivedAt).UTC(),
	}
}

func scanCandles(rows *sql.Rows, symbol string) ([]models.Candle, error) {
	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		c := models.Candle{Symbol: symbol}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
