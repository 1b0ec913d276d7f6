package repository

import (
	"context"
	"time"

	"AutoTrader/internal/domain/models"
)

// CandlePublisher ships validated candles to the message bus.
type CandlePublisher interface {
	PublishCandles(ctx context.Context, symbol string, candles []models.Candle) error
	Close() error
}

// SignalPublisher ships accepted signals to the message bus.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, ev models.SignalEvent) error
	Close() error
}

// CandleStore persists candles and serves range queries.
type CandleStore interface {
	StoreCandles(ctx context.Context, symbol string, candles []models.Candle) error
	QueryCandles(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Candle, error)
	Health(ctx context.Context) error
}

// SignalStore keeps the history of accepted signals.
type SignalStore interface {
	StoreSignal(ctx context.Context, ev models.SignalEvent) error
}

// SignalCache keeps the most recent signal per symbol.
type SignalCache interface {
	SetLatest(ctx context.Context, ev models.SignalEvent) error
	Latest(ctx context.Context, symbol string) (*models.SignalEvent, error)
}

// SignalBroadcaster pushes accepted signals to live subscribers.
type SignalBroadcaster interface {
	Broadcast(ev models.SignalEvent)
}

type Metrics interface {
	RecordAccepted(kind, symbol string, n int)
	RecordRejected(kind, field string)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
