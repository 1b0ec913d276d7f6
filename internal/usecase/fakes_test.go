package usecase

import (
	"context"
	"sync"
	"time"

	"AutoTrader/internal/domain/models"
)

type fakeMetrics struct {
	mu       sync.Mutex
	accepted map[string]int
	rejected map[string]int
	errors   map[string]int
	close    map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		accepted: map[string]int{},
		rejected: map[string]int{},
		errors:   map[string]int{},
		close:    map[string]float64{},
	}
}

func (m *fakeMetrics) RecordAccepted(kind, symbol string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[kind+"/"+symbol] += n
}

func (m *fakeMetrics) RecordRejected(kind, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[kind+"/"+field]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLastClose(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.close[symbol] = price
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakeCandleSink struct {
	published map[string][]models.Candle
	stored    map[string][]models.Candle
	query     []models.Candle
	from, to  time.Time
	limit     int
	err       error
}

func newFakeCandleSink() *fakeCandleSink {
	return &fakeCandleSink{published: map[string][]models.Candle{}, stored: map[string][]models.Candle{}}
}

func (f *fakeCandleSink) PublishCandles(_ context.Context, symbol string, cs []models.Candle) error {
	if f.err != nil {
		return f.err
	}
	f.published[symbol] = append(f.published[symbol], cs...)
	return nil
}

func (f *fakeCandleSink) Close() error { return nil }

func (f *fakeCandleSink) StoreCandles(_ context.Context, symbol string, cs []models.Candle) error {
	if f.err != nil {
		return f.err
	}
	f.stored[symbol] = append(f.stored[symbol], cs...)
	return nil
}

func (f *fakeCandleSink) QueryCandles(_ context.Context, _ string, from, to time.Time, limit int) ([]models.Candle, error) {
	f.from, f.to, f.limit = from, to, limit
	return f.query, f.err
}

func (f *fakeCandleSink) Health(context.Context) error { return f.err }

type fakeSignalSink struct {
	published []models.SignalEvent
	stored    []models.SignalEvent
	latest    map[string]models.SignalEvent
	broadcast []models.SignalEvent
	pubErr    error
	cacheErr  error
}

func newFakeSignalSink() *fakeSignalSink {
	return &fakeSignalSink{latest: map[string]models.SignalEvent{}}
}

func (f *fakeSignalSink) PublishSignal(_ context.Context, ev models.SignalEvent) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeSignalSink) Close() error { return nil }

func (f *fakeSignalSink) StoreSignal(_ context.Context, ev models.SignalEvent) error {
	f.stored = append(f.stored, ev)
	return nil
}

func (f *fakeSignalSink) SetLatest(_ context.Context, ev models.SignalEvent) error {
	if f.cacheErr != nil {
		return f.cacheErr
	}
	f.latest[ev.Signal.Symbol] = ev
	return nil
}

func (f *fakeSignalSink) Latest(_ context.Context, symbol string) (*models.SignalEvent, error) {
	ev, ok := f.latest[symbol]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ev, nil
}

func (f *fakeSignalSink) Broadcast(ev models.SignalEvent) {
	f.broadcast = append(f.broadcast, ev)
}

var (
	strict = models.NewValidator()

	testPairs = []models.TradingPair{
		{Base: "BTC", Quote: "USDT"},
		{Base: "eth", Quote: "usd"},
		{Base: "BTC", Quote: "EUR", Symbol: "BTCEUR"},
	}
)

func candle(ts int64, close float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1}
}
