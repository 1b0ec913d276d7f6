package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AutoTrader/internal/domain/models"
	drepo "AutoTrader/internal/domain/repository"
	applogger "AutoTrader/pkg/logger"
)

// Backends a CandleProcessor can route to.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// CandleProcessor validates candle batches and routes them to the configured
// backend.
type CandleProcessor struct {
	validator *models.Validator
	pairs     *PairRegistry
	pub       drepo.CandlePublisher
	store     drepo.CandleStore
	metrics   drepo.Metrics
	backend   string
	log       *applogger.Logger
}

// NewCandleProcessor creates a new CandleProcessor instance. pub may be nil
// for the clickhouse backend and store may be nil for the kafka backend.
func NewCandleProcessor(
	v *models.Validator,
	pairs *PairRegistry,
	pub drepo.CandlePublisher,
	store drepo.CandleStore,
	metrics drepo.Metrics,
	backend string,
	l *applogger.Logger,
) (*CandleProcessor, error) {
	switch {
	case backend == BackendKafka && pub == nil:
		return nil, fmt.Errorf("backend %q needs a candle publisher", backend)
	case backend == BackendClickHouse && store == nil:
		return nil, fmt.Errorf("backend %q needs a candle store", backend)
	case backend != BackendKafka && backend != BackendClickHouse:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CandleProcessor{
		validator: v,
		pairs:     pairs,
		pub:       pub,
		store:     store,
		metrics:   metrics,
		backend:   backend,
		log:       l,
	}, nil
}

// ProcessBatch validates b and hands it to the backend. It returns the number
// of candles accepted. Validation failures are returned as
// *models.ValidationError and nothing is forwarded.
func (p *CandleProcessor) ProcessBatch(ctx context.Context, b models.CandleBatch) (int, error) {
	start := time.Now()
	b.Symbol = strings.ToUpper(b.Symbol)

	if err := p.validator.ValidateCandleBatch(b); err != nil {
		if ve, ok := models.AsValidationError(err); ok {
			p.metrics.RecordRejected("candle", ve.Field)
		}
		return 0, err
	}
	if err := p.pairs.checkSymbol("symbol", b.Symbol); err != nil {
		p.metrics.RecordRejected("candle", "symbol")
		return 0, err
	}

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishCandles(ctx, b.Symbol, b.Candles)
	case BackendClickHouse:
		err = p.store.StoreCandles(ctx, b.Symbol, b.Candles)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		p.log.Error("candle batch failed",
			applogger.String("backend", p.backend),
			applogger.String("symbol", b.Symbol),
			applogger.Int("count", len(b.Candles)),
			applogger.Error(err),
		)
		return 0, fmt.Errorf("process batch: %w", err)
	}

	n := len(b.Candles)
	p.metrics.RecordAccepted("candle", b.Symbol, n)
	p.metrics.RecordLastClose(b.Symbol, b.Candles[n-1].Close)
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return n, nil
}
