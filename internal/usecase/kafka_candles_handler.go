package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"AutoTrader/internal/domain/models"
	domrepo "AutoTrader/internal/domain/repository"
	pkgkafka "AutoTrader/pkg/kafka"
	"AutoTrader/pkg/util"
)

// KafkaCandlesHandler consumes candle batches and writes them to storage.
type KafkaCandlesHandler struct {
	topic     string
	validator *models.Validator
	store     domrepo.CandleStore
	metrics   domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, v *models.Validator, store domrepo.CandleStore, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, validator: v, store: store, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// Handle decodes a models.CandleBatch, re-validates it and stores it.
// Decode and validation failures come back as permanent hook errors so the
// consumer sends them to the DLQ without retrying.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	batch, err := decodeBatch(h.validator, b)
	if err != nil {
		h.metrics.RecordError("consumer_decode")
		return err
	}

	n := len(batch.Candles)
	last := batch.Candles[n-1]
	h.metrics.RecordLatency("ingest_e2e", time.Since(util.EpochToTime(last.Timestamp)).Seconds())

	start := time.Now()
	err = h.store.StoreCandles(ctx, batch.Symbol, batch.Candles)
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordAccepted("candle_stored", batch.Symbol, n)
	h.metrics.RecordLastClose(batch.Symbol, last.Close)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)

func decodeBatch(v *models.Validator, b []byte) (models.CandleBatch, error) {
	var batch models.CandleBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		return batch, &pkgkafka.HookError{Code: pkgkafka.CodeDecode, Err: err}
	}
	if err := v.ValidateCandleBatch(batch); err != nil {
		return batch, &pkgkafka.HookError{Code: pkgkafka.CodeValidation, Err: err}
	}
	return batch, nil
}

// NewValidationHook rejects malformed or invalid candle batches on topic
// before the handler runs. Other topics pass through untouched.
func NewValidationHook(topic string, v *models.Validator, metrics domrepo.Metrics) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, t string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			if t != topic {
				return ctx, km, data, nil
			}
			if _, err := decodeBatch(v, data); err != nil {
				if ve, ok := models.AsValidationError(err); ok {
					metrics.RecordRejected("candle", ve.Field)
				}
				return ctx, km, data, err
			}
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
		},
	}
}
