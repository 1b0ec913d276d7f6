package repository

import (
	"context"
	"strings"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/domain/repository"
	pkgkafka "AutoTrader/pkg/kafka"
)

// Payload schema versions carried in the "schema" header.
const (
	CandlesSchema = "candles.v1"
	SignalsSchema = "signals.v1"
)

// batchPublisher is the part of *pkgkafka.Producer the publishers use.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaPublisher publishes candle batches and signal events, keyed by symbol
// so each symbol stays ordered within its partition.
type KafkaPublisher struct {
	producer     batchPublisher
	candlesTopic string
	signalsTopic string
}

var (
	_ repository.CandlePublisher = (*KafkaPublisher)(nil)
	_ repository.SignalPublisher = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, candlesTopic, signalsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, candlesTopic: candlesTopic, signalsTopic: signalsTopic}
}

func (p *KafkaPublisher) PublishCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)
	return p.producer.PublishBatch(ctx, p.candlesTopic, []pkgkafka.Message{{
		Key:     []byte(symbol),
		Value:   models.CandleBatch{Symbol: symbol, Candles: candles},
		Headers: map[string]string{"schema": CandlesSchema},
	}})
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, ev models.SignalEvent) error {
	return p.producer.PublishBatch(ctx, p.signalsTopic, []pkgkafka.Message{{
		Key:     []byte(strings.ToUpper(ev.Signal.Symbol)),
		Value:   ev,
		Headers: map[string]string{"schema": SignalsSchema, "trace_id": ev.ID},
	}})
}
