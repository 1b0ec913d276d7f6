package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type countingHandler struct {
	topic    string
	failures int
	calls    int
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, h MessageHandler) (*Consumer, *fakeWriter) {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("autotrader.dlq"),
	)
	require.NoError(t, err)
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.RegisterHandler(h)
	return c, dlq
}

func TestProducerEncodesValuesAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	err := p.PublishBatch(context.Background(), "autotrader.candles", []Message{
		{Key: []byte("BTCUSDT"), Value: map[string]int{"n": 1}, Headers: map[string]string{"schema": "candles.v1"}},
		{Key: []byte("ETHUSDT"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "autotrader.candles", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "candles.v1", Header(w.msgs[0], "schema"))
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Len(t, w.msgs, 2)

	w.err = errors.New("broker down")
	assert.Error(t, p.PublishBatch(context.Background(), "t", []Message{{Value: "x"}}))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestConsumerRetriesTransientErrors(t *testing.T) {
	h := &countingHandler{topic: "autotrader.candles", failures: 2}
	c, dlq := newTestConsumer(t, h)

	c.process(&message{topic: h.topic, data: []byte(`{}`)})
	assert.Equal(t, 3, h.calls)
	assert.Empty(t, dlq.msgs)
}

func TestConsumerSendsExhaustedToDLQ(t *testing.T) {
	h := &countingHandler{topic: "autotrader.candles", failures: 10}
	c, dlq := newTestConsumer(t, h)

	c.process(&message{topic: h.topic, data: []byte(`{"x":1}`)})
	assert.Equal(t, 3, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "autotrader.candles", Header(dlq.msgs[0], "source_topic"))
	assert.Equal(t, `{"x":1}`, string(dlq.msgs[0].Value))
}

func TestConsumerPermanentHookErrorSkipsRetries(t *testing.T) {
	h := &countingHandler{topic: "autotrader.candles"}
	c, dlq := newTestConsumer(t, h)

	var seen error
	c.WithConsumerHook(NewHookChain(HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, data, &HookError{Code: CodeValidation, Err: errors.New("high: must be >= low")}
		},
		Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { seen = err },
	}))

	c.process(&message{topic: h.topic, data: []byte(`{}`)})
	assert.Zero(t, h.calls)
	require.Error(t, seen)
	assert.True(t, IsPermanent(seen))
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, CodeValidation, Header(dlq.msgs[0], "error_code"))
}

type orderHandler struct {
	topic string
	mu    sync.Mutex
	seen  map[int][]int
}

func (h *orderHandler) Topic() string { return h.topic }

func (h *orderHandler) Handle(_ context.Context, b []byte) error {
	var partition, offset int
	if _, err := fmt.Sscanf(string(b), "%d:%d", &partition, &offset); err != nil {
		return err
	}
	time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
	h.mu.Lock()
	h.seen[partition] = append(h.seen[partition], offset)
	h.mu.Unlock()
	return nil
}

func TestConsumerKeepsPartitionOrder(t *testing.T) {
	h := &orderHandler{topic: "autotrader.candles", seen: map[int][]int{}}
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerWorkers(4),
		WithConsumerBufferSize(512),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	require.Len(t, c.lanes, 4)

	for _, lane := range c.lanes {
		c.workersWG.Add(1)
		go c.messageWorker(lane)
	}

	const partitions, perPartition = 6, 50
	for off := 0; off < perPartition; off++ {
		for p := 0; p < partitions; p++ {
			lane := c.laneFor(h.topic, p)
			assert.Equal(t, lane, c.laneFor(h.topic, p))
			c.lanes[lane] <- &message{
				topic: h.topic,
				data:  []byte(fmt.Sprintf("%d:%d", p, off)),
				km:    kafka.Message{Topic: h.topic, Partition: p, Offset: int64(off)},
			}
		}
	}
	for _, lane := range c.lanes {
		close(lane)
	}
	c.workersWG.Wait()

	for p := 0; p < partitions; p++ {
		got := h.seen[p]
		require.Len(t, got, perPartition, "partition %d", p)
		for i, off := range got {
			assert.Equal(t, i, off, "partition %d", p)
		}
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(nil, HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)

	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, CodePanic, he.Code)
	assert.False(t, IsPermanent(err))
}

func TestTraceIDRoundTrip(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx := WithTraceID(context.Background(), ExtractTraceID(km))
	assert.Equal(t, "abc", TraceID(ctx))
	assert.Equal(t, "", TraceID(context.Background()))
}
