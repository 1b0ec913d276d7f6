package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoTrader/internal/domain/models"
	"AutoTrader/pkg/metrics"
	"AutoTrader/pkg/queue"
)

type scriptedProc struct {
	mu        sync.Mutex
	failures  int
	calls     int
	processed []models.CandleBatch
}

func (p *scriptedProc) ProcessBatch(_ context.Context, b models.CandleBatch) (int, error) {
	if err := models.ValidateCandleBatch(b); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return 0, errors.New("backend down")
	}
	p.processed = append(p.processed, b)
	return len(b.Candles), nil
}

func (p *scriptedProc) processedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func batch(symbol string, n int) models.CandleBatch {
	b := models.CandleBatch{Symbol: symbol}
	for i := 0; i < n; i++ {
		b.Candles = append(b.Candles, models.Candle{Timestamp: int64(i * 60), Open: 1, High: 2, Low: 1, Close: 2, Volume: 1})
	}
	return b
}

func newPipeline(proc Proc, opts ...PipelineOption) *CandlePipeline {
	return NewCandlePipeline(proc, metrics.NewWithRegisterer(nil), nil, opts...)
}

func TestPipelineSubmitDirect(t *testing.T) {
	proc := &scriptedProc{}
	p := newPipeline(proc)

	n, buffered, err := p.Submit(context.Background(), batch("BTCUSDT", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, buffered)
	assert.Equal(t, 1, proc.processedCount())
}

func TestPipelineValidationErrorIsNotBuffered(t *testing.T) {
	p := newPipeline(&scriptedProc{})

	_, buffered, err := p.Submit(context.Background(), models.CandleBatch{Symbol: "BTCUSDT"})
	require.ErrorIs(t, err, models.ErrInvalidInput)
	assert.False(t, buffered)
	assert.Zero(t, p.Buffered())
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &scriptedProc{failures: 3}
	p := newPipeline(proc, WithBackoff(time.Millisecond, 5*time.Millisecond))

	n, buffered, err := p.Submit(context.Background(), batch("ETHUSD", 2))
	require.NoError(t, err)
	assert.True(t, buffered)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, p.Buffered())

	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return proc.processedCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, p.Buffered())
}

func TestPipelineBufferFull(t *testing.T) {
	proc := &scriptedProc{failures: 10}
	p := newPipeline(proc, WithBufferSize(1))

	_, buffered, err := p.Submit(context.Background(), batch("BTCUSDT", 1))
	require.NoError(t, err)
	require.True(t, buffered)

	_, buffered, err = p.Submit(context.Background(), batch("BTCUSDT", 1))
	require.ErrorIs(t, err, ErrBufferFull)
	assert.False(t, buffered)
	assert.Equal(t, 1, p.Buffered())
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	p := newPipeline(&scriptedProc{})
	p.Stop()
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}

type memSpill struct {
	mu   sync.Mutex
	msgs []*queue.Message
	dead []*queue.Message
}

func (s *memSpill) Push(_ context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, &queue.Message{ID: msgType, Type: msgType, Payload: raw})
	return nil
}

func (s *memSpill) Pop(context.Context) (*queue.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return nil, nil
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func (s *memSpill) Requeue(_ context.Context, m *queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Attempts++
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *memSpill) DeadLetter(_ context.Context, m *queue.Message, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, m)
	return nil
}

func (s *memSpill) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestPipelineOverflowGoesToSpill(t *testing.T) {
	proc := &scriptedProc{failures: 2}
	spill := &memSpill{}
	p := newPipeline(proc, WithBufferSize(1), WithSpill(spill, 5*time.Millisecond), WithBackoff(time.Millisecond, time.Millisecond))

	_, buffered, err := p.Submit(context.Background(), batch("BTCUSDT", 1))
	require.NoError(t, err)
	require.True(t, buffered)

	n, buffered, err := p.Submit(context.Background(), batch("ETHUSD", 2))
	require.NoError(t, err)
	assert.True(t, buffered)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, spill.len())

	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool { return proc.processedCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, spill.len())
}

func TestPipelineStopSpillsBufferedBatches(t *testing.T) {
	proc := &scriptedProc{failures: 1}
	spill := &memSpill{}
	p := newPipeline(proc, WithSpill(spill, time.Hour))

	_, buffered, err := p.Submit(context.Background(), batch("BTCUSDT", 1))
	require.NoError(t, err)
	require.True(t, buffered)

	p.Start(context.Background())
	p.Stop()
	assert.Zero(t, p.Buffered())
	assert.LessOrEqual(t, spill.len(), 1)
	assert.Equal(t, 1, spill.len()+proc.processedCount())
}

func TestPipelineDeadLettersUndecodableSpill(t *testing.T) {
	spill := &memSpill{msgs: []*queue.Message{{ID: "bad", Type: spillType, Payload: []byte(`"nope"`)}}}
	p := newPipeline(&scriptedProc{}, WithSpill(spill, 5*time.Millisecond))

	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool {
		spill.mu.Lock()
		defer spill.mu.Unlock()
		return len(spill.dead) == 1
	}, 2*time.Second, 5*time.Millisecond)
}
