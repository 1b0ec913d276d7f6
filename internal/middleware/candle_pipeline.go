package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"AutoTrader/internal/domain/models"
	domrepo "AutoTrader/internal/domain/repository"
	applogger "AutoTrader/pkg/logger"
	"AutoTrader/pkg/queue"
	"AutoTrader/pkg/util"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessBatch(ctx context.Context, b models.CandleBatch) (int, error)
}

// Spill is a durable overflow for batches that do not fit in memory.
type Spill interface {
	Push(ctx context.Context, msgType string, payload interface{}) error
	Pop(ctx context.Context) (*queue.Message, error)
	Requeue(ctx context.Context, msg *queue.Message) error
	DeadLetter(ctx context.Context, msg *queue.Message, cause error) error
}

const spillType = "candle_batch"

// ErrBufferFull is returned when the backend failed and the retry buffer has
// no room left.
var ErrBufferFull = errors.New("candle pipeline buffer full")

// CandlePipeline sits between ingestion (HTTP) and the candle processor.
// Batches that pass validation but hit a backend failure are buffered and
// retried in the background with capped exponential backoff. With a spill
// configured, overflow and leftovers at Stop go there instead of being lost.
type CandlePipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	log        *applogger.Logger
	bufCh      chan models.CandleBatch
	spill      Spill
	spillPoll  time.Duration
	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

type PipelineOption func(*CandlePipeline)

// WithBufferSize sets how many batches may wait for the backend in memory.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufCh = make(chan models.CandleBatch, n)
		}
	}
}

// WithBackoff sets the retry delay range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *CandlePipeline) {
		p.backoffMin = min
		p.backoffMax = max
	}
}

// WithSpill sets the durable overflow and how often it is polled.
func WithSpill(s Spill, poll time.Duration) PipelineOption {
	return func(p *CandlePipeline) {
		p.spill = s
		if poll > 0 {
			p.spillPoll = poll
		}
	}
}

// NewCandlePipeline creates a new pipeline.
func NewCandlePipeline(proc Proc, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *CandlePipeline {
	if l == nil {
		l = applogger.Nop()
	}
	p := &CandlePipeline{
		proc:       proc,
		metrics:    metrics,
		log:        l,
		bufCh:      make(chan models.CandleBatch, 256),
		spillPoll:  time.Second,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered batches.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.flush(ctx)
}

// Stop stops the background flushing. Batches still in memory move to the
// spill when there is one and are dropped otherwise.
func (p *CandlePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.cancel()
	done := p.done
	p.mu.Unlock()
	<-done

	var spilled, dropped int
	for len(p.bufCh) > 0 {
		if p.spillBatch(<-p.bufCh) == nil {
			spilled++
		} else {
			dropped++
		}
	}
	if spilled+dropped > 0 {
		p.log.Warn("candle pipeline stopped with buffered batches",
			applogger.Int("spilled", spilled),
			applogger.Int("dropped", dropped),
		)
	}
}

// Submit forwards b to the processor. Validation errors are returned as is.
// On a backend error the batch is buffered for retry and buffered is true.
func (p *CandlePipeline) Submit(ctx context.Context, b models.CandleBatch) (accepted int, buffered bool, err error) {
	n, err := p.proc.ProcessBatch(ctx, b)
	if err == nil {
		return n, false, nil
	}
	if errors.Is(err, models.ErrInvalidInput) {
		return 0, false, err
	}

	p.metrics.RecordError("pipeline_process")
	select {
	case p.bufCh <- b:
		return len(b.Candles), true, nil
	default:
	}
	if p.spill != nil {
		serr := p.spill.Push(ctx, spillType, b)
		if serr == nil {
			return len(b.Candles), true, nil
		}
		err = errors.Join(err, serr)
	}
	p.metrics.RecordError("pipeline_buffer_full")
	return 0, false, errors.Join(ErrBufferFull, err)
}

// Buffered returns the number of batches waiting in memory for retry.
func (p *CandlePipeline) Buffered() int { return len(p.bufCh) }

func (p *CandlePipeline) flush(ctx context.Context) {
	defer close(p.done)

	var pollC <-chan time.Time
	if p.spill != nil {
		t := time.NewTicker(p.spillPoll)
		defer t.Stop()
		pollC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-p.bufCh:
			if err := p.retry(ctx, b); err != nil {
				// put it back so Stop can spill it
				select {
				case p.bufCh <- b:
				default:
				}
				return
			}
		case <-pollC:
			if !p.drainSpill(ctx) {
				return
			}
		}
	}
}

// retry processes b until it succeeds, is rejected, or ctx ends. Only the
// last case returns an error.
func (p *CandlePipeline) retry(ctx context.Context, b models.CandleBatch) error {
	backoff := p.backoffMin
	for {
		_, err := p.proc.ProcessBatch(ctx, b)
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrInvalidInput) {
			p.log.Warn("buffered candle batch rejected", applogger.String("symbol", b.Symbol), applogger.Error(err))
			return nil
		}
		p.metrics.RecordError("pipeline_flush")
		p.log.Warn("candle pipeline retry",
			applogger.String("symbol", b.Symbol),
			applogger.Duration("backoff_ms", backoff),
			applogger.Error(err),
		)
		if err := util.Sleep(ctx, backoff); err != nil {
			return err
		}
		if backoff *= 2; backoff > p.backoffMax {
			backoff = p.backoffMax
		}
	}
}

// drainSpill replays spilled batches while the memory buffer is idle. It
// returns false when ctx ended.
func (p *CandlePipeline) drainSpill(ctx context.Context) bool {
	for len(p.bufCh) == 0 {
		msg, err := p.spill.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.log.Warn("candle spill pop failed", applogger.Error(err))
			return true
		}
		if msg == nil {
			return true
		}
		b, err := queue.ParsePayload[models.CandleBatch](msg)
		if err != nil {
			_ = p.spill.DeadLetter(ctx, msg, err)
			continue
		}
		if err := p.retry(ctx, *b); err != nil {
			requeueCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if rerr := p.spill.Requeue(requeueCtx, msg); rerr != nil {
				p.log.Error("candle spill requeue failed", applogger.String("id", msg.ID), applogger.Error(rerr))
			}
			cancel()
			return false
		}
	}
	return true
}

func (p *CandlePipeline) spillBatch(b models.CandleBatch) error {
	if p.spill == nil {
		return ErrBufferFull
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.spill.Push(ctx, spillType, b); err != nil {
		p.log.Error("candle spill push failed", applogger.String("symbol", b.Symbol), applogger.Error(err))
		return err
	}
	return nil
}
