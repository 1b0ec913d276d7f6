package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"AutoTrader/internal/domain/models"
	drepo "AutoTrader/internal/domain/repository"
	applogger "AutoTrader/pkg/logger"
)

// SignalService accepts trade signals: it validates them, stamps an ID, then
// publishes, stores, caches and broadcasts the resulting event. Every
// collaborator except the validator is optional.
type SignalService struct {
	validator   *models.Validator
	pairs       *PairRegistry
	pub         drepo.SignalPublisher
	store       drepo.SignalStore
	cache       drepo.SignalCache
	broadcaster drepo.SignalBroadcaster
	metrics     drepo.Metrics
	log         *applogger.Logger
	now         func() time.Time
	newID       func() string
}

// SignalServiceOption configures SignalService.
type SignalServiceOption func(*SignalService)

func WithSignalPublisher(p drepo.SignalPublisher) SignalServiceOption {
	return func(s *SignalService) { s.pub = p }
}

func WithSignalStore(st drepo.SignalStore) SignalServiceOption {
	return func(s *SignalService) { s.store = st }
}

func WithSignalCache(c drepo.SignalCache) SignalServiceOption {
	return func(s *SignalService) { s.cache = c }
}

func WithSignalBroadcaster(b drepo.SignalBroadcaster) SignalServiceOption {
	return func(s *SignalService) { s.broadcaster = b }
}

// WithSignalClock replaces time.Now and the ID generator.
func WithSignalClock(now func() time.Time, newID func() string) SignalServiceOption {
	return func(s *SignalService) {
		s.now = now
		s.newID = newID
	}
}

func NewSignalService(v *models.Validator, pairs *PairRegistry, metrics drepo.Metrics, l *applogger.Logger, opts ...SignalServiceOption) *SignalService {
	if l == nil {
		l = applogger.Nop()
	}
	s := &SignalService{
		validator: v,
		pairs:     pairs,
		metrics:   metrics,
		log:       l,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates sig and fans the accepted event out. Publishing is the
// only step whose failure fails the call; store and cache failures are
// logged. Signals without a symbol are published and broadcast but not
// cached.
func (s *SignalService) Submit(ctx context.Context, sig models.TradeSignal) (models.SignalEvent, error) {
	start := s.now()
	sig.Symbol = strings.ToUpper(sig.Symbol)

	valid, err := s.validator.ValidateTradeSignal(sig)
	if err != nil {
		if ve, ok := models.AsValidationError(err); ok {
			s.metrics.RecordRejected("signal", ve.Field)
		}
		return models.SignalEvent{}, err
	}
	if valid.Symbol != "" {
		if err := s.pairs.checkSymbol("symbol", valid.Symbol); err != nil {
			s.metrics.RecordRejected("signal", "symbol")
			return models.SignalEvent{}, err
		}
	}

	ev := models.SignalEvent{
		ID:         s.newID(),
		Signal:     valid,
		ReceivedAt: start.UnixMilli(),
	}

	if s.pub != nil {
		if err := s.pub.PublishSignal(ctx, ev); err != nil {
			s.metrics.RecordError("signal_publish")
			return models.SignalEvent{}, err
		}
	}
	if s.store != nil {
		if err := s.store.StoreSignal(ctx, ev); err != nil {
			s.metrics.RecordError("signal_store")
			s.log.Warn("signal store failed", applogger.String("id", ev.ID), applogger.Error(err))
		}
	}
	if s.cache != nil && valid.Symbol != "" {
		if err := s.cache.SetLatest(ctx, ev); err != nil {
			s.metrics.RecordError("signal_cache")
			s.log.Warn("signal cache failed", applogger.String("id", ev.ID), applogger.Error(err))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ev)
	}

	s.metrics.RecordAccepted("signal", valid.Symbol, 1)
	s.metrics.RecordLatency("signal_submit", s.now().Sub(start).Seconds())
	s.log.Info("signal accepted",
		applogger.String("id", ev.ID),
		applogger.String("symbol", valid.Symbol),
		applogger.String("action", string(valid.Action)),
		applogger.Float64("confidence", valid.Confidence),
	)
	return ev, nil
}

// Latest returns the most recent signal for symbol or models.ErrNotFound.
func (s *SignalService) Latest(ctx context.Context, symbol string) (*models.SignalEvent, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &models.ValidationError{Field: "symbol", Reason: "is required"}
	}
	if s.cache == nil {
		return nil, models.ErrNotFound
	}
	ev, err := s.cache.Latest(ctx, symbol)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.metrics.RecordError("signal_cache")
	}
	return ev, err
}
