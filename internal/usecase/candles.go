package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AutoTrader/internal/domain/models"
	domrepo "AutoTrader/internal/domain/repository"
	"AutoTrader/pkg/util"
)

// ErrStoreUnavailable is returned when no candle store is configured.
var ErrStoreUnavailable = errors.New("candle store unavailable")

// CandlesUseCase provides business logic for retrieving candles.
type CandlesUseCase struct {
	store domrepo.CandleStore
	pairs *PairRegistry
	now   func() time.Time
}

func NewCandlesUseCase(store domrepo.CandleStore, pairs *PairRegistry) *CandlesUseCase {
	return &CandlesUseCase{store: store, pairs: pairs, now: time.Now}
}

type GetCandlesParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

// CandleView is a stored candle plus its close formatted in the quote
// currency.
type CandleView struct {
	models.Candle
	CloseDisplay string `json:"close_display"`
}

type GetCandlesResult struct {
	Symbol  string       `json:"symbol"`
	Quote   string       `json:"quote,omitempty"`
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Count   int          `json:"count"`
	Candles []CandleView `json:"candles"`
}

const (
	defaultCandleLimit = 500
	maxCandleLimit     = 5000
	defaultWindow      = 24 * time.Hour
)

// GetCandles defaults to the last 24h and 500 candles. Limit is capped at 5000.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if uc.store == nil {
		return nil, ErrStoreUnavailable
	}
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Symbol == "" {
		return nil, &models.ValidationError{Field: "symbol", Reason: "is required"}
	}
	if err := uc.pairs.checkSymbol("symbol", p.Symbol); err != nil {
		return nil, err
	}
	if p.To.IsZero() {
		p.To = uc.now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-defaultWindow)
	}
	if p.From.After(p.To) {
		return nil, &models.ValidationError{Field: "from", Reason: "must be <= to"}
	}
	if p.Limit <= 0 {
		p.Limit = defaultCandleLimit
	}
	if p.Limit > maxCandleLimit {
		p.Limit = maxCandleLimit
	}

	candles, err := uc.store.QueryCandles(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	quote := uc.pairs.Quote(p.Symbol)
	views := make([]CandleView, len(candles))
	for i, c := range candles {
		views[i] = CandleView{Candle: c, CloseDisplay: util.FormatPrice(c.Close, quote)}
	}

	return &GetCandlesResult{
		Symbol:  p.Symbol,
		Quote:   quote,
		From:    p.From,
		To:      p.To,
		Count:   len(views),
		Candles: views,
	}, nil
}
