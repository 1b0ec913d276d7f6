package usecase

import (
	"fmt"
	"sort"
	"strings"

	"AutoTrader/internal/domain/models"
)

// PairRegistry is the validated set of instruments the service knows about.
// It is built once at startup and read-only afterwards.
type PairRegistry struct {
	bySymbol map[string]models.TradingPair
	ordered  []models.TradingPair
}

// NewPairRegistry validates every pair with v, derives missing symbols and
// rejects duplicates.
func NewPairRegistry(v *models.Validator, pairs []models.TradingPair) (*PairRegistry, error) {
	r := &PairRegistry{bySymbol: make(map[string]models.TradingPair, len(pairs))}
	for i, p := range pairs {
		vp, err := v.ValidateTradingPair(p)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		key := strings.ToUpper(vp.Symbol)
		if _, dup := r.bySymbol[key]; dup {
			return nil, fmt.Errorf("pairs[%d]: duplicate symbol %s", i, vp.Symbol)
		}
		r.bySymbol[key] = vp
		r.ordered = append(r.ordered, vp)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool { return r.ordered[i].Symbol < r.ordered[j].Symbol })
	return r, nil
}

// All returns the pairs sorted by symbol.
func (r *PairRegistry) All() []models.TradingPair {
	out := make([]models.TradingPair, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Lookup finds a pair by symbol, case-insensitively.
func (r *PairRegistry) Lookup(symbol string) (models.TradingPair, bool) {
	if r == nil {
		return models.TradingPair{}, false
	}
	p, ok := r.bySymbol[strings.ToUpper(symbol)]
	return p, ok
}

// Known reports whether symbol may be used. An empty registry accepts every
// symbol.
func (r *PairRegistry) Known(symbol string) bool {
	if r == nil || len(r.bySymbol) == 0 {
		return true
	}
	_, ok := r.Lookup(symbol)
	return ok
}

// Quote returns the quote currency of symbol, or "" when unknown.
func (r *PairRegistry) Quote(symbol string) string {
	if p, ok := r.Lookup(symbol); ok {
		return strings.ToUpper(p.Quote)
	}
	return ""
}

func (r *PairRegistry) Len() int { return len(r.ordered) }

// checkSymbol returns a ValidationError on field when symbol is not in the
// registry.
func (r *PairRegistry) checkSymbol(field, symbol string) error {
	if r == nil || r.Known(symbol) {
		return nil
	}
	return &models.ValidationError{Field: field, Reason: fmt.Sprintf("unknown symbol %s", symbol)}
}
