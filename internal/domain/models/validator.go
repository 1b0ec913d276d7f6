package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks Candle, TradingPair and TradeSignal values against their
// invariants. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	v      *validator.Validate
	policy SymbolPolicy
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithSymbolPolicy sets how TradingPair.Symbol is checked.
func WithSymbolPolicy(p SymbolPolicy) ValidatorOption {
	return func(v *Validator) {
		if p.IsValid() {
			v.policy = p
		}
	}
}

// NewValidator builds a Validator. The default symbol policy is SymbolStrict.
func NewValidator(opts ...ValidatorOption) *Validator {
	out := &Validator{policy: SymbolStrict}
	for _, opt := range opts {
		opt(out)
	}

	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	// registration errors only happen for empty tags
	_ = v.RegisterValidation("finite", isFinite)
	_ = v.RegisterValidation("unit", isUnitInterval)
	v.RegisterStructValidation(candleOrdering, Candle{})
	v.RegisterStructValidation(out.pairRules, TradingPair{})
	out.v = v
	return out
}

// Policy returns the configured symbol policy.
func (v *Validator) Policy() SymbolPolicy { return v.policy }

// ValidateCandle returns c unchanged when every invariant holds.
func (v *Validator) ValidateCandle(c Candle) (Candle, error) {
	if err := v.check(c); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// ValidateCandleSeries validates each candle and checks that timestamps never decrease.
func (v *Validator) ValidateCandleSeries(cs []Candle) error {
	for i, c := range cs {
		if err := v.check(c); err != nil {
			ve, _ := AsValidationError(err)
			return &ValidationError{Field: fmt.Sprintf("candles[%d].%s", i, ve.Field), Reason: ve.Reason}
		}
		if i > 0 && c.Timestamp < cs[i-1].Timestamp {
			return &ValidationError{
				Field:  fmt.Sprintf("candles[%d].timestamp", i),
				Reason: fmt.Sprintf("must be >= %d (previous candle)", cs[i-1].Timestamp),
			}
		}
	}
	return nil
}

// ValidateCandleBatch checks the batch symbol, then the series. Candles that
// carry their own symbol must match the batch symbol.
func (v *Validator) ValidateCandleBatch(b CandleBatch) error {
	if err := v.check(b); err != nil {
		return err
	}
	switch {
	case len(b.Candles) == 0:
		return &ValidationError{Field: "candles", Reason: "must not be empty"}
	case len(b.Candles) > MaxBatchSize:
		return &ValidationError{Field: "candles", Reason: fmt.Sprintf("must contain at most %d items", MaxBatchSize)}
	}
	for i, c := range b.Candles {
		if c.Symbol != "" && !strings.EqualFold(c.Symbol, b.Symbol) {
			return &ValidationError{
				Field:  fmt.Sprintf("candles[%d].symbol", i),
				Reason: fmt.Sprintf("must equal batch symbol %s", b.Symbol),
			}
		}
	}
	return v.ValidateCandleSeries(b.Candles)
}

// ValidateTradingPair checks base != quote and the symbol derivation. An empty
// symbol is filled in with DeriveSymbol(base, quote). Under SymbolStrict the
// returned symbol is always the canonical derived one.
func (v *Validator) ValidateTradingPair(p TradingPair) (TradingPair, error) {
	if err := v.check(p); err != nil {
		return TradingPair{}, err
	}
	if p.Symbol == "" || v.policy == SymbolStrict {
		p.Symbol = DeriveSymbol(p.Base, p.Quote)
	}
	return p, nil
}

// ValidateTradeSignal checks the action set and that confidence lies in [0, 1].
func (v *Validator) ValidateTradeSignal(s TradeSignal) (TradeSignal, error) {
	if err := v.check(s); err != nil {
		return TradeSignal{}, err
	}
	return s, nil
}

func (v *Validator) check(value interface{}) error {
	err := v.v.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
	}
	return &ValidationError{Field: "", Reason: err.Error()}
}

func (v *Validator) pairRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(TradingPair)
	if p.Base == "" || p.Quote == "" {
		return
	}
	if strings.EqualFold(p.Base, p.Quote) {
		sl.ReportError(p.Base, "base/quote", "Base", "differ", "")
		return
	}
	if v.policy == SymbolStrict && p.Symbol != "" {
		want := DeriveSymbol(p.Base, p.Quote)
		if !strings.EqualFold(p.Symbol, want) {
			sl.ReportError(p.Symbol, "symbol", "Symbol", "derived", want)
		}
	}
}

func candleOrdering(sl validator.StructLevel) {
	c := sl.Current().Interface().(Candle)
	if reason := c.ohlcViolation(); reason != "" {
		sl.ReportError(c.High, "ohlc", "High", "ohlc", reason)
	}
}

func isFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isUnitInterval(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f >= 0 && f <= 1
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "alphanum":
		return "must be alphanumeric"
	case "finite":
		return "must be a finite number"
	case "gte":
		return "must be >= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "unit":
		return "must be within [0, 1]"
	case "oneof":
		return "not in {" + strings.Join(strings.Fields(fe.Param()), ", ") + "}"
	case "differ":
		return "must differ"
	case "derived":
		return "must equal " + fe.Param()
	case "ohlc":
		return fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

var defaultValidator = NewValidator()

// ValidateCandle validates c with the default (strict) validator.
func ValidateCandle(c Candle) (Candle, error) { return defaultValidator.ValidateCandle(c) }

// ValidateCandleSeries validates cs with the default validator.
func ValidateCandleSeries(cs []Candle) error { return defaultValidator.ValidateCandleSeries(cs) }

// ValidateCandleBatch validates b with the default strict validator.
func ValidateCandleBatch(b CandleBatch) error { return defaultValidator.ValidateCandleBatch(b) }

// ValidateTradingPair validates p with the default (strict) validator.
func ValidateTradingPair(p TradingPair) (TradingPair, error) {
	return defaultValidator.ValidateTradingPair(p)
}

// ValidateTradeSignal validates s with the default validator.
func ValidateTradeSignal(s TradeSignal) (TradeSignal, error) {
	return defaultValidator.ValidateTradeSignal(s)
}
