// Package prompts renders trading prompts for an external language model.
// Inputs are validated with the domain validators before rendering; nothing
// here talks to a model.
package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"AutoTrader/internal/domain/models"
)

type Kind string

const (
	KindLongTerm  Kind = "longterm"
	KindArbitrage Kind = "arbitrage"
)

// Kinds lists the supported prompt kinds.
func Kinds() []Kind { return []Kind{KindLongTerm, KindArbitrage} }

// ErrUnknownKind is returned by Render for kinds outside Kinds().
var ErrUnknownKind = errors.New("unknown prompt kind")

const (
	longTermPrefix  = "Analyze long-term trading opportunities based on: "
	arbitragePrefix = "Identify arbitrage opportunities from: "
)

// LongTermInput is the payload of a long-term analysis prompt.
type LongTermInput struct {
	Pair    models.TradingPair   `json:"pair"`
	Candles []models.Candle      `json:"candles"`
	Signals []models.TradeSignal `json:"signals,omitempty"`
}

// ArbitrageInput is the payload of an arbitrage prompt. Candles are keyed by
// pair symbol.
type ArbitrageInput struct {
	Pairs   []models.TradingPair       `json:"pairs"`
	Candles map[string][]models.Candle `json:"candles"`
}

type Renderer struct {
	v *models.Validator
}

func NewRenderer(v *models.Validator) *Renderer {
	if v == nil {
		v = models.NewValidator()
	}
	return &Renderer{v: v}
}

// Render decodes raw into the typed input for kind and renders it. Unknown
// fields and non-object payloads are rejected.
func (r *Renderer) Render(kind Kind, raw []byte) (string, error) {
	switch kind {
	case KindLongTerm:
		var in LongTermInput
		if err := decodeStrict(raw, &in); err != nil {
			return "", err
		}
		return r.LongTerm(in)
	case KindArbitrage:
		var in ArbitrageInput
		if err := decodeStrict(raw, &in); err != nil {
			return "", err
		}
		return r.Arbitrage(in)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// LongTerm validates in and renders the long-term analysis prompt.
func (r *Renderer) LongTerm(in LongTermInput) (string, error) {
	pair, err := r.v.ValidateTradingPair(in.Pair)
	if err != nil {
		return "", prefixed("pair", err)
	}
	in.Pair = pair
	if len(in.Candles) == 0 {
		return "", &models.ValidationError{Field: "candles", Reason: "must not be empty"}
	}
	if err := r.v.ValidateCandleSeries(in.Candles); err != nil {
		return "", err
	}
	for i, s := range in.Signals {
		if _, err := r.v.ValidateTradeSignal(s); err != nil {
			return "", prefixed(fmt.Sprintf("signals[%d]", i), err)
		}
	}
	return render(longTermPrefix, in)
}

// Arbitrage validates in and renders the arbitrage prompt. At least two pairs
// are required and every candle series must belong to one of them.
func (r *Renderer) Arbitrage(in ArbitrageInput) (string, error) {
	if len(in.Pairs) < 2 {
		return "", &models.ValidationError{Field: "pairs", Reason: "must contain at least 2 items"}
	}
	known := make(map[string]struct{}, len(in.Pairs))
	for i, p := range in.Pairs {
		vp, err := r.v.ValidateTradingPair(p)
		if err != nil {
			return "", prefixed(fmt.Sprintf("pairs[%d]", i), err)
		}
		in.Pairs[i] = vp
		known[strings.ToUpper(vp.Symbol)] = struct{}{}
	}

	symbols := make([]string, 0, len(in.Candles))
	for s := range in.Candles {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		if _, ok := known[strings.ToUpper(s)]; !ok {
			return "", &models.ValidationError{Field: "candles." + s, Reason: "symbol is not in pairs"}
		}
		if err := r.v.ValidateCandleSeries(in.Candles[s]); err != nil {
			return "", prefixed("candles."+s, err)
		}
	}
	return render(arbitragePrefix, in)
}

func decodeStrict(raw []byte, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return &models.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func render(prefix string, data interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("encode prompt data: %w", err)
	}
	return prefix + strings.TrimSuffix(buf.String(), "\n"), nil
}

func prefixed(field string, err error) error {
	ve, ok := models.AsValidationError(err)
	if !ok {
		return err
	}
	return &models.ValidationError{Field: field + "." + ve.Field, Reason: ve.Reason}
}
