package models

import "strings"

// TradingPair identifies a tradable instrument: Base priced in Quote.
type TradingPair struct {
	Base   string `json:"base" yaml:"base" validate:"required,alphanum,max=16"`
	Quote  string `json:"quote" yaml:"quote" validate:"required,alphanum,max=16"`
	Symbol string `json:"symbol" yaml:"symbol"`
}

// DeriveSymbol returns the canonical symbol for a base/quote pair (BTC, USDT -> BTCUSDT).
func DeriveSymbol(base, quote string) string {
	return strings.ToUpper(base) + strings.ToUpper(quote)
}

// SymbolPolicy controls how TradingPair.Symbol is checked against DeriveSymbol.
type SymbolPolicy string

const (
	// SymbolStrict rejects a symbol that is not the derived one.
	SymbolStrict SymbolPolicy = "strict"
	// SymbolAdvisory accepts any caller-supplied symbol.
	SymbolAdvisory SymbolPolicy = "advisory"
)

// IsValid reports whether p is a known policy.
func (p SymbolPolicy) IsValid() bool {
	return p == SymbolStrict || p == SymbolAdvisory
}
