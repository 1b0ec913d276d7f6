package models

// Candle is a single OHLCV observation for one trading pair over a time bucket.
// Values are immutable once validated; producers emit them at fixed intervals
// in non-decreasing timestamp order per pair.
type Candle struct {
	Timestamp int64   `json:"timestamp" validate:"gte=0"`
	Open      float64 `json:"open" validate:"finite,gte=0"`
	High      float64 `json:"high" validate:"finite,gte=0"`
	Low       float64 `json:"low" validate:"finite,gte=0"`
	Close     float64 `json:"close" validate:"finite,gte=0"`
	Volume    float64 `json:"volume" validate:"finite,gte=0"`

	// Symbol is transport metadata set by producers that multiplex pairs on one
	// stream. It is not part of the OHLCV contract.
	Symbol string `json:"symbol,omitempty" validate:"omitempty,alphanum,max=32"`
}

// ohlcViolation returns a non-empty reason when the price ordering invariant
// low <= open, close <= high does not hold.
func (c Candle) ohlcViolation() string {
	switch {
	case c.High < c.Low:
		return "high must be >= low"
	case c.Low > c.Open || c.Low > c.Close:
		return "low must be <= open and close"
	case c.High < c.Open || c.High < c.Close:
		return "high must be >= open and close"
	}
	return ""
}

// CandleBatch is a run of candles for one symbol, in timestamp order. It is
// the unit the pipeline publishes and stores.
type CandleBatch struct {
	Symbol  string   `json:"symbol" validate:"required,alphanum,max=32"`
	Candles []Candle `json:"candles"`
}

// MaxBatchSize bounds CandleBatch.Candles.
const MaxBatchSize = 5000
