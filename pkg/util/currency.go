package util

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is used by FormatCurrency when no code is given.
const DefaultCurrency = "USD"

// en-US narrow symbols; other ISO codes print as "<CODE> <amount>".
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "CA$",
	"AUD": "A$",
	"CNY": "CN¥",
	"INR": "₹",
	"KRW": "₩",
}

// FormatCurrency renders amount the way an en-US locale prints money:
// FormatCurrency(-1234.5, "USD") == "-$1,234.50". Minor units follow the
// ISO 4217 standard rounding for the code (JPY has none). Negative amounts
// keep their sign even when they round to zero.
func FormatCurrency(amount float64, code string) (string, error) {
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return "", fmt.Errorf("currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)

	sign := ""
	if math.Signbit(amount) {
		sign = "-"
	}
	d := decimal.NewFromFloat(math.Abs(amount)).Round(int32(scale))
	p := message.NewPrinter(language.AmericanEnglish)
	num := p.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(scale)))

	iso := unit.String()
	if sym, ok := currencySymbols[iso]; ok {
		return sign + sym + num, nil
	}
	return sign + iso + " " + num, nil
}

// FormatPrice formats amount in quote when quote is an ISO currency, and falls
// back to "<amount> <quote>" for crypto quotes such as USDT. An empty quote
// yields the bare amount.
func FormatPrice(amount float64, quote string) string {
	if quote == "" {
		return decimal.NewFromFloat(amount).String()
	}
	if s, err := FormatCurrency(amount, quote); err == nil {
		return s
	}
	return decimal.NewFromFloat(amount).String() + " " + quote
}
