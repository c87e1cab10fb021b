package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ratesPerUSD maps currency codes to the number of local currency units per
// 1 USD. Approximate 2024 reference rates used for reporting only; contract
// and invoice amounts are always analysed in their own currency.
var ratesPerUSD = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("0.79"),
	"CAD": decimal.RequireFromString("1.36"),
	"AUD": decimal.RequireFromString("1.52"),
	"KES": decimal.RequireFromString("129.5"),
	"NGN": decimal.RequireFromString("1580"),
	"ZAR": decimal.RequireFromString("18.6"),
}

func lookup(currency string) (decimal.Decimal, error) {
	rate, ok := ratesPerUSD[strings.ToUpper(currency)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return rate, nil
}

// ToUSD converts a local currency amount to USD, rounded to cents.
func ToUSD(amount float64, currency string) (float64, error) {
	return Convert(amount, currency, "USD")
}

// FromUSD converts a USD amount to local currency, rounded to cents.
func FromUSD(usdAmount float64, currency string) (float64, error) {
	return Convert(usdAmount, "USD", currency)
}

// Convert converts amount between two supported currencies via USD. The
// result is rounded to cents once, after both legs.
func Convert(amount float64, from, to string) (float64, error) {
	fromRate, err := lookup(from)
	if err != nil {
		return 0, err
	}
	toRate, err := lookup(to)
	if err != nil {
		return 0, err
	}

	v := decimal.NewFromFloat(amount).
		Mul(toRate).
		DivRound(fromRate, 8).
		Round(2)
	return v.InexactFloat64(), nil
}

// Rate returns the exchange rate for a given currency (units per 1 USD).
func Rate(currency string) (float64, error) {
	rate, err := lookup(currency)
	if err != nil {
		return 0, err
	}
	return rate.InexactFloat64(), nil
}

// Supported lists the known currency codes in sorted order.
func Supported() []string {
	codes := make([]string, 0, len(ratesPerUSD))
	for c := range ratesPerUSD {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
