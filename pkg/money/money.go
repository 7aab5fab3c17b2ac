// Package money provides currency-aware display and exact parsing of document amounts.
// Arithmetic stays in shopspring/decimal; go-money is used for ISO-4217 formatting.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
	CHF = "CHF" // Swiss Franc
	CAD = "CAD" // Canadian Dollar
	AUD = "AUD" // Australian Dollar
	CNY = "CNY" // Chinese Yuan
	INR = "INR" // Indian Rupee
)

var (
	ErrEmptyAmount   = errors.New("empty amount")
	ErrInvalidAmount = errors.New("invalid amount")
)

// displayFraction is the number of decimals every rendered amount carries,
// whatever the currency's minor unit.
const displayFraction = 2

// IsKnownCurrency reports whether code is a currency go-money can format.
func IsKnownCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// formatter returns a go-money formatter using the symbol, separators and
// template of currencyCode but a fixed two-decimal fraction. Unknown codes fall
// back to USD.
func formatter(currencyCode string) *money.Formatter {
	currency := money.GetCurrency(strings.ToUpper(currencyCode))
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	return money.NewFormatter(displayFraction, currency.Decimal, currency.Thousand, currency.Grapheme, currency.Template)
}

// ============================================================================
// Document amount parsing and formatting
// ============================================================================

// placeholders are values that mean "no value" in supplier documents.
var placeholders = map[string]struct{}{
	"":        {},
	"-":       {},
	"--":      {},
	"—":       {},
	"N/A":     {},
	"NA":      {},
	"TBD":     {},
	"TBA":     {},
	"PENDING": {},
	"NONE":    {},
}

// IsPlaceholder reports whether s is empty or a known "no value" marker.
func IsPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}

var (
	currencySymbols = []string{"R$", "US$", "$", "€", "£", "¥", "₹", "CHF"}
	isoCodePattern  = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|BRL|JPY|CHF|CAD|AUD|CNY|INR)\b`)
	digitsPattern   = regexp.MustCompile(`^[0-9.,]+$`)
)

// ParseDecimal parses an amount as written in a document into an exact decimal.
//
// Accepted forms include "1,234.56", "$1,234.56", "1.234,56 €", "USD 12", "(45.00)"
// and "45.00-". When europeanFormat is false the decimal separator is inferred:
// with both separators present the last one wins, a single comma followed by one
// or two digits is a decimal comma, and repeated dots are thousands separators.
// Placeholders return ErrEmptyAmount.
func ParseDecimal(s string, europeanFormat bool) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if IsPlaceholder(s) {
		return decimal.Zero, ErrEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	s = isoCodePattern.ReplaceAllString(s, "")
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ', '\'', '\t':
			return -1
		}
		return r
	}, s)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	if !digitsPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	s = normalizeSeparators(s, europeanFormat)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s so that "." is the only (optional) decimal separator.
func normalizeSeparators(s string, europeanFormat bool) string {
	if europeanFormat {
		// European: 1.234,56 -> 1234.56
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", ".")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}

	return s
}

// Format renders an amount with two decimals in the currency's display format,
// e.g. "$1,234.50", "-$14.50" or "¥0.77". Unknown currency codes fall back to USD.
func Format(amount decimal.Decimal, currencyCode string) string {
	hundredths := amount.Mul(hundred).Round(0).IntPart()
	return formatter(currencyCode).Format(hundredths)
}

// FormatSigned is Format with an explicit "+" on positive amounts.
func FormatSigned(amount decimal.Decimal, currencyCode string) string {
	if amount.IsPositive() {
		return "+" + Format(amount, currencyCode)
	}
	return Format(amount, currencyCode)
}

var hundred = decimal.NewFromInt(100)

// PercentOf returns part / whole × 100. ok is false when whole is zero.
func PercentOf(part, whole decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if whole.IsZero() {
		return decimal.Zero, false
	}
	return part.Mul(hundred).DivRound(whole, 8), true
}

// FormatPercent renders a percentage with one decimal, e.g. "10.0%".
func FormatPercent(pct decimal.Decimal) string {
	return pct.StringFixed(1) + "%"
}
