package sniffer

import (
	"strings"
)

// RegionalDialect represents inferred regional formatting for amounts
type RegionalDialect struct {
	DecimalSeparator   rune    // '.' (US) or ',' (EU)
	ThousandsSeparator rune    // ',' (US) or '.' (EU)
	CurrencyHint       string  // "EUR", "USD", "GBP", "BRL" if detected
	Confidence         float64 // 0.0-1.0 confidence score
	IsEuropeanFormat   bool    // Convenience flag: true if comma is decimal separator
}

// ProbeDialect analyzes sample rows to infer how amounts are written.
// It examines the given amount columns for decimal separators and every cell for
// currency symbols.
func ProbeDialect(sampleRows [][]string, amountCols ...int) *RegionalDialect {
	dialect := &RegionalDialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		Confidence:         0.5,
	}

	europeanHints := 0
	usHints := 0

	for _, row := range sampleRows {
		for _, idx := range amountCols {
			val := Cell(row, idx)
			if val == "" {
				continue
			}
			hint := analyzeAmountFormat(val)
			if hint > 0 {
				europeanHints++
			} else if hint < 0 {
				usHints++
			}
		}

		for _, cell := range row {
			switch {
			case strings.Contains(cell, "R$") || strings.Contains(cell, "BRL"):
				dialect.CurrencyHint = "BRL"
				europeanHints++
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				dialect.CurrencyHint = "EUR"
			case strings.Contains(cell, "£") || strings.Contains(cell, "GBP"):
				dialect.CurrencyHint = "GBP"
			case strings.Contains(cell, "$") || strings.Contains(cell, "USD"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "USD"
				}
			}
		}
	}

	if europeanHints > usHints {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.IsEuropeanFormat = true
	}

	totalHints := europeanHints + usHints
	if totalHints > 0 {
		winningHints := europeanHints
		if usHints > europeanHints {
			winningHints = usHints
		}
		dialect.Confidence = float64(winningHints) / float64(totalHints)
	}

	return dialect
}

// analyzeAmountFormat returns: >0 for European, <0 for US, 0 for ambiguous
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, val)
	cleaned = strings.TrimPrefix(cleaned, "-")

	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// Both present: last one is decimal separator
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1
		}
		return -1

	case hasComma && !hasDot:
		idx := strings.LastIndex(cleaned, ",")
		if len(cleaned[idx+1:]) <= 2 {
			return 1
		}
		return 0

	case hasDot && !hasComma:
		idx := strings.LastIndex(cleaned, ".")
		if len(cleaned[idx+1:]) <= 2 {
			return -1
		}
		return 0
	}

	return 0
}
