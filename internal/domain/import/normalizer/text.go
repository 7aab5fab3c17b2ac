package normalizer

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

var (
	// Keeps letters, digits, underscore, whitespace and - . , ( ) & /
	artifactPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,()&/]`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// CleanText normalizes description text for display.
// It trims, collapses internal whitespace and strips formatting artifacts while
// keeping meaningful tokens such as "USB-C", "7-in-1" or "1080p".
// Placeholders ("N/A", "TBD", ...) become the empty string.
func CleanText(raw string) string {
	text := strings.TrimSpace(raw)
	text = spacePattern.ReplaceAllString(text, " ")
	text = artifactPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	if money.IsPlaceholder(text) {
		return ""
	}
	return text
}

// ComparisonKey returns the case-insensitive comparison copy of cleaned text.
func ComparisonKey(clean string) string {
	return strings.ToLower(clean)
}

// CleanSKU trims a SKU and collapses inner whitespace. The SKU is otherwise kept
// verbatim for display. Placeholders become the empty string.
func CleanSKU(raw string) string {
	sku := strings.TrimSpace(spacePattern.ReplaceAllString(raw, " "))
	if money.IsPlaceholder(sku) {
		return ""
	}
	return sku
}
