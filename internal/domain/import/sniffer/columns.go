package sniffer

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Role is the meaning of a line-item table column.
type Role int

const (
	RoleNone Role = iota
	RoleSKU
	RoleDescription
	RoleQuantity
	RoleUnitPrice
	RoleTotal
)

func (r Role) String() string {
	switch r {
	case RoleSKU:
		return "sku"
	case RoleDescription:
		return "description"
	case RoleQuantity:
		return "quantity"
	case RoleUnitPrice:
		return "unit_price"
	case RoleTotal:
		return "total"
	default:
		return "none"
	}
}

// headerRule maps header keywords to a role. Rules are evaluated in order and the
// first rule with a keyword contained in the header wins, so "Total Price" is a
// total and "Part Description" is a description.
type headerRule struct {
	role     Role
	contains []string
	equals   []string
}

var headerRules = []headerRule{
	{role: RoleTotal, contains: []string{"total", "amount", "extended", "line value", "ext price", "ext. price", "net value", "montant", "importe", "valor total", "summe", "gesamt"}},
	{role: RoleUnitPrice, contains: []string{"unit price", "price", "unit cost", "cost", "rate", "u/p", "preço", "precio", "prix", "preis"}},
	{role: RoleQuantity, contains: []string{"qty", "quantity", "qté", "quant", "cantidad", "menge"}, equals: []string{"units", "pcs", "count", "q"}},
	{role: RoleDescription, contains: []string{"desc", "designation", "désignation", "details", "bezeichnung"}},
	{role: RoleSKU, contains: []string{"sku", "part", "code", "ref", "model", "item no", "item #", "item number", "catalog", "cat. no", "article no", "artikel"}},
	{role: RoleDescription, contains: []string{"product", "item", "name", "goods", "material", "article", "service", "produto", "producto"}},
}

// columnMatcher is built once from headerRules.
type columnMatcher struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	ruleOf   []int // keyword index -> rule index
	equals   map[string]int
}

var (
	columnMatcherOnce sync.Once
	sharedMatcher     *columnMatcher
)

func getColumnMatcher() *columnMatcher {
	columnMatcherOnce.Do(func() {
		cm := &columnMatcher{equals: make(map[string]int)}
		for ruleIdx, rule := range headerRules {
			for _, kw := range rule.contains {
				cm.keywords = append(cm.keywords, kw)
				cm.ruleOf = append(cm.ruleOf, ruleIdx)
			}
			for _, kw := range rule.equals {
				cm.equals[kw] = ruleIdx
			}
		}
		cm.matcher = ahocorasick.NewStringMatcher(cm.keywords)
		sharedMatcher = cm
	})
	return sharedMatcher
}

// normalizeHeader lowercases a header and collapses whitespace and trailing punctuation.
func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.Join(strings.Fields(h), " ")
	return strings.TrimRight(h, ":.")
}

// DetectRole returns the role of a single header cell.
func DetectRole(header string) Role {
	h := normalizeHeader(header)
	if h == "" {
		return RoleNone
	}

	cm := getColumnMatcher()
	if ruleIdx, ok := cm.equals[h]; ok {
		return headerRules[ruleIdx].role
	}

	best := -1
	for _, kwIdx := range cm.matcher.Match([]byte(h)) {
		if ruleIdx := cm.ruleOf[kwIdx]; best == -1 || ruleIdx < best {
			best = ruleIdx
		}
	}
	if best >= 0 {
		return headerRules[best].role
	}

	return fuzzyRole(h)
}

// fuzzyRole catches accented and misspelled headers ("Descripción", "Quantiy").
func fuzzyRole(h string) Role {
	folded := foldHeader(h)
	for _, rule := range headerRules {
		if fuzzyMatchesAny(folded, rule.contains) || fuzzyMatchesAny(folded, rule.equals) {
			return rule.role
		}
	}
	return RoleNone
}

func fuzzyMatchesAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if len(kw) < 4 {
			continue
		}
		if fuzzy.MatchNormalizedFold(kw, folded) && fuzzy.MatchNormalizedFold(folded, kw) {
			return true
		}
		if len(kw) >= 6 && fuzzy.LevenshteinDistance(folded, kw) <= 2 {
			return true
		}
	}
	return false
}

func foldHeader(h string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			return r
		}
		return -1
	}, h)
}

// ColumnSuggestions provides auto-detected column indices (-1 when not found).
type ColumnSuggestions struct {
	SKUCol       int
	DescCol      int
	QuantityCol  int
	UnitPriceCol int
	TotalCol     int
}

// RoleCount returns how many roles were detected.
func (c ColumnSuggestions) RoleCount() int {
	n := 0
	for _, idx := range []int{c.SKUCol, c.DescCol, c.QuantityCol, c.UnitPriceCol, c.TotalCol} {
		if idx >= 0 {
			n++
		}
	}
	return n
}

// IsLineItemHeader reports whether the detected columns describe a line-item table:
// a description plus at least a quantity or a unit price.
func (c ColumnSuggestions) IsLineItemHeader() bool {
	return c.DescCol >= 0 && (c.QuantityCol >= 0 || c.UnitPriceCol >= 0)
}

// Missing lists the required roles that were not detected.
func (c ColumnSuggestions) Missing() []string {
	var missing []string
	if c.DescCol < 0 {
		missing = append(missing, RoleDescription.String())
	}
	if c.QuantityCol < 0 {
		missing = append(missing, RoleQuantity.String())
	}
	if c.UnitPriceCol < 0 {
		missing = append(missing, RoleUnitPrice.String())
	}
	return missing
}

// Cell returns the trimmed value at idx, or "" when idx is not present in row.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// SuggestColumns attempts to auto-match columns based on header names.
// Each role takes the leftmost column detected for it.
func SuggestColumns(headers []string) *ColumnSuggestions {
	suggestions := &ColumnSuggestions{
		SKUCol:       -1,
		DescCol:      -1,
		QuantityCol:  -1,
		UnitPriceCol: -1,
		TotalCol:     -1,
	}

	for i, header := range headers {
		var slot *int
		switch DetectRole(header) {
		case RoleSKU:
			slot = &suggestions.SKUCol
		case RoleDescription:
			slot = &suggestions.DescCol
		case RoleQuantity:
			slot = &suggestions.QuantityCol
		case RoleUnitPrice:
			slot = &suggestions.UnitPriceCol
		case RoleTotal:
			slot = &suggestions.TotalCol
		}
		if slot != nil && *slot == -1 {
			*slot = i
		}
	}

	return suggestions
}

// summaryKeywords mark rows below the table such as "Subtotal" or "Grand Total".
var summaryKeywords = []string{
	"subtotal", "sub-total", "sub total", "grand total", "total", "tax", "vat", "gst",
	"shipping", "freight", "handling", "discount", "balance due", "amount due", "net total",
}

var (
	summaryMatcherOnce sync.Once
	summaryMatcher     *ahocorasick.Matcher
)

// IsSummaryRow reports whether a table row is a totals/tax/shipping line rather
// than a product. Such rows start with a summary keyword and carry no quantity.
func IsSummaryRow(row []string, cols ColumnSuggestions) bool {
	if Cell(row, cols.QuantityCol) != "" {
		return false
	}

	first := ""
	for _, cell := range row {
		if c := strings.TrimSpace(cell); c != "" {
			first = strings.ToLower(c)
			break
		}
	}
	if first == "" {
		return false
	}

	summaryMatcherOnce.Do(func() {
		summaryMatcher = ahocorasick.NewStringMatcher(summaryKeywords)
	})
	for _, idx := range summaryMatcher.Match([]byte(first)) {
		if strings.HasPrefix(first, summaryKeywords[idx]) {
			return true
		}
	}
	return false
}
