package normalizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// Match types for SKU aliases
const (
	MatchExact  = "exact"
	MatchPrefix = "prefix"
	MatchRegex  = "regex"
)

// SKUAlias maps a supplier-specific code onto the buyer's canonical SKU.
// Loaded from a CSV file with the header "alias,sku,match_type".
type SKUAlias struct {
	Alias     string `csv:"alias"`
	SKU       string `csv:"sku"`
	MatchType string `csv:"match_type"` // "exact" (default), "prefix" or "regex"
}

type compiledAlias struct {
	pattern *regexp.Regexp
	sku     string
}

// AliasTable resolves SKU aliases. It only changes the comparison key of an
// item; the SKU shown in reports stays as written in the document.
// A nil *AliasTable resolves every SKU to itself.
type AliasTable struct {
	exact    map[string]string
	prefixes []SKUAlias
	patterns []compiledAlias
}

// NewAliasTable builds a table from alias definitions.
func NewAliasTable(aliases []SKUAlias) (*AliasTable, error) {
	t := &AliasTable{exact: make(map[string]string)}

	for i, a := range aliases {
		alias := strings.TrimSpace(a.Alias)
		sku := strings.TrimSpace(a.SKU)
		if alias == "" || sku == "" {
			return nil, fmt.Errorf("alias %d: alias and sku are required", i+1)
		}

		switch strings.ToLower(strings.TrimSpace(a.MatchType)) {
		case "", MatchExact:
			t.exact[strings.ToLower(alias)] = sku
		case MatchPrefix:
			t.prefixes = append(t.prefixes, SKUAlias{Alias: strings.ToLower(alias), SKU: sku, MatchType: MatchPrefix})
		case MatchRegex:
			re, err := regexp.Compile("(?i)" + alias)
			if err != nil {
				return nil, fmt.Errorf("alias %d: invalid pattern %q: %w", i+1, alias, err)
			}
			t.patterns = append(t.patterns, compiledAlias{pattern: re, sku: sku})
		default:
			return nil, fmt.Errorf("alias %d: unknown match type %q", i+1, a.MatchType)
		}
	}

	// Longest prefix wins
	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].Alias) > len(t.prefixes[j].Alias)
	})

	return t, nil
}

// LoadAliases reads alias definitions from CSV.
func LoadAliases(r io.Reader) (*AliasTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var rows []SKUAlias
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse alias CSV: %w", err)
	}
	return NewAliasTable(rows)
}

// LoadAliasFile reads alias definitions from a CSV file.
func LoadAliasFile(path string) (*AliasTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()

	return LoadAliases(f)
}

// Resolve returns the canonical SKU for sku, or sku itself when no alias applies.
// Exact aliases are checked first, then prefixes, then patterns.
func (t *AliasTable) Resolve(sku string) string {
	if t == nil || sku == "" {
		return sku
	}

	lower := strings.ToLower(sku)
	if canonical, ok := t.exact[lower]; ok {
		return canonical
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(lower, p.Alias) {
			return p.SKU
		}
	}
	for _, p := range t.patterns {
		if p.pattern.MatchString(sku) {
			return p.sku
		}
	}
	return sku
}

// Len returns the number of aliases in the table.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.exact) + len(t.prefixes) + len(t.patterns)
}
