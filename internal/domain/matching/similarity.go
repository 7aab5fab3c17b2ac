package matching

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// TokenSortRatio scores two descriptions from 0 to 100 regardless of word order.
// Both strings are lowercased, split on whitespace, and their tokens sorted
// before an Indel similarity is computed, so "Mouse Wireless" and "wireless
// mouse" score 100.
func TokenSortRatio(a, b string) float64 {
	return indelRatio(tokenSort(a), tokenSort(b))
}

// EditDistance returns the Levenshtein distance between two strings.
func EditDistance(a, b string) int {
	return fuzzy.LevenshteinDistance(a, b)
}

func tokenSort(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// indelRatio is 100 × (1 − d / (len(a)+len(b))), where d is the insert/delete
// distance, counted in runes.
func indelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(ra, rb)
	distance := total - 2*lcs
	return 100 * float64(total-distance) / float64(total)
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
