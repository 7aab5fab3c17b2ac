package matching

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Matcher pairs order items with invoice items. It holds no state between calls
// and is safe for concurrent use.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher that accepts fuzzy matches scoring at least threshold.
func NewMatcher(threshold float64) (*Matcher, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return nil, lineitem.ConfigurationError{
			Field:   "fuzzy threshold",
			Value:   strconv.FormatFloat(threshold, 'f', -1, 64),
			Message: "must be between 0 and 100",
		}
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold returns the minimum accepted fuzzy score.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match pairs the two item lists. Neither input is modified.
func (m *Matcher) Match(order, invoice []lineitem.LineItem) Result {
	result, _ := m.MatchContext(context.Background(), order, invoice)
	return result
}

// MatchContext is Match with cancellation checked between fuzzy scoring rows.
func (m *Matcher) MatchContext(ctx context.Context, order, invoice []lineitem.LineItem) (Result, error) {
	s := &matchState{
		Result: Result{
			Matches:          []MatchPair{},
			UnmatchedOrder:   []UnmatchedItem{},
			UnmatchedInvoice: []UnmatchedItem{},
		},
		order:       order,
		invoice:     invoice,
		usedOrder:   make([]bool, len(order)),
		usedInvoice: make([]bool, len(invoice)),
		scores:      make(map[[2]int]float64),
	}

	s.Stats.SKUMatches = s.matchByKey(TierSKU, func(li lineitem.LineItem) string { return li.SKUKey })
	s.Stats.ExactMatches = s.matchByKey(TierExactDescription, func(li lineitem.LineItem) string { return li.DescriptionKey })

	fuzzyMatches, err := s.matchFuzzy(ctx, m.threshold)
	if err != nil {
		return Result{}, err
	}
	s.Stats.FuzzyMatches = fuzzyMatches

	s.collectUnmatched()
	return s.Result, nil
}

type matchState struct {
	Result

	order       []lineitem.LineItem
	invoice     []lineitem.LineItem
	usedOrder   []bool
	usedInvoice []bool
	scores      map[[2]int]float64 // Fuzzy score by (order, invoice) index
}

func (s *matchState) pair(o, i int, tier Tier, score float64) {
	s.usedOrder[o] = true
	s.usedInvoice[i] = true
	s.Matches = append(s.Matches, MatchPair{
		OrderItem:    s.order[o],
		InvoiceItem:  s.invoice[i],
		Tier:         tier,
		Score:        score,
		EditDistance: EditDistance(s.order[o].DescriptionKey, s.invoice[i].DescriptionKey),
	})
}

// matchByKey pairs items whose keys are identical, walking order items in
// document order. Among several candidates the one with the closest total wins,
// then the lowest source row. Empty keys never match.
func (s *matchState) matchByKey(tier Tier, key func(lineitem.LineItem) string) int {
	candidates := make(map[string][]int)
	for i, item := range s.invoice {
		if s.usedInvoice[i] {
			continue
		}
		if k := key(item); k != "" {
			candidates[k] = append(candidates[k], i)
		}
	}

	matched := 0
	for o, item := range s.order {
		if s.usedOrder[o] {
			continue
		}
		k := key(item)
		if k == "" {
			continue
		}

		best := -1
		for _, i := range candidates[k] {
			if s.usedInvoice[i] {
				continue
			}
			if best == -1 || s.closerTotal(item, i, best) {
				best = i
			}
		}
		if best >= 0 {
			s.pair(o, best, tier, 100)
			matched++
		}
	}
	return matched
}

// closerTotal reports whether invoice item i is a better candidate for item than
// invoice item j.
func (s *matchState) closerTotal(item lineitem.LineItem, i, j int) bool {
	di := s.invoice[i].TotalValue.Sub(item.TotalValue).Abs()
	dj := s.invoice[j].TotalValue.Sub(item.TotalValue).Abs()
	if c := di.Cmp(dj); c != 0 {
		return c < 0
	}
	if ri, rj := s.invoice[i].SourceRowIndex, s.invoice[j].SourceRowIndex; ri != rj {
		return ri < rj
	}
	return i < j
}

type fuzzyCandidate struct {
	order, invoice int
	score          float64
}

// matchFuzzy scores every remaining order item against every remaining invoice
// item, then repeatedly takes the highest-scoring pair whose items are both
// still free. Equal scores resolve to the lowest order row, then the lowest
// invoice row.
func (s *matchState) matchFuzzy(ctx context.Context, threshold float64) (int, error) {
	var candidates []fuzzyCandidate
	for o, orderItem := range s.order {
		if s.usedOrder[o] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for i, invoiceItem := range s.invoice {
			if s.usedInvoice[i] {
				continue
			}
			score := TokenSortRatio(orderItem.DescriptionKey, invoiceItem.DescriptionKey)
			s.scores[[2]int{o, i}] = score
			if score >= threshold {
				candidates = append(candidates, fuzzyCandidate{order: o, invoice: i, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		if ra, rb := s.order[ca.order].SourceRowIndex, s.order[cb.order].SourceRowIndex; ra != rb {
			return ra < rb
		}
		if ra, rb := s.invoice[ca.invoice].SourceRowIndex, s.invoice[cb.invoice].SourceRowIndex; ra != rb {
			return ra < rb
		}
		if ca.order != cb.order {
			return ca.order < cb.order
		}
		return ca.invoice < cb.invoice
	})

	matched := 0
	for _, c := range candidates {
		if s.usedOrder[c.order] || s.usedInvoice[c.invoice] {
			continue
		}
		s.pair(c.order, c.invoice, TierFuzzy, c.score)
		matched++
	}
	return matched, nil
}

// collectUnmatched lists the leftover items of both sides. BestScore only
// considers counterparts that are left over too.
func (s *matchState) collectUnmatched() {
	for o, item := range s.order {
		if s.usedOrder[o] {
			continue
		}
		left, best := false, 0.0
		for i := range s.invoice {
			if !s.usedInvoice[i] {
				left = true
				best = math.Max(best, s.scores[[2]int{o, i}])
			}
		}
		s.UnmatchedOrder = append(s.UnmatchedOrder, unmatched(item, left, best))
	}
	for i, item := range s.invoice {
		if s.usedInvoice[i] {
			continue
		}
		left, best := false, 0.0
		for o := range s.order {
			if !s.usedOrder[o] {
				left = true
				best = math.Max(best, s.scores[[2]int{o, i}])
			}
		}
		s.UnmatchedInvoice = append(s.UnmatchedInvoice, unmatched(item, left, best))
	}
}

func unmatched(item lineitem.LineItem, candidatesLeft bool, best float64) UnmatchedItem {
	reason := ReasonNoCandidate
	if candidatesLeft {
		reason = ReasonBelowThreshold
	}
	return UnmatchedItem{Item: item, Reason: reason, BestScore: best}
}
