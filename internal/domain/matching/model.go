// Package matching pairs purchase-order line items with proforma-invoice line
// items. Pairing runs in three tiers: SKU, exact description, then fuzzy
// description similarity.
package matching

import (
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// DefaultThreshold is the minimum fuzzy score accepted when none is configured.
const DefaultThreshold = 80.0

// Tier identifies the strategy that produced a match.
type Tier string

const (
	TierSKU              Tier = "SKU"
	TierExactDescription Tier = "EXACT_DESCRIPTION"
	TierFuzzy            Tier = "FUZZY"
)

// UnmatchedReason explains why an item has no counterpart.
type UnmatchedReason string

const (
	// ReasonNoCandidate: no item of the other document was left to pair with.
	ReasonNoCandidate UnmatchedReason = "NO_CANDIDATE"
	// ReasonBelowThreshold: candidates were left but none scored high enough.
	ReasonBelowThreshold UnmatchedReason = "BELOW_THRESHOLD"
)

// MatchPair links one order item to one invoice item.
type MatchPair struct {
	OrderItem    lineitem.LineItem `json:"order_item"`
	InvoiceItem  lineitem.LineItem `json:"invoice_item"`
	Tier         Tier              `json:"match_tier"`
	Score        float64           `json:"match_score"`   // 100 for SKU and exact tiers
	EditDistance int               `json:"edit_distance"` // Levenshtein distance between description keys
}

// UnmatchedItem is an item left without a counterpart.
type UnmatchedItem struct {
	Item       lineitem.LineItem `json:"item"`
	Reason     UnmatchedReason   `json:"reason"`
	BestScore  float64           `json:"best_score,omitempty"` // Highest fuzzy score against a counterpart left unmatched
	Suggestion *Suggestion       `json:"suggestion,omitempty"`
}

// Stats counts matches per tier.
type Stats struct {
	SKUMatches   int `json:"sku_matches"`
	ExactMatches int `json:"exact_description_matches"`
	FuzzyMatches int `json:"fuzzy_matches"`
}

// Result is the outcome of matching two documents.
type Result struct {
	Matches          []MatchPair     `json:"matches"`
	UnmatchedOrder   []UnmatchedItem `json:"unmatched_order"`
	UnmatchedInvoice []UnmatchedItem `json:"unmatched_invoice"`
	Stats            Stats           `json:"stats"`
}
