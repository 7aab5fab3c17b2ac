package comparison

import (
	"fmt"
	"sort"

	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

const relatedItemMaxRunes = 50

const (
	actionHigh      = "Contact vendor to verify pricing and quantities before approval"
	actionZeroValue = "Order line has zero value; confirm the charge with the vendor"
	actionLow       = "Review during routine reconciliation"
)

// NewAlert renders the alert for rec. rec must have LOW or HIGH severity.
func NewAlert(rec DiscrepancyRecord, currency string) Alert {
	pct := "n/a"
	if rec.PercentDiff.Valid {
		pct = money.FormatPercent(rec.PercentDiff.Decimal)
	}
	related := truncateRunes(rec.Pair.OrderItem.Description, relatedItemMaxRunes)

	action := actionLow
	switch {
	case rec.Severity == SeverityHigh && rec.Pair.OrderItem.TotalValue.IsZero():
		action = actionZeroValue
	case rec.Severity == SeverityHigh:
		action = actionHigh
	}

	return Alert{
		Severity: rec.Severity,
		Message: fmt.Sprintf("Total value discrepancy of %s (%s) for '%s'",
			money.FormatSigned(rec.TotalValueDiff, currency), pct, related),
		SuggestedAction: action,
		RelatedItem:     related,
		TotalValueDiff:  rec.TotalValueDiff,
	}
}

// BuildAlerts returns one alert per record with a severity other than NONE,
// ordered by absolute total difference, largest first. Equal differences keep
// record order.
func BuildAlerts(records []DiscrepancyRecord, currency string) []Alert {
	alerts := make([]Alert, 0)
	for _, rec := range records {
		if rec.Severity == SeverityNone {
			continue
		}
		alerts = append(alerts, NewAlert(rec, currency))
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].TotalValueDiff.Abs().GreaterThan(alerts[j].TotalValueDiff.Abs())
	})
	return alerts
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
