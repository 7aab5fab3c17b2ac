package comparison

import (
	"context"
	"fmt"
	"strings"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
	"github.com/FACorreiaa/po-reconciler/pkg/money"
)

// Options controls a comparison run.
type Options struct {
	FuzzyThreshold    float64
	ZeroValueSeverity Severity // LOW or HIGH; empty means HIGH
	Currency          string   // Overrides the currency found in the documents
	Suggestions       bool     // Attach a closest-candidate hint to BELOW_THRESHOLD items
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:    matching.DefaultThreshold,
		ZeroValueSeverity: SeverityHigh,
		Suggestions:       true,
	}
}

// Compare reconciles an order against an invoice.
func Compare(order, invoice lineitem.Document, opts Options) (*Result, error) {
	return CompareContext(context.Background(), order, invoice, opts)
}

// Validate checks the options without running a comparison. It returns the
// same ConfigurationError Compare would.
func (o Options) Validate() error {
	if _, err := resolveZeroSeverity(o.ZeroValueSeverity); err != nil {
		return err
	}
	if _, err := resolveCurrency(o.Currency, "", ""); err != nil {
		return err
	}
	_, err := matching.NewMatcher(o.FuzzyThreshold)
	return err
}

// CompareContext is Compare with cancellation between matching rows.
// A ConfigurationError is returned before any matching happens.
func CompareContext(ctx context.Context, order, invoice lineitem.Document, opts Options) (*Result, error) {
	zeroSeverity, err := resolveZeroSeverity(opts.ZeroValueSeverity)
	if err != nil {
		return nil, err
	}
	currency, err := resolveCurrency(opts.Currency, order.Metadata.Currency, invoice.Metadata.Currency)
	if err != nil {
		return nil, err
	}
	matcher, err := matching.NewMatcher(opts.FuzzyThreshold)
	if err != nil {
		return nil, err
	}

	match, err := matcher.MatchContext(ctx, order.Items, invoice.Items)
	if err != nil {
		return nil, err
	}
	if opts.Suggestions {
		if err := matching.AttachSuggestions(&match); err != nil {
			return nil, fmt.Errorf("failed to attach suggestions: %w", err)
		}
	}

	comparator := NewComparator(zeroSeverity)
	records := make([]DiscrepancyRecord, len(match.Matches))
	for i, pair := range match.Matches {
		records[i] = comparator.Compare(pair)
	}
	alerts := BuildAlerts(records, currency)

	unmatched := make([]matching.UnmatchedItem, 0, len(match.UnmatchedOrder)+len(match.UnmatchedInvoice))
	unmatched = append(unmatched, match.UnmatchedOrder...)
	unmatched = append(unmatched, match.UnmatchedInvoice...)

	return &Result{
		Parameters: Parameters{
			FuzzyThreshold:    matcher.Threshold(),
			ZeroValueSeverity: zeroSeverity,
			Currency:          currency,
			OrderDocumentID:   order.ID,
			InvoiceDocumentID: invoice.ID,
		},
		OrderMetadata:   order.Metadata,
		InvoiceMetadata: invoice.Metadata,
		Records:         records,
		Unmatched:       unmatched,
		Summary:         Aggregate(records, match, alerts),
		Alerts:          alerts,
		Warnings:        append(documentWarnings(order), documentWarnings(invoice)...),
	}, nil
}

func resolveZeroSeverity(s Severity) (Severity, error) {
	if s == "" {
		return SeverityHigh, nil
	}
	sev, ok := ParseSeverity(string(s))
	if !ok {
		return "", lineitem.ConfigurationError{
			Field:   "zero value severity",
			Value:   string(s),
			Message: "must be LOW or HIGH",
		}
	}
	return sev, nil
}

// resolveCurrency prefers the explicit code, then the order's, then the invoice's.
func resolveCurrency(explicit, orderCurrency, invoiceCurrency string) (string, error) {
	if code := strings.ToUpper(strings.TrimSpace(explicit)); code != "" {
		if !money.IsKnownCurrency(code) {
			return "", lineitem.ConfigurationError{
				Field:   "currency",
				Value:   explicit,
				Message: "unknown ISO-4217 code",
			}
		}
		return code, nil
	}
	for _, code := range []string{orderCurrency, invoiceCurrency} {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" && money.IsKnownCurrency(code) {
			return code, nil
		}
	}
	return money.USD, nil
}

func documentWarnings(doc lineitem.Document) []string {
	warnings := make([]string, 0)
	if doc.IsEmpty() {
		warnings = append(warnings, lineitem.EmptyDocumentError{Document: doc.Kind, ID: doc.ID}.Error())
	}
	for _, pe := range doc.Errors {
		warnings = append(warnings, pe.Error())
	}
	for _, item := range doc.Items {
		for _, note := range item.Notes {
			warnings = append(warnings, fmt.Sprintf("%s row %d: %s", doc.Kind.Short(), item.SourceRowIndex, note))
		}
	}
	return warnings
}
