package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/po-reconciler/internal/domain/comparison"
	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
	"github.com/FACorreiaa/po-reconciler/internal/domain/matching"
)

type jsonRun struct {
	RunID           uuid.UUID             `json:"run_id"`
	GeneratedAt     time.Time             `json:"generated_at"`
	Parameters      comparison.Parameters `json:"parameters"`
	OrderMetadata   lineitem.Metadata     `json:"order_metadata"`
	InvoiceMetadata lineitem.Metadata     `json:"invoice_metadata"`
}

type jsonRecord struct {
	comparison.DiscrepancyRecord
	Flagged bool `json:"flagged,omitempty"`
}

type jsonReport struct {
	Run           jsonRun                   `json:"run"`
	Summary       *comparison.Summary       `json:"summary,omitempty"`
	Discrepancies *[]jsonRecord             `json:"discrepancies,omitempty"`
	Unmatched     *[]matching.UnmatchedItem `json:"unmatched_items,omitempty"`
	Alerts        *[]comparison.Alert       `json:"alerts,omitempty"`
	Warnings      []string                  `json:"warnings"`
}

// WriteJSON writes an indented JSON document. Disabled sections are omitted;
// enabled sections are present even when empty.
func WriteJSON(w io.Writer, rep Report, cfg Config) error {
	res := rep.Result
	out := jsonReport{
		Run: jsonRun{
			RunID:           rep.RunID,
			GeneratedAt:     rep.GeneratedAt.UTC(),
			Parameters:      res.Parameters,
			OrderMetadata:   res.OrderMetadata,
			InvoiceMetadata: res.InvoiceMetadata,
		},
		Warnings: nonNil(res.Warnings),
	}

	if cfg.IncludeSummary {
		summary := res.Summary
		out.Summary = &summary
	}
	if cfg.IncludeMatched {
		records := make([]jsonRecord, len(res.Records))
		for i, rec := range res.Records {
			records[i] = jsonRecord{DiscrepancyRecord: rec, Flagged: cfg.Highlight && rec.HasDiscrepancy}
		}
		out.Discrepancies = &records
	}
	if cfg.IncludeUnmatched {
		unmatched := nonNil(res.Unmatched)
		out.Unmatched = &unmatched
	}
	if cfg.IncludeAlerts {
		alerts := nonNil(res.Alerts)
		out.Alerts = &alerts
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
