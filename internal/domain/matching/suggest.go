package matching

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Suggestion points a reviewer at the most similar leftover item of the other
// document. It never changes the matching itself.
type Suggestion struct {
	RowIndex    int     `json:"row_index"`
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description"`
	Relevance   float64 `json:"relevance"`
}

// suggestDocument is the indexed form of a line item.
type suggestDocument struct {
	Description string `json:"description"`
	SKU         string `json:"sku"`
}

const suggestCandidates = 5

// SuggestionIndex is an in-memory full-text index over line items.
type SuggestionIndex struct {
	index bleve.Index
	items []lineitem.LineItem
}

// NewSuggestionIndex indexes items by description and SKU.
func NewSuggestionIndex(items []lineitem.LineItem) (*SuggestionIndex, error) {
	index, err := bleve.NewMemOnly(buildSuggestMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}

	batch := index.NewBatch()
	for i, item := range items {
		doc := suggestDocument{Description: item.Description, SKU: item.SKUKey}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index item %d: %w", item.SourceRowIndex, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to execute batch index: %w", err)
	}

	return &SuggestionIndex{index: index, items: items}, nil
}

func buildSuggestMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("sku", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Suggest returns the best hit for description, or nil when nothing matches.
// Equal relevance resolves to the lowest source row.
func (si *SuggestionIndex) Suggest(description string) (*Suggestion, error) {
	query := bleve.NewMatchQuery(description)
	query.SetField("description")
	query.SetFuzziness(1)

	req := bleve.NewSearchRequest(query)
	req.Size = suggestCandidates

	res, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion search failed: %w", err)
	}

	var best *Suggestion
	for _, hit := range res.Hits {
		idx, err := strconv.Atoi(hit.ID)
		if err != nil || idx < 0 || idx >= len(si.items) {
			continue
		}
		item := si.items[idx]
		if best == nil || hit.Score > best.Relevance ||
			(hit.Score == best.Relevance && item.SourceRowIndex < best.RowIndex) {
			best = &Suggestion{
				RowIndex:    item.SourceRowIndex,
				SKU:         item.SKU,
				Description: item.Description,
				Relevance:   hit.Score,
			}
		}
	}
	return best, nil
}

// Close releases the index.
func (si *SuggestionIndex) Close() error {
	return si.index.Close()
}

// AttachSuggestions sets a Suggestion on every BELOW_THRESHOLD item, searching
// the unmatched items of the other document.
func AttachSuggestions(result *Result) error {
	if err := attach(result.UnmatchedOrder, result.UnmatchedInvoice); err != nil {
		return err
	}
	return attach(result.UnmatchedInvoice, result.UnmatchedOrder)
}

func attach(targets, pool []UnmatchedItem) error {
	if len(targets) == 0 || len(pool) == 0 {
		return nil
	}

	items := make([]lineitem.LineItem, len(pool))
	for i, u := range pool {
		items[i] = u.Item
	}
	index, err := NewSuggestionIndex(items)
	if err != nil {
		return err
	}
	defer index.Close()

	for i := range targets {
		if targets[i].Reason != ReasonBelowThreshold {
			continue
		}
		suggestion, err := index.Suggest(targets[i].Item.Description)
		if err != nil {
			return err
		}
		targets[i].Suggestion = suggestion
	}
	return nil
}
