package lineitem

import (
	"fmt"
)

// ParseError describes a row that could not be turned into a LineItem.
// The row is skipped and the run continues.
type ParseError struct {
	Document DocumentKind `json:"document"`
	Row      int          `json:"row"`
	Column   string       `json:"column,omitempty"`
	Message  string       `json:"message"`
	RawData  string       `json:"raw_data,omitempty"`
}

func (e ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s row %d: %s", e.Document.Short(), e.Row, e.Message)
	}
	return fmt.Sprintf("%s row %d, column %s: %s", e.Document.Short(), e.Row, e.Column, e.Message)
}

// EmptyDocumentError is reported when a document yields no valid line items.
// It is a warning; comparison still runs with every item of the other side unmatched.
type EmptyDocumentError struct {
	Document DocumentKind
	ID       string
}

func (e EmptyDocumentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s contains no valid line items", e.Document.Short())
	}
	return fmt.Sprintf("%s %q contains no valid line items", e.Document.Short(), e.ID)
}

// ConfigurationError rejects a run before any matching happens.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}
