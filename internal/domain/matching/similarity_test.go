package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "wireless mouse", "wireless mouse", 100},
		{"reordered", "Mouse Wireless", "wireless   mouse", 100},
		{"disjoint", "abc", "xyz", 0},
		{"empty", "", "mouse", 0},
		{"extra token", "cable hdmi 2m", "hdmi cable", 86.956},
		{"one edit", "desk lamp", "desk lamps", 94.737},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSortRatio(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 0.001)
			assert.InDelta(t, got, TokenSortRatio(tt.b, tt.a), 0.0001, "symmetric")
		})
	}
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 3, EditDistance("kitten", "sitting"))
	assert.Equal(t, 0, EditDistance("hub", "hub"))
}

func TestAttachSuggestions(t *testing.T) {
	result := mustMatcher(t, 95).Match(
		[]lineitem.LineItem{po(0, "", "Mechanical Keyboard RGB", "1", "89.99")},
		[]lineitem.LineItem{
			pi(0, "", "Office Chair", "1", "199"),
			pi(1, "KB-9", "Mechanical Keyboard Wireless", "1", "92"),
		},
	)
	require.Empty(t, result.Matches)

	require.NoError(t, AttachSuggestions(&result))

	suggestion := result.UnmatchedOrder[0].Suggestion
	require.NotNil(t, suggestion)
	assert.Equal(t, 1, suggestion.RowIndex)
	assert.Equal(t, "Mechanical Keyboard Wireless", suggestion.Description)
	assert.Equal(t, "KB-9", suggestion.SKU)
	assert.Greater(t, suggestion.Relevance, 0.0)
}

func TestAttachSuggestions_SkipsNoCandidate(t *testing.T) {
	result := mustMatcher(t, DefaultThreshold).Match(
		[]lineitem.LineItem{po(0, "", "Mechanical Keyboard", "1", "89.99")},
		nil,
	)
	require.NoError(t, AttachSuggestions(&result))
	assert.Nil(t, result.UnmatchedOrder[0].Suggestion)
}
