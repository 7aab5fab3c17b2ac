package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRole(t *testing.T) {
	tests := []struct {
		header string
		want   Role
	}{
		{"SKU", RoleSKU},
		{"Item #", RoleSKU},
		{"Product Code", RoleSKU},
		{"Part No.", RoleSKU},
		{"Description", RoleDescription},
		{"Item Description", RoleDescription},
		{"Part Description", RoleDescription},
		{"Item", RoleDescription},
		{"Product Name", RoleDescription},
		{"Descripción", RoleDescription},
		{"Qty", RoleQuantity},
		{"Quantity Ordered", RoleQuantity},
		{"Qté", RoleQuantity},
		{"Qauntity", RoleQuantity},
		{"Units", RoleQuantity},
		{"Unit Price", RoleUnitPrice},
		{"Rate", RoleUnitPrice},
		{"Unit Cost", RoleUnitPrice},
		{"Total", RoleTotal},
		{"Total Price", RoleTotal},
		{"Line Total", RoleTotal},
		{"Amount", RoleTotal},
		{"Unit", RoleNone},
		{"Discount", RoleNone},
		{"", RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRole(tt.header))
		})
	}
}

func TestSuggestColumns(t *testing.T) {
	t.Run("standard layout", func(t *testing.T) {
		cols := SuggestColumns([]string{"Line", "SKU", "Description", "Qty", "Unit Price", "Total"})

		assert.Equal(t, 1, cols.SKUCol)
		assert.Equal(t, 2, cols.DescCol)
		assert.Equal(t, 3, cols.QuantityCol)
		assert.Equal(t, 4, cols.UnitPriceCol)
		assert.Equal(t, 5, cols.TotalCol)
		assert.Equal(t, 5, cols.RoleCount())
		assert.True(t, cols.IsLineItemHeader())
		assert.Empty(t, cols.Missing())
	})

	t.Run("leftmost column wins", func(t *testing.T) {
		cols := SuggestColumns([]string{"Description", "Notes", "Product", "Qty"})
		assert.Equal(t, 0, cols.DescCol)
	})

	t.Run("not a header", func(t *testing.T) {
		cols := SuggestColumns([]string{"Purchase Order", "PO-2024-001"})
		assert.False(t, cols.IsLineItemHeader())
		assert.Contains(t, cols.Missing(), "quantity")
	})
}

func TestIsSummaryRow(t *testing.T) {
	cols := *SuggestColumns([]string{"SKU", "Description", "Qty", "Unit Price", "Total"})

	assert.True(t, IsSummaryRow([]string{"", "Subtotal", "", "", "1,234.00"}, cols))
	assert.True(t, IsSummaryRow([]string{"Grand Total:", "", "", "", "1,300.00"}, cols))
	assert.True(t, IsSummaryRow([]string{"", "Tax (8%)", "", "", "98.72"}, cols))
	assert.False(t, IsSummaryRow([]string{"TS-1", "Total Station Tripod", "2", "150", "300"}, cols))
	assert.False(t, IsSummaryRow([]string{"", "", "", "", ""}, cols))
}

func TestDetectConfig(t *testing.T) {
	t.Run("preamble before header", func(t *testing.T) {
		data := []byte("Purchase Order PO-1001\nVendor: Acme Corp\n\nSKU;Description;Qty;Unit Price;Total\nWM-100;Wireless Mouse;10;14,50;145,00\n")

		cfg, err := DetectConfig(data)
		require.NoError(t, err)

		assert.Equal(t, ';', cfg.Delimiter)
		assert.Equal(t, 3, cfg.SkipLines)
		assert.Equal(t, []string{"SKU", "Description", "Qty", "Unit Price", "Total"}, cfg.Headers)
		assert.Equal(t, 1, cfg.Columns.DescCol)
		assert.Len(t, cfg.Fingerprint, 64)
	})

	t.Run("bom and tabs", func(t *testing.T) {
		data := []byte("\uFEFFDescription\tQuantity\tPrice\nBolt\t5\t0.10\n")

		cfg, err := DetectConfig(data)
		require.NoError(t, err)
		assert.Equal(t, '\t', cfg.Delimiter)
		assert.Equal(t, "Description", cfg.Headers[0])
		require.Len(t, cfg.SampleRows, 1)
		assert.Equal(t, "Bolt", cfg.SampleRows[0][0])
	})

	t.Run("explicit header row", func(t *testing.T) {
		data := []byte("junk\nA,B,C\n1,2,3\n")
		cfg, err := DetectConfigWithOptions(data, &DetectOptions{HeaderRowIndex: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, cfg.Headers)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := DetectConfig([]byte("   \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("same headers share a fingerprint", func(t *testing.T) {
		a, err := DetectConfig([]byte("SKU,Description,Qty\n"))
		require.NoError(t, err)
		b, err := DetectConfig([]byte("sku;DESCRIPTION;qty\n"))
		require.NoError(t, err)
		assert.Equal(t, a.Fingerprint, b.Fingerprint)
	})
}

func TestFindHeaderRow(t *testing.T) {
	rows := [][]string{
		{"PROFORMA INVOICE"},
		{"Invoice No", "PI-77"},
		{"Item", "Qty", "Price", "Amount"},
		{"Desk Lamp", "2", "20.00", "40.00"},
	}
	assert.Equal(t, 2, FindHeaderRow(rows))
	assert.Equal(t, -1, FindHeaderRow(rows[:2]))
}

func TestProbeDialect(t *testing.T) {
	t.Run("european amounts", func(t *testing.T) {
		d := ProbeDialect([][]string{{"Stuhl", "2", "1.234,50 €"}, {"Tisch", "1", "99,90 €"}}, 2)
		assert.True(t, d.IsEuropeanFormat)
		assert.Equal(t, "EUR", d.CurrencyHint)
	})

	t.Run("us amounts", func(t *testing.T) {
		d := ProbeDialect([][]string{{"Mouse", "10", "$14.50"}, {"Hub", "1", "$1,049.99"}}, 2)
		assert.False(t, d.IsEuropeanFormat)
		assert.Equal(t, "USD", d.CurrencyHint)
		assert.Equal(t, 1.0, d.Confidence)
	})
}
