package lineitem

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic order and invoice lines using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0),
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

var (
	productAdjectives = []string{
		"Wireless", "Ergonomic", "Stainless", "Heavy Duty", "Compact", "Industrial",
		"Portable", "Adjustable", "Reinforced", "Premium", "Galvanized", "Insulated",
	}
	productNouns = []string{
		"Mouse", "Keyboard", "Monitor Arm", "Bracket", "Drill Bit Set", "Cable Reel",
		"Safety Gloves", "Pallet Jack", "Shelf Unit", "Router", "Label Printer", "Desk Lamp",
	}
)

// SKU returns a code like "KBD-4821".
func (g *TestDataGenerator) SKU() string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(g.faker.LetterN(3)), g.faker.DigitN(4))
}

// ProductDescription returns a product line such as "Compact Router 512".
func (g *TestDataGenerator) ProductDescription() string {
	return fmt.Sprintf("%s %s %s",
		g.faker.RandomString(productAdjectives),
		g.faker.RandomString(productNouns),
		g.faker.DigitN(3),
	)
}

// Quantity returns a whole quantity between 1 and 500.
func (g *TestDataGenerator) Quantity() decimal.Decimal {
	return decimal.NewFromInt(int64(g.faker.Number(1, 500)))
}

// UnitPrice returns a price between 1.00 and 5000.00.
func (g *TestDataGenerator) UnitPrice() decimal.Decimal {
	return decimal.New(int64(g.faker.Number(100, 500000)), -2)
}

// Vendor returns a company name.
func (g *TestDataGenerator) Vendor() string {
	return g.faker.Company()
}

// Item generates a single line item for the given side and row.
func (g *TestDataGenerator) Item(kind DocumentKind, row int) LineItem {
	sku := ""
	if g.faker.Bool() {
		sku = g.SKU()
	}
	desc := g.ProductDescription()
	qty := g.Quantity()
	price := g.UnitPrice()

	return LineItem{
		SKU:            sku,
		SKUKey:         strings.ToLower(sku),
		Description:    desc,
		DescriptionKey: strings.ToLower(desc),
		Quantity:       qty,
		UnitPrice:      price,
		TotalValue:     qty.Mul(price),
		Source:         kind,
		SourceRowIndex: row,
	}
}

// Items generates count line items for one side.
func (g *TestDataGenerator) Items(kind DocumentKind, count int) []LineItem {
	items := make([]LineItem, count)
	for i := 0; i < count; i++ {
		items[i] = g.Item(kind, i)
	}
	return items
}

// Mirror copies order lines into invoice lines with identical values.
func (g *TestDataGenerator) Mirror(order []LineItem) []LineItem {
	invoice := make([]LineItem, len(order))
	for i, item := range order {
		item.Source = KindInvoice
		item.Notes = nil
		invoice[i] = item
	}
	return invoice
}

// Reprice changes the unit price of an item by pct percent and recomputes its total.
func Reprice(item LineItem, pct int64) LineItem {
	factor := decimal.NewFromInt(100 + pct).Div(decimal.NewFromInt(100))
	item.UnitPrice = item.UnitPrice.Mul(factor)
	item.TotalValue = item.Quantity.Mul(item.UnitPrice)
	return item
}

// RawRows renders items back to the string form a parser would produce.
func RawRows(items []LineItem) []RawRow {
	rows := make([]RawRow, len(items))
	for i, item := range items {
		rows[i] = RawRow{
			RowIndex:    item.SourceRowIndex,
			SKU:         item.SKU,
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Total:       item.TotalValue.StringFixed(2),
		}
	}
	return rows
}

// Fixture builds a LineItem from already-clean strings. Comparison keys are derived
// the same way the normalizer derives them for clean input.
func Fixture(kind DocumentKind, row int, sku, description, quantity, unitPrice string) LineItem {
	qty := decimal.RequireFromString(quantity)
	price := decimal.RequireFromString(unitPrice)
	return LineItem{
		SKU:            sku,
		SKUKey:         strings.ToLower(strings.TrimSpace(sku)),
		Description:    description,
		DescriptionKey: strings.ToLower(strings.TrimSpace(description)),
		Quantity:       qty,
		UnitPrice:      price,
		TotalValue:     qty.Mul(price),
		Source:         kind,
		SourceRowIndex: row,
	}
}
