package domain

import "github.com/shopspring/decimal"

// LineItem is one distinct menu item in the cart with its own quantity and instructions.
// The JSON shape is the one the backend expects in POST /createPaymentIntent.
type LineItem struct {
	ItemID              int64           `json:"menu_item_id"`
	Name                string          `json:"name"`
	UnitPrice           decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

// Subtotal returns UnitPrice * Quantity without rounding.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an immutable view of the cart at a given version.
type Cart struct {
	Items   []LineItem `json:"items"`
	Version uint64     `json:"version"`
}

// Total sums all line subtotals and rounds the result to cents.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return RoundMoney(total)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line item for itemID, if present.
func (c Cart) Find(itemID int64) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Clone returns a deep copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items, Version: c.Version}
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
