package domain

import "github.com/shopspring/decimal"

// MenuItem is a single dish as served by the catalog API.
type MenuItem struct {
	ID          int64           `json:"menu_item_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
}

type Ingredient struct {
	Name     string  `json:"ingredient_name"`
	Quantity float64 `json:"quantity"`
}

// AllCategories is the pseudo category that disables category filtering.
const AllCategories = "All"
