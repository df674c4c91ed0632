package catalog

import (
	"strings"

	"github.com/fjod/table_order/internal/domain"
	"golang.org/x/text/cases"
)

// Filter keeps items whose category matches (AllCategories or empty matches everything)
// and whose name contains search, compared case-insensitively.
func Filter(items []domain.MenuItem, search, category string) []domain.MenuItem {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(search))

	out := make([]domain.MenuItem, 0, len(items))
	for _, item := range items {
		if category != "" && category != domain.AllCategories && item.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(item.Name), needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// CategoryOptions prefixes categories with AllCategories and drops duplicates.
func CategoryOptions(categories []string) []string {
	out := make([]string, 0, len(categories)+1)
	out = append(out, domain.AllCategories)
	seen := map[string]struct{}{domain.AllCategories: {}}
	for _, c := range categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
