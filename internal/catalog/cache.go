package catalog

import (
	"context"
	"errors"
	"strconv"
)

// Cache stores catalog lists as JSON-serialisable values under string keys.
type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

const (
	keyMenu       = "menu"
	keyMenuSorted = "menu:sorted"
	keyCategories = "categories"
)

func ingredientsKey(itemID int64) string {
	return "ingredients:" + strconv.FormatInt(itemID, 10)
}
