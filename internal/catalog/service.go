package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/table_order/internal/domain"
	"github.com/fjod/table_order/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Query selects and filters the menu shown to the table.
type Query struct {
	Search      string
	Category    string
	SortByPrice bool
}

// MenuView is what the menu screen renders. Loaded flags report whether each list
// came back from the catalog; a failed list is empty rather than an error.
type MenuView struct {
	Items            []domain.MenuItem `json:"items"`
	Categories       []string          `json:"categories"`
	MenuLoaded       bool              `json:"menu_loaded"`
	CategoriesLoaded bool              `json:"categories_loaded"`
}

type IngredientsView struct {
	ItemID      int64               `json:"menu_item_id"`
	Ingredients []domain.Ingredient `json:"ingredients"`
	Loaded      bool                `json:"loaded"`
}

const defaultFetchTimeout = 10 * time.Second

// Service is a read-through cache in front of the catalog Source.
type Service struct {
	source Source
	cache  Cache
	sfg    singleflight.Group // Prevents cache stampede
	log    *zap.Logger

	// fetchTimeout bounds a shared fetch, which runs detached from any single caller.
	fetchTimeout time.Duration
}

func NewService(source Source, cache Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{source: source, cache: cache, log: log, fetchTimeout: defaultFetchTimeout}
}

func (s *Service) Menu(ctx context.Context, q Query) MenuView {
	view := MenuView{Items: []domain.MenuItem{}}

	var (
		items []domain.MenuItem
		err   error
	)
	if q.SortByPrice {
		items, err = load(ctx, s, keyMenuSorted, s.source.MenuSortedByPrice)
	} else {
		items, err = load(ctx, s, keyMenu, s.source.Menu)
	}
	if err != nil {
		logger.WithTrace(ctx, s.log).Error("menu fetch failed", zap.Error(err))
	} else {
		view.Items = Filter(items, q.Search, q.Category)
		view.MenuLoaded = true
	}

	categories, err := load(ctx, s, keyCategories, s.source.Categories)
	if err != nil {
		logger.WithTrace(ctx, s.log).Error("categories fetch failed", zap.Error(err))
		categories = nil
	} else {
		view.CategoriesLoaded = true
	}
	view.Categories = CategoryOptions(categories)

	return view
}

// Item looks an item up in the full menu.
func (s *Service) Item(ctx context.Context, itemID int64) (domain.MenuItem, error) {
	items, err := load(ctx, s, keyMenu, s.source.Menu)
	if err != nil {
		return domain.MenuItem{}, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.MenuItem{}, ErrItemNotFound
}

// Ingredients of an item that is not on the menu are empty and never fetched or cached.
func (s *Service) Ingredients(ctx context.Context, itemID int64) IngredientsView {
	view := IngredientsView{ItemID: itemID, Ingredients: []domain.Ingredient{}}

	if _, err := s.Item(ctx, itemID); errors.Is(err, ErrItemNotFound) {
		view.Loaded = true
		return view
	}

	ingredients, err := load(ctx, s, ingredientsKey(itemID), func(ctx context.Context) ([]domain.Ingredient, error) {
		return s.source.Ingredients(ctx, itemID)
	})
	if err != nil {
		logger.WithTrace(ctx, s.log).Error("ingredients fetch failed", zap.Int64("menu_item_id", itemID), zap.Error(err))
		return view
	}
	if ingredients != nil {
		view.Ingredients = ingredients
	}
	view.Loaded = true
	return view
}

// Invalidate drops the cached menu lists.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, keyMenu, keyMenuSorted, keyCategories)
}

var ErrItemNotFound = errors.New("menu item not found")

// load reads key through the cache. Concurrent callers share one fetch; each caller
// stops waiting when its own ctx is done, and the shared fetch is not tied to any of them.
func load[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		var cached T
		err := s.cache.Get(fetchCtx, key, &cached)
		if err == nil {
			return cached, nil // list is in cache
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("catalog cache get failed", zap.String("key", key), zap.Error(err)) // continue with source
		}

		fresh, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		if errSet := s.cache.Set(fetchCtx, key, fresh); errSet != nil {
			s.log.Warn("catalog cache set failed", zap.String("key", key), zap.Error(errSet))
		}
		return fresh, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
