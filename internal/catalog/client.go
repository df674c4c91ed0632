package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fjod/table_order/internal/backend"
	"github.com/fjod/table_order/internal/config"
	"github.com/fjod/table_order/internal/domain"
)

const (
	menuPath        = "/menu/"
	menuSortedPath  = "/menu/sorted/"
	categoriesPath  = "/categories/"
	ingredientsPath = "/ingredients"
)

// Source is the read-only catalog API.
type Source interface {
	Menu(ctx context.Context) ([]domain.MenuItem, error)
	MenuSortedByPrice(ctx context.Context) ([]domain.MenuItem, error)
	Categories(ctx context.Context) ([]string, error)
	Ingredients(ctx context.Context, itemID int64) ([]domain.Ingredient, error)
}

// Client reads the catalog from the restaurant backend.
type Client struct {
	api              *backend.Client
	ingredientsRoute string
}

func NewClient(api *backend.Client, ingredientsRoute string) *Client {
	if ingredientsRoute == "" {
		ingredientsRoute = config.IngredientsRouteQuery
	}
	return &Client{api: api, ingredientsRoute: ingredientsRoute}
}

func (c *Client) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	if err := c.api.Get(ctx, menuPath, nil, &items); err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	return items, nil
}

func (c *Client) MenuSortedByPrice(ctx context.Context) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	if err := c.api.Get(ctx, menuSortedPath, nil, &items); err != nil {
		return nil, fmt.Errorf("fetch sorted menu: %w", err)
	}
	return items, nil
}

// Categories accepts both ["Mains"] and [{"category":"Mains"}] response shapes.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var raw []json.RawMessage
	if err := c.api.Get(ctx, categoriesPath, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	categories := make([]string, 0, len(raw))
	for _, r := range raw {
		name, err := decodeCategory(r)
		if err != nil {
			return nil, fmt.Errorf("decode category %s: %w", r, err)
		}
		if name != "" {
			categories = append(categories, name)
		}
	}
	return categories, nil
}

func decodeCategory(r json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(r, &name); err == nil {
		return name, nil
	}
	var obj struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(r, &obj); err != nil {
		return "", err
	}
	return obj.Category, nil
}

func (c *Client) Ingredients(ctx context.Context, itemID int64) ([]domain.Ingredient, error) {
	id := strconv.FormatInt(itemID, 10)

	var (
		ingredients []domain.Ingredient
		err         error
	)
	if c.ingredientsRoute == config.IngredientsRoutePath {
		err = c.api.Get(ctx, ingredientsPath+"/"+id, nil, &ingredients)
	} else {
		err = c.api.Get(ctx, ingredientsPath, url.Values{"menu_item_id": {id}}, &ingredients)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ingredients of %d: %w", itemID, err)
	}
	return ingredients, nil
}
