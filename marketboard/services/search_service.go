package services

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// ItemLister loads the full catalog.
type ItemLister interface {
	All(ctx context.Context) ([]*models.Item, error)
}

// itemNames implements fuzzy.Source over item names
type itemNames []*models.Item

func (items itemNames) Len() int {
	return len(items)
}

func (items itemNames) String(i int) string {
	return normalizeName(items[i].Name)
}

// SearchService resolves free-text item names to catalog items.
type SearchService struct {
	items ItemLister
}

func NewSearchService(items ItemLister) *SearchService {
	return &SearchService{items: items}
}

// Search returns up to limit items ordered by match quality. Exact name
// matches always come first.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]*models.Item, error) {
	query = normalizeName(query)
	if query == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.SearchTimeout)
	defer cancel()

	all, err := s.items.All(ctx)
	if err != nil {
		return nil, err
	}

	source := itemNames(all)
	matches := fuzzy.FindFrom(query, source)

	results := make([]*models.Item, 0, len(matches))
	for _, m := range matches {
		item := source[m.Index]
		if normalizeName(item.Name) == query {
			results = append([]*models.Item{item}, results...)
			continue
		}
		results = append(results, item)
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Best returns the best match, or nil when nothing matches.
func (s *SearchService) Best(ctx context.Context, query string) (*models.Item, error) {
	results, err := s.Search(ctx, query, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
