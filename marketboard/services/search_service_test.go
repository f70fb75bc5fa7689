package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

type staticItems struct {
	items []*models.Item
	err   error
}

func (s staticItems) All(context.Context) ([]*models.Item, error) {
	return s.items, s.err
}

func catalog() staticItems {
	return staticItems{items: []*models.Item{
		{ID: 5057, Name: "Iron Ingot"},
		{ID: 5111, Name: "Iron Ore"},
		{ID: 5058, Name: "Steel Ingot"},
		{ID: 1601, Name: "Iron Broadsword"},
		{ID: 4717, Name: "Ingot"},
	}}
}

func TestSearchService_Search(t *testing.T) {
	svc := NewSearchService(catalog())

	tests := []struct {
		name    string
		query   string
		limit   int
		wantIDs []int64
	}{
		{name: "exact match first", query: "ingot", limit: 1, wantIDs: []int64{4717}},
		{name: "case and spacing ignored", query: "  IRON   ore ", limit: 1, wantIDs: []int64{5111}},
		{name: "no match", query: "zzzz", limit: 5, wantIDs: []int64{}},
		{name: "empty query", query: "   ", limit: 5, wantIDs: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := svc.Search(context.Background(), tt.query, tt.limit)
			require.NoError(t, err)
			ids := make([]int64, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSearchService_FuzzyMatches(t *testing.T) {
	svc := NewSearchService(catalog())

	results, err := svc.Search(context.Background(), "irn ingt", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(5057), results[0].ID)
}

func TestSearchService_Best(t *testing.T) {
	svc := NewSearchService(catalog())

	item, err := svc.Best(context.Background(), "steel ingot")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Steel Ingot", item.Name)

	item, err = svc.Best(context.Background(), "qqq")
	require.NoError(t, err)
	assert.Nil(t, item)

	_, err = NewSearchService(staticItems{err: errors.New("db down")}).Best(context.Background(), "ore")
	assert.Error(t, err)
}
