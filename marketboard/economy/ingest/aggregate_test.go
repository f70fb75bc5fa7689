package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(age time.Duration, price, qty int64, hq bool) universalis.Entry {
	return universalis.Entry{
		HQ:           hq,
		PricePerUnit: price,
		Quantity:     qty,
		Timestamp:    now.Add(-age).Unix(),
	}
}

func TestAggregate(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name    string
		entries []universalis.Entry
		wantAll *int64
		wantNQ  *int64
		wantHQ  *int64
	}{
		{
			name:    "no entries",
			entries: nil,
		},
		{
			name: "volume weighted with floor",
			entries: []universalis.Entry{
				entry(time.Hour, 100, 1, false),
				entry(2*time.Hour, 101, 2, false),
			},
			// (100 + 202) / 3 = 100.67
			wantAll: ptr(100),
			wantNQ:  ptr(100),
		},
		{
			name: "separate quality buckets",
			entries: []universalis.Entry{
				entry(time.Hour, 500, 2, true),
				entry(2*time.Hour, 200, 3, false),
			},
			wantAll: ptr(320),
			wantNQ:  ptr(200),
			wantHQ:  ptr(500),
		},
		{
			name: "outliers at the ceiling are dropped",
			entries: []universalis.Entry{
				entry(time.Hour, 1_000_000, 1, false),
				entry(2*time.Hour, 999_999, 1, true),
				entry(3*time.Hour, 50, 4, false),
			},
			wantAll: ptr(200039),
			wantNQ:  ptr(50),
			wantHQ:  ptr(999_999),
		},
		{
			name: "scan stops at first entry outside the window",
			entries: []universalis.Entry{
				entry(day, 10, 1, false),
				entry(29*day, 1000, 1, false),
				// Out of order but never reached.
				entry(2*day, 1000, 1, false),
			},
			wantAll: ptr(10),
			wantNQ:  ptr(10),
		},
		{
			name: "everything too old",
			entries: []universalis.Entry{
				entry(30*day, 10, 1, false),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Aggregate(7, &universalis.History{ItemID: 7, Entries: tt.entries}, now)
			assert.Equal(t, int64(7), stats.ItemID)
			assert.Equal(t, tt.wantAll, stats.AveCost)
			assert.Equal(t, tt.wantNQ, stats.AveNQCost)
			assert.Equal(t, tt.wantHQ, stats.AveHQCost)
			assert.Equal(t, now, stats.FetchedAt)
		})
	}
}

func TestAggregate_RoundsVelocities(t *testing.T) {
	stats := Aggregate(1, &universalis.History{
		RegularSaleVelocity: 12.345,
		NQSaleVelocity:      10.06,
		HQSaleVelocity:      2.24,
	}, now)

	require.NotNil(t, stats.RegularSaleVelocity)
	assert.InDelta(t, 12.3, *stats.RegularSaleVelocity, 1e-9)
	assert.InDelta(t, 10.1, *stats.NQSaleVelocity, 1e-9)
	assert.InDelta(t, 2.2, *stats.HQSaleVelocity, 1e-9)
}

func TestNeedsRefetch(t *testing.T) {
	tests := []struct {
		velocity float64
		want     bool
	}{
		{0, true},
		{-0.5, true},
		{0.01, false},
		{20, false},
		{142, false},
		{142.1, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, needsRefetch(&universalis.History{RegularSaleVelocity: tt.velocity}), "velocity %v", tt.velocity)
	}
}

func ptr(v int64) *int64 {
	return &v
}
