package ingest

import (
	"math"
	"time"

	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
)

type bucket struct {
	total    int64
	quantity int64
}

func (b *bucket) add(e universalis.Entry) {
	b.total += e.PricePerUnit * e.Quantity
	b.quantity += e.Quantity
}

// average is the floor of total/quantity, or nil when nothing sold.
func (b bucket) average() *int64 {
	if b.quantity <= 0 {
		return nil
	}
	avg := b.total / b.quantity
	return &avg
}

// Aggregate summarises a newest-first trade history into item statistics.
// Scanning stops at the first trade older than the lookback window, and
// trades priced at or above the ceiling are ignored.
func Aggregate(itemID int64, h *universalis.History, now time.Time) models.ItemStats {
	cutoff := now.Add(-config.HistoryLookback)

	var nq, hq bucket
	for _, e := range h.Entries {
		if e.Time().Before(cutoff) {
			break
		}
		if e.PricePerUnit >= config.PriceCeiling {
			continue
		}
		if e.HQ {
			hq.add(e)
		} else {
			nq.add(e)
		}
	}

	all := bucket{total: nq.total + hq.total, quantity: nq.quantity + hq.quantity}

	return models.ItemStats{
		ItemID:              itemID,
		AveCost:             all.average(),
		AveNQCost:           nq.average(),
		AveHQCost:           hq.average(),
		RegularSaleVelocity: roundVelocity(h.RegularSaleVelocity),
		NQSaleVelocity:      roundVelocity(h.NQSaleVelocity),
		HQSaleVelocity:      roundVelocity(h.HQSaleVelocity),
		FetchedAt:           now,
	}
}

func roundVelocity(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

// needsRefetch reports whether the default history window is unrepresentative:
// either the item sells so fast the window covers too little time, or it
// barely sells at all.
func needsRefetch(h *universalis.History) bool {
	return h.RegularSaleVelocity > config.RefetchVelocity || math.Ceil(h.RegularSaleVelocity) == 0
}
