// Package book maintains a per-symbol local order book. Each LocalOrderBook
// is owned and mutated by exactly one venue streamer goroutine; nothing here
// is safe for concurrent use and nothing needs to be.
package book

import (
	"sort"
	"time"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// LocalOrderBook holds price->quantity maps for both sides of one market.
// Sorting happens only at snapshot time; the maps stay unordered between
// updates, which keeps per-message work O(levels changed).
type LocalOrderBook struct {
	symbol       string
	bids         map[float64]float64
	asks         map[float64]float64
	lastUpdateID int64
}

// New creates an empty book for the given canonical display symbol.
func New(symbol string) *LocalOrderBook {
	return &LocalOrderBook{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

// ApplyBids applies incremental updates to the bid side.
func (b *LocalOrderBook) ApplyBids(updates []domain.PriceLevel) {
	applySide(b.bids, updates)
}

// ApplyAsks applies incremental updates to the ask side.
func (b *LocalOrderBook) ApplyAsks(updates []domain.PriceLevel) {
	applySide(b.asks, updates)
}

// applySide upserts each (price, qty) into the side map. A zero quantity
// removes the level; it is never stored as a resting zero-size order.
func applySide(side map[float64]float64, updates []domain.PriceLevel) {
	for _, u := range updates {
		if u.Qty == 0 {
			delete(side, u.Price)
		} else {
			side[u.Price] = u.Qty
		}
	}
}

// ReplaceBids swaps the bid side wholesale, for venues that send complete
// snapshots instead of diffs.
func (b *LocalOrderBook) ReplaceBids(levels []domain.PriceLevel) {
	b.bids = sideFromLevels(levels)
}

// ReplaceAsks swaps the ask side wholesale.
func (b *LocalOrderBook) ReplaceAsks(levels []domain.PriceLevel) {
	b.asks = sideFromLevels(levels)
}

func sideFromLevels(levels []domain.PriceLevel) map[float64]float64 {
	side := make(map[float64]float64, len(levels))
	for _, l := range levels {
		if l.Qty == 0 {
			continue
		}
		side[l.Price] = l.Qty
	}
	return side
}

// SetLastUpdateID records the venue sequence number of the latest applied
// update.
func (b *LocalOrderBook) SetLastUpdateID(id int64) {
	b.lastUpdateID = id
}

// LastUpdateID returns the venue sequence number of the latest applied update.
func (b *LocalOrderBook) LastUpdateID() int64 {
	return b.lastUpdateID
}

// Snapshot sorts both sides, truncates them to the top n levels, and returns
// a new immutable DepthSnapshot. Bids are best-first descending, asks
// best-first ascending.
func (b *LocalOrderBook) Snapshot(n int) domain.DepthSnapshot {
	bids := sortedLevels(b.bids, n, true)
	asks := sortedLevels(b.asks, n, false)

	return domain.DepthSnapshot{
		Symbol:       b.symbol,
		Timestamp:    float64(time.Now().UnixNano()) / 1e9,
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: b.lastUpdateID,
	}
}

func sortedLevels(side map[float64]float64, n int, descending bool) []domain.PriceLevel {
	prices := make([]float64, 0, len(side))
	for p := range side {
		prices = append(prices, p)
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	if len(prices) > n {
		prices = prices[:n]
	}

	levels := make([]domain.PriceLevel, len(prices))
	for i, p := range prices {
		levels[i] = domain.PriceLevel{Price: p, Qty: side[p]}
	}
	return levels
}
