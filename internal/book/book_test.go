package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

func TestApplySideZeroQtyRemoves(t *testing.T) {
	b := New("BTC-USD")

	b.ApplyBids([]domain.PriceLevel{
		{Price: 100, Qty: 1.5},
		{Price: 99, Qty: 2},
	})
	snap := b.Snapshot(20)
	require.Len(t, snap.Bids, 2)

	// Removing a level leaves no key behind, and removing it again is a no-op.
	b.ApplyBids([]domain.PriceLevel{{Price: 100, Qty: 0}})
	snap = b.Snapshot(20)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 99.0, snap.Bids[0].Price)

	b.ApplyBids([]domain.PriceLevel{{Price: 100, Qty: 0}})
	snap = b.Snapshot(20)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, 99.0, snap.Bids[0].Price)
}

func TestApplySideUpsertsQty(t *testing.T) {
	b := New("ETH-USD")
	b.ApplyAsks([]domain.PriceLevel{{Price: 2000, Qty: 1}})
	b.ApplyAsks([]domain.PriceLevel{{Price: 2000, Qty: 3}})

	snap := b.Snapshot(20)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, 3.0, snap.Asks[0].Qty)
}

func TestSnapshotOrderingAndTruncation(t *testing.T) {
	b := New("BTC-KRW")
	for _, p := range []float64{101, 99, 105, 100, 103} {
		b.ApplyBids([]domain.PriceLevel{{Price: p, Qty: 1}})
		b.ApplyAsks([]domain.PriceLevel{{Price: p + 10, Qty: 1}})
	}

	snap := b.Snapshot(3)
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 3)

	// Bids strictly descending, asks strictly ascending, best first.
	assert.Equal(t, []float64{105, 103, 101}, prices(snap.Bids))
	assert.Equal(t, []float64{109, 110, 111}, prices(snap.Asks))

	// topN larger than the book returns everything.
	full := b.Snapshot(20)
	assert.Len(t, full.Bids, 5)
	assert.Len(t, full.Asks, 5)
}

func TestReplaceSideDropsStaleLevels(t *testing.T) {
	b := New("SOL-USD")
	b.ApplyBids([]domain.PriceLevel{{Price: 50, Qty: 1}, {Price: 49, Qty: 1}})

	b.ReplaceBids([]domain.PriceLevel{{Price: 51, Qty: 2}, {Price: 48, Qty: 0}})
	snap := b.Snapshot(20)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, domain.PriceLevel{Price: 51, Qty: 2}, snap.Bids[0])
}

func TestSnapshotCarriesSymbolAndSeq(t *testing.T) {
	b := New("DOGE-KRW")
	b.SetLastUpdateID(42)

	snap := b.Snapshot(20)
	assert.Equal(t, "DOGE-KRW", snap.Symbol)
	assert.Equal(t, int64(42), snap.LastUpdateID)
	assert.Greater(t, snap.Timestamp, 0.0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func prices(levels []domain.PriceLevel) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
