package domain

import (
	"encoding/json"
	"fmt"
)

// PriceLevel is a single price+quantity entry on one side of an order book.
// It marshals as a two-element [price, qty] array, which is the shape the
// archive sink and the depth_json store column use.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// MarshalJSON encodes the level as [price, qty].
func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.Qty})
}

// UnmarshalJSON decodes a [price, qty] array.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	l.Price, l.Qty = pair[0], pair[1]
	return nil
}

// DepthSnapshot is a bounded, best-first view of one local order book at a
// point in time. It is produced fresh on every event and never mutated after
// creation.
type DepthSnapshot struct {
	Symbol       string       `json:"symbol"`
	Timestamp    float64      `json:"ts"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	LastUpdateID int64        `json:"last_update_id"`
}

// BestBid returns the top bid, or ok=false when the bid side is empty.
func (d DepthSnapshot) BestBid() (PriceLevel, bool) {
	if len(d.Bids) == 0 {
		return PriceLevel{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the top ask, or ok=false when the ask side is empty.
func (d DepthSnapshot) BestAsk() (PriceLevel, bool) {
	if len(d.Asks) == 0 {
		return PriceLevel{}, false
	}
	return d.Asks[0], true
}

// OrderBookEvent is one normalized order-book update. Events are immutable
// and passed by value through the pipeline; the owning streamer constructs
// each one from a fresh depth snapshot, so no book state ever crosses a task
// boundary.
type OrderBookEvent struct {
	Exchange    string          `json:"exchange"`
	Symbol      CanonicalSymbol `json:"symbol"`
	VenueSymbol string          `json:"venue_symbol"`
	EventTs     float64         `json:"event_ts"`
	RecvTs      float64         `json:"recv_ts"`
	Seq         int64           `json:"seq"`
	Depth       DepthSnapshot   `json:"depth"`
	Raw         json.RawMessage `json:"raw"`
}
