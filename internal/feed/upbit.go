package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

const upbitWSURL = "wss://api.upbit.com/websocket/v1"

// upbitOrderbookMessage is a full-replacement orderbook frame. Upbit delivers
// JSON in binary WebSocket frames and interleaves both sides in
// orderbook_units.
type upbitOrderbookMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"` // e.g. KRW-BTC
	Timestamp int64  `json:"timestamp"`
	Units     []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

// upbitStreamer multiplexes every configured market over one connection.
type upbitStreamer struct {
	*base
}

func (s *upbitStreamer) Run(ctx context.Context) error {
	return s.runForever(ctx, "orderbook", func(ctx context.Context) error {
		return s.readLoop(ctx, upbitWSURL, s.subscribe, s.handle)
	})
}

func (s *upbitStreamer) subscribe(conn Conn) error {
	codes := make([]string, 0, len(s.states))
	for _, st := range s.states {
		codes = append(codes, st.venueSymbol)
	}
	// Upbit subscriptions are a JSON array: a ticket frame plus a type frame.
	sub := []any{
		map[string]string{"ticket": "orderbook-stream"},
		map[string]any{"type": "orderbook", "codes": codes},
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *upbitStreamer) handle(ctx context.Context, msg []byte) error {
	var m upbitOrderbookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	if m.Type != "orderbook" {
		return nil
	}

	st, ok := s.lookup(m.Code)
	if !ok {
		return nil
	}

	bids := make([]domain.PriceLevel, 0, len(m.Units))
	asks := make([]domain.PriceLevel, 0, len(m.Units))
	for _, u := range m.Units {
		if u.BidPrice > 0 {
			bids = append(bids, domain.PriceLevel{Price: u.BidPrice, Qty: u.BidSize})
		}
		if u.AskPrice > 0 {
			asks = append(asks, domain.PriceLevel{Price: u.AskPrice, Qty: u.AskSize})
		}
	}
	st.book.ReplaceBids(bids)
	st.book.ReplaceAsks(asks)

	seq := m.Timestamp
	if seq == 0 {
		seq = time.Now().UnixMilli()
	}
	st.book.SetLastUpdateID(seq)

	return s.publish(ctx, st, float64(seq)/1e3, seq, msg)
}
