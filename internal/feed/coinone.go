package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

const coinoneWSURL = "wss://stream.coinone.co.kr"

type coinoneTopic struct {
	QuoteCurrency  string `json:"quote_currency"`
	TargetCurrency string `json:"target_currency"`
}

type coinoneSubscribeMessage struct {
	RequestType string       `json:"request_type"`
	Channel     string       `json:"channel"`
	Topic       coinoneTopic `json:"topic"`
}

// coinoneLevel is one side entry; prices and quantities arrive as strings.
type coinoneLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type coinoneBookMessage struct {
	ResponseType string       `json:"response_type"`
	Channel      string       `json:"channel"`
	Topic        coinoneTopic `json:"topic"`
	Data         struct {
		Timestamp int64          `json:"timestamp"`
		Bids      []coinoneLevel `json:"bids"`
		Asks      []coinoneLevel `json:"asks"`
	} `json:"data"`
}

// coinoneStreamer multiplexes every configured market over one connection.
// The venue symbol ("btc-krw") is reconstructed from the topic currencies on
// inbound frames.
type coinoneStreamer struct {
	*base
}

func (s *coinoneStreamer) Run(ctx context.Context) error {
	return s.runForever(ctx, "orderbook", func(ctx context.Context) error {
		return s.readLoop(ctx, coinoneWSURL, s.subscribe, s.handle)
	})
}

func (s *coinoneStreamer) subscribe(conn Conn) error {
	for _, st := range s.states {
		target, quote, ok := strings.Cut(st.venueSymbol, "-")
		if !ok {
			continue
		}
		sub := coinoneSubscribeMessage{
			RequestType: "SUBSCRIBE",
			Channel:     "ORDERBOOK",
			Topic:       coinoneTopic{QuoteCurrency: quote, TargetCurrency: target},
		}
		payload, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *coinoneStreamer) handle(ctx context.Context, msg []byte) error {
	var m coinoneBookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	if m.ResponseType != "DATA" || m.Channel != "ORDERBOOK" {
		return nil
	}

	st, ok := s.lookup(m.Topic.TargetCurrency + "-" + m.Topic.QuoteCurrency)
	if !ok {
		return nil
	}

	st.book.ReplaceBids(coinoneLevels(m.Data.Bids))
	st.book.ReplaceAsks(coinoneLevels(m.Data.Asks))

	seq := m.Data.Timestamp
	if seq == 0 {
		seq = time.Now().UnixMilli()
	}
	st.book.SetLastUpdateID(seq)

	return s.publish(ctx, st, float64(seq)/1e3, seq, msg)
}

func coinoneLevels(raw []coinoneLevel) []domain.PriceLevel {
	pairs := make([][]string, len(raw))
	for i, l := range raw {
		pairs[i] = []string{l.Price, l.Qty}
	}
	return parseLevels(pairs)
}
