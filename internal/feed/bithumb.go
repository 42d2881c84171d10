package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const bithumbWSURL = "wss://pubwss.bithumb.com/pub/ws"

type bithumbSubscribeMessage struct {
	Type      string   `json:"type"`
	Symbols   []string `json:"symbols"`
	TickTypes []string `json:"tickTypes"`
}

// bithumbBookMessage is an "orderbookdepth" frame with [price, qty] string
// pairs per side.
type bithumbBookMessage struct {
	Type    string `json:"type"`
	Content struct {
		Symbol   string     `json:"symbol"` // BTC_KRW
		Datetime string     `json:"datetime"`
		Bids     [][]string `json:"bids"`
		Asks     [][]string `json:"asks"`
	} `json:"content"`
}

// bithumbStreamer multiplexes every configured market over one connection,
// subscribing per symbol.
type bithumbStreamer struct {
	*base
}

func (s *bithumbStreamer) Run(ctx context.Context) error {
	return s.runForever(ctx, "orderbookdepth", func(ctx context.Context) error {
		return s.readLoop(ctx, bithumbWSURL, s.subscribe, s.handle)
	})
}

func (s *bithumbStreamer) subscribe(conn Conn) error {
	for _, st := range s.states {
		sub := bithumbSubscribeMessage{
			Type:      "orderbookdepth",
			Symbols:   []string{st.venueSymbol},
			TickTypes: []string{"30M"},
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

func (s *bithumbStreamer) handle(ctx context.Context, msg []byte) error {
	var m bithumbBookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	if m.Type != "orderbookdepth" || m.Content.Symbol == "" {
		return nil
	}

	st, ok := s.lookup(m.Content.Symbol)
	if !ok {
		return nil
	}

	st.book.ReplaceBids(parseLevels(m.Content.Bids))
	st.book.ReplaceAsks(parseLevels(m.Content.Asks))

	seq, err := strconv.ParseInt(m.Content.Datetime, 10, 64)
	if err != nil || seq == 0 {
		seq = time.Now().UnixMilli()
	}
	st.book.SetLastUpdateID(seq)

	return s.publish(ctx, st, float64(seq)/1e3, seq, msg)
}
