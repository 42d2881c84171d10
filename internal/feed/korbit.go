package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const korbitWSURL = "wss://ws.korbit.co.kr/v1/ws"

type korbitSubscribeMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// korbitBookMessage carries a full orderbook replacement on an
// "orderbook:<symbol>" channel.
type korbitBookMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Timestamp int64      `json:"timestamp"`
		Bids      [][]string `json:"bids"`
		Asks      [][]string `json:"asks"`
	} `json:"data"`
}

// korbitStreamer multiplexes every configured market over one connection.
type korbitStreamer struct {
	*base
}

func (s *korbitStreamer) Run(ctx context.Context) error {
	return s.runForever(ctx, "orderbook", func(ctx context.Context) error {
		return s.readLoop(ctx, korbitWSURL, s.subscribe, s.handle)
	})
}

func (s *korbitStreamer) subscribe(conn Conn) error {
	channels := make([]string, 0, len(s.states))
	for _, st := range s.states {
		channels = append(channels, "orderbook:"+st.venueSymbol)
	}
	sub := korbitSubscribeMessage{Type: "subscribe", Channels: channels}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *korbitStreamer) handle(ctx context.Context, msg []byte) error {
	var m korbitBookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	sym, ok := strings.CutPrefix(m.Channel, "orderbook:")
	if !ok {
		return nil
	}

	st, found := s.lookup(sym)
	if !found {
		return nil
	}

	st.book.ReplaceBids(parseLevels(m.Data.Bids))
	st.book.ReplaceAsks(parseLevels(m.Data.Asks))

	seq := m.Data.Timestamp
	if seq == 0 {
		seq = time.Now().UnixMilli()
	}
	st.book.SetLastUpdateID(seq)

	return s.publish(ctx, st, float64(seq)/1e3, seq, msg)
}
