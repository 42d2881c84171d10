package feed

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gorilla/websocket"
)

const okxWSURL = "wss://ws.okx.com:8443/ws/v5/public"

type okxSubscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribeMessage struct {
	Op   string            `json:"op"`
	Args []okxSubscribeArg `json:"args"`
}

// okxBookMessage is the "books5" payload: a full top-5 replacement per
// message, multiplexed over one connection. Level entries carry extra
// elements (liquidated orders, order count) beyond price and size.
type okxBookMessage struct {
	Event string          `json:"event"`
	Arg   okxSubscribeArg `json:"arg"`
	Data  []struct {
		Bids  [][]string `json:"bids"`
		Asks  [][]string `json:"asks"`
		Ts    string     `json:"ts"` // ms
		SeqID int64      `json:"seqId"`
	} `json:"data"`
}

// okxStreamer multiplexes every configured symbol over a single connection
// and replaces both sides wholesale on each books5 message.
type okxStreamer struct {
	*base
}

func (s *okxStreamer) Run(ctx context.Context) error {
	return s.runForever(ctx, "books5", func(ctx context.Context) error {
		return s.readLoop(ctx, okxWSURL, s.subscribe, s.handle)
	})
}

func (s *okxStreamer) subscribe(conn Conn) error {
	sub := okxSubscribeMessage{Op: "subscribe"}
	for _, st := range s.states {
		sub.Args = append(sub.Args, okxSubscribeArg{Channel: "books5", InstID: st.venueSymbol})
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *okxStreamer) handle(ctx context.Context, msg []byte) error {
	var m okxBookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	// Subscription acks and other channels are ignored.
	if m.Event != "" || m.Arg.Channel != "books5" || len(m.Data) == 0 {
		return nil
	}

	st, ok := s.lookup(m.Arg.InstID)
	if !ok {
		return nil
	}

	data := m.Data[0]
	// Parse before mutating so a bad frame never leaves the book ahead of
	// the published stream.
	tsMs, err := strconv.ParseFloat(data.Ts, 64)
	if err != nil {
		return nil
	}

	st.book.ReplaceBids(parseLevels(data.Bids))
	st.book.ReplaceAsks(parseLevels(data.Asks))
	st.book.SetLastUpdateID(data.SeqID)

	return s.publish(ctx, st, tsMs/1e3, data.SeqID, msg)
}
