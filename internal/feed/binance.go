package feed

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"
)

const binanceStreamBase = "wss://fstream.binance.com/stream?streams="

// binanceDepthMessage is the combined-stream envelope for the
// "<symbol>@depth@100ms" diff feed. Bids and asks are incremental updates;
// qty "0" removes the level.
type binanceDepthMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		EventTime int64      `json:"E"` // ms
		FinalID   int64      `json:"u"`
		Bids      [][]string `json:"b"`
		Asks      [][]string `json:"a"`
	} `json:"data"`
}

// binanceStreamer runs one connection per symbol. Binance diff messages are
// self-sufficient for top-of-book tracking, so there is no snapshot
// bootstrap.
type binanceStreamer struct {
	*base
}

func (s *binanceStreamer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, st := range s.states {
		st := st
		g.Go(func() error {
			url := binanceStreamBase + strings.ToLower(st.venueSymbol) + "@depth@100ms"
			return s.runForever(ctx, st.display, func(ctx context.Context) error {
				return s.readLoop(ctx, url, nil, func(ctx context.Context, msg []byte) error {
					return s.handle(ctx, st, msg)
				})
			})
		})
	}
	return g.Wait()
}

func (s *binanceStreamer) handle(ctx context.Context, st *symbolState, msg []byte) error {
	var m binanceDepthMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil // drop malformed message, keep the connection
	}
	// Control frames (subscribe acks) have no event time. Depth frames are
	// published even when the diff itself is empty.
	if m.Data.EventTime == 0 {
		return nil
	}

	st.book.ApplyBids(parseLevels(m.Data.Bids))
	st.book.ApplyAsks(parseLevels(m.Data.Asks))
	st.book.SetLastUpdateID(m.Data.FinalID)

	return s.publish(ctx, st, float64(m.Data.EventTime)/1e3, m.Data.FinalID, msg)
}
