package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	bybitWSURL   = "wss://stream.bybit.com/v5/public/spot"
	bybitRESTURL = "https://api.bybit.com/v5/market/orderbook"
)

type bybitSubscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// bybitSnapshotResponse is the REST depth snapshot used to seed the book
// before the incremental feed is applied.
type bybitSnapshotResponse struct {
	RetCode int `json:"retCode"`
	Result  struct {
		Bids     [][]string `json:"b"`
		Asks     [][]string `json:"a"`
		UpdateID int64      `json:"u"`
	} `json:"result"`
}

// bybitBookMessage is an "orderbook.50" delta frame.
type bybitBookMessage struct {
	Topic string `json:"topic"`
	Op    string `json:"op"`
	Data  struct {
		Bids     [][]string `json:"b"`
		Asks     [][]string `json:"a"`
		UpdateID int64      `json:"u"`
		Ts       float64    `json:"t"` // ms
	} `json:"data"`
}

// bybitStreamer runs one connection per symbol. Bybit's incremental feed is
// only meaningful against a populated book, so each session fetches a REST
// snapshot and seeds the book before reading deltas; otherwise every update
// would be applied against an artificially empty book.
type bybitStreamer struct {
	*base
	httpc *http.Client
}

func newBybit(b *base) *bybitStreamer {
	return &bybitStreamer{
		base:  b,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *bybitStreamer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, st := range s.states {
		g.Go(func() error {
			return s.runForever(ctx, st.display, func(ctx context.Context) error {
				return s.session(ctx, st)
			})
		})
	}
	return g.Wait()
}

func (s *bybitStreamer) session(ctx context.Context, st *symbolState) error {
	if err := s.bootstrap(ctx, st); err != nil {
		return err
	}

	subscribe := func(conn Conn) error {
		sub := bybitSubscribeMessage{
			Op:   "subscribe",
			Args: []string{"orderbook.50." + st.venueSymbol},
		}
		payload, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	return s.readLoop(ctx, bybitWSURL, subscribe, func(ctx context.Context, msg []byte) error {
		return s.handle(ctx, st, msg)
	})
}

// bootstrap fetches the REST depth snapshot and replaces the book wholesale.
func (s *bybitStreamer) bootstrap(ctx context.Context, st *symbolState) error {
	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", st.venueSymbol)
	q.Set("limit", "200")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bybitRESTURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("feed: bybit: snapshot request: %w", err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("feed: bybit: snapshot fetch %s: %w", st.venueSymbol, err)
	}
	defer resp.Body.Close()

	var snap bybitSnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("feed: bybit: snapshot decode %s: %w", st.venueSymbol, err)
	}
	if snap.RetCode != 0 {
		return fmt.Errorf("feed: bybit: snapshot %s: retCode %d", st.venueSymbol, snap.RetCode)
	}

	st.book.ReplaceBids(parseLevels(snap.Result.Bids))
	st.book.ReplaceAsks(parseLevels(snap.Result.Asks))
	id := snap.Result.UpdateID
	if id == 0 {
		id = time.Now().UnixMilli()
	}
	st.book.SetLastUpdateID(id)

	s.logger.Info("snapshot loaded", slog.String("symbol", st.display), slog.Int64("seq", id))
	return nil
}

func (s *bybitStreamer) handle(ctx context.Context, st *symbolState, msg []byte) error {
	var m bybitBookMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil
	}
	// Heartbeats and subscription acks carry op instead of topic.
	if m.Op != "" || !strings.HasPrefix(m.Topic, "orderbook.") {
		return nil
	}

	st.book.ApplyBids(parseLevels(m.Data.Bids))
	st.book.ApplyAsks(parseLevels(m.Data.Asks))

	tsMs := m.Data.Ts
	if tsMs == 0 {
		tsMs = float64(time.Now().UnixMilli())
	}
	seq := m.Data.UpdateID
	if seq == 0 {
		seq = int64(tsMs)
	}
	st.book.SetLastUpdateID(seq)

	return s.publish(ctx, st, tsMs/1e3, seq, msg)
}
