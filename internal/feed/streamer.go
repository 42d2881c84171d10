// Package feed implements the per-venue order-book streamers. Each streamer
// owns one or more WebSocket connections and the local order books for its
// configured symbols, translates venue wire messages into normalized
// OrderBookEvents, and publishes them into the distributor. Seven venues are
// supported: binance, okx, bybit (global) and upbit, bithumb, coinone, korbit
// (Korean).
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/book"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

const (
	// reconnectDelay is the fixed sleep between reconnect attempts. There is
	// deliberately no backoff growth: for a live feed the primary risk is
	// staleness, not reconnection load, so the loop retries at a constant
	// cadence forever.
	reconnectDelay = 5 * time.Second

	// pingPeriod is how often client pings are sent on an open connection.
	pingPeriod = 20 * time.Second

	// readWait bounds how long a connection may stay silent before the read
	// fails and the reconnect loop takes over. A silent stall (connection
	// open, no data) would otherwise go undetected indefinitely.
	readWait = 60 * time.Second

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	handshakeTimeout = 15 * time.Second
)

// Streamer is one venue's ingestion task. Run blocks until ctx is cancelled,
// reconnecting on any transport error along the way.
type Streamer interface {
	Exchange() string
	Run(ctx context.Context) error
}

// Publisher is the distributor input. Publish blocks while the input queue is
// full; that blocking is the ingestion-edge backpressure that throttles a
// streamer's read loop instead of letting memory grow.
type Publisher interface {
	Publish(ctx context.Context, ev domain.OrderBookEvent) error
}

// Conn is the subset of *websocket.Conn the streamers use. It exists so tests
// can drive a streamer through scripted connections.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Dialer opens a WebSocket connection to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", url, err)
	}
	return conn, nil
}

// New constructs the streamer for the named exchange. symbols maps canonical
// display symbols to venue-native symbols. An empty symbol map is a fatal
// configuration error for this venue only; the caller logs it and keeps the
// other venues running.
func New(exchange string, symbols map[string]string, out Publisher, depth int, logger *slog.Logger) (Streamer, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("feed: %s: %w", exchange, domain.ErrNoSymbols)
	}

	b := newBase(exchange, symbols, out, depth, logger)
	switch exchange {
	case "binance":
		return &binanceStreamer{base: b}, nil
	case "okx":
		return &okxStreamer{base: b}, nil
	case "bybit":
		return newBybit(b), nil
	case "upbit":
		return &upbitStreamer{base: b}, nil
	case "bithumb":
		return &bithumbStreamer{base: b}, nil
	case "coinone":
		return &coinoneStreamer{base: b}, nil
	case "korbit":
		return &korbitStreamer{base: b}, nil
	default:
		return nil, fmt.Errorf("feed: %s: %w", exchange, domain.ErrUnknownVenue)
	}
}

// symbolState bundles everything a streamer tracks per configured symbol. The
// book is created once at streamer construction and lives until the process
// exits; it never leaves the streamer goroutine, only snapshots do.
type symbolState struct {
	display     string
	venueSymbol string
	canonical   domain.CanonicalSymbol
	book        *book.LocalOrderBook
}

// base carries the state and helpers shared by all seven venue streamers.
type base struct {
	exchange   string
	depth      int
	out        Publisher
	dial       Dialer
	retryDelay time.Duration
	logger     *slog.Logger

	states  []*symbolState
	byVenue map[string]*symbolState // upper-cased venue symbol -> state
}

func newBase(exchange string, symbols map[string]string, out Publisher, depth int, logger *slog.Logger) *base {
	b := &base{
		exchange:   exchange,
		depth:      depth,
		out:        out,
		dial:       gorillaDial,
		retryDelay: reconnectDelay,
		logger:     logger.With(slog.String("component", "feed"), slog.String("exchange", exchange)),
		byVenue:    make(map[string]*symbolState, len(symbols)),
	}
	for display, venueSym := range symbols {
		st := &symbolState{
			display:     display,
			venueSymbol: venueSym,
			canonical:   domain.Normalize(exchange, venueSym),
			book:        book.New(display),
		}
		b.states = append(b.states, st)
		b.byVenue[strings.ToUpper(venueSym)] = st
	}
	return b
}

func (b *base) Exchange() string { return b.exchange }

// lookup resolves an inbound venue symbol to its owned state. A miss is
// expected background noise on multiplexed feeds and is handled by silently
// dropping the message, not by erroring.
func (b *base) lookup(venueSym string) (*symbolState, bool) {
	st, ok := b.byVenue[strings.ToUpper(venueSym)]
	return st, ok
}

// publish snapshots the just-updated book and hands the event to the
// distributor. It blocks while the distributor input is full.
func (b *base) publish(ctx context.Context, st *symbolState, eventTs float64, seq int64, raw []byte) error {
	ev := domain.OrderBookEvent{
		Exchange:    b.exchange,
		Symbol:      st.canonical,
		VenueSymbol: st.venueSymbol,
		EventTs:     eventTs,
		RecvTs:      float64(time.Now().UnixNano()) / 1e9,
		Seq:         seq,
		Depth:       st.book.Snapshot(b.depth),
		Raw:         append([]byte(nil), raw...),
	}
	return b.out.Publish(ctx, ev)
}

// runForever is the sole transport failure policy: run one connection session,
// and on any error log it and retry after a fixed delay. It returns only when
// ctx is cancelled.
func (b *base) runForever(ctx context.Context, stream string, session func(ctx context.Context) error) error {
	for {
		err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = domain.ErrWSDisconnect
		}
		b.logger.Warn("stream disconnected, reconnecting",
			slog.String("stream", stream),
			slog.Duration("delay", b.retryDelay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
}

// readLoop dials url, runs subscribe (if any), then reads messages until the
// connection fails, feeding each frame to handle. A handle error tears the
// session down (it means publish/ctx failed, not a parse problem; parse
// errors are swallowed inside the handlers).
func (b *base) readLoop(ctx context.Context, url string, subscribe func(Conn) error, handle func(ctx context.Context, msg []byte) error) error {
	conn, err := b.dial(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	if subscribe != nil {
		if err := subscribe(conn); err != nil {
			return fmt.Errorf("feed: %s: subscribe: %w", b.exchange, err)
		}
	}

	// Pinger keeps idle feeds alive and closes the conn on ctx cancel so the
	// blocked ReadMessage below unblocks.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: %s: read: %w", b.exchange, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if err := handle(ctx, msg); err != nil {
			return err
		}
	}
}

// parseLevels converts venue [price, qty, ...] string tuples into price
// levels. Entries with fewer than two elements or unparseable numbers are
// skipped; extra elements (OKX appends order counts) are ignored.
func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(entry[0], 64)
		qty, err2 := strconv.ParseFloat(entry[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Qty: qty})
	}
	return levels
}
