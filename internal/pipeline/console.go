package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// Console prints a one-line top-of-book summary per event. The two
// highest-frequency venues are skipped so the output stays readable at a
// human pace.
type Console struct {
	in     <-chan domain.OrderBookEvent
	w      io.Writer
	skip   map[string]bool
	logger *slog.Logger

	// lastSeen tracks the previous receive timestamp per (exchange, symbol)
	// so the printed line can show the inter-update gap.
	lastSeen map[string]float64
}

// NewConsole creates a console consumer writing to w.
func NewConsole(in <-chan domain.OrderBookEvent, w io.Writer, logger *slog.Logger) *Console {
	return &Console{
		in: in,
		w:  w,
		skip: map[string]bool{
			"binance": true,
			"okx":     true,
		},
		logger:   logger.With(slog.String("component", "console")),
		lastSeen: make(map[string]float64),
	}
}

// Run prints events until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.in:
			c.print(ev)
		}
	}
}

func (c *Console) print(ev domain.OrderBookEvent) {
	if c.skip[ev.Exchange] {
		return
	}

	key := ev.Exchange + ":" + ev.Symbol.Display
	prev, seen := c.lastSeen[key]
	c.lastSeen[key] = ev.RecvTs
	dt := 0.0
	if seen {
		dt = ev.RecvTs - prev
	}

	bid, hasBid := ev.Depth.BestBid()
	ask, hasAsk := ev.Depth.BestAsk()
	if !hasBid || !hasAsk {
		return
	}

	fmt.Fprintf(c.w, "[%s:%s] dt=%.3fs bid=%.2f ask=%.2f\n",
		strings.ToUpper(ev.Exchange), ev.Symbol.Display, dt, bid.Price, ask.Price)
}
