package pipeline

import (
	"context"
	"log/slog"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// QuoteSink keeps the cache's latest top-of-book current. One-sided books are
// skipped entirely rather than cached with synthetic values.
type QuoteSink struct {
	in     <-chan domain.OrderBookEvent
	cache  domain.QuoteCache
	logger *slog.Logger
}

// NewQuoteSink creates a quote cache consumer.
func NewQuoteSink(in <-chan domain.OrderBookEvent, cache domain.QuoteCache, logger *slog.Logger) *QuoteSink {
	return &QuoteSink{
		in:     in,
		cache:  cache,
		logger: logger.With(slog.String("component", "quote_sink")),
	}
}

// Run updates the cache until ctx is cancelled. Cache write failures are
// logged and skipped; a stale quote is preferable to a stalled pipeline.
func (q *QuoteSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-q.in:
			bid, hasBid := ev.Depth.BestBid()
			ask, hasAsk := ev.Depth.BestAsk()
			if !hasBid || !hasAsk {
				continue
			}
			mid := (bid.Price + ask.Price) / 2
			quote := domain.Quote{
				Exchange:  ev.Exchange,
				Symbol:    ev.Symbol.Display,
				BestBid:   bid.Price,
				BestAsk:   ask.Price,
				MidPrice:  mid,
				SpreadBps: (ask.Price - bid.Price) / mid * 10000,
				RecvTs:    ev.RecvTs,
			}
			if err := q.cache.SetQuote(ctx, quote); err != nil {
				q.logger.Warn("quote cache update failed",
					slog.String("exchange", ev.Exchange),
					slog.String("symbol", ev.Symbol.Display),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
