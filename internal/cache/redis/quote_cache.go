package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes.
// Each (exchange, symbol) pair's latest top-of-book is stored at
// "quote:{exchange}:{symbol}" with one field per quote attribute, expiring
// after the configured TTL so a dead feed leaves no stale quote behind.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. Quotes
// expire after ttl; a non-positive ttl keeps them forever.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(exchange, symbol string) string {
	return "quote:" + exchange + ":" + symbol
}

// SetQuote stores the latest quote for its (exchange, symbol) pair.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Exchange, q.Symbol)
	fields := map[string]interface{}{
		"best_bid":   strconv.FormatFloat(q.BestBid, 'f', -1, 64),
		"best_ask":   strconv.FormatFloat(q.BestAsk, 'f', -1, 64),
		"mid_price":  strconv.FormatFloat(q.MidPrice, 'f', -1, 64),
		"spread_bps": strconv.FormatFloat(q.SpreadBps, 'f', -1, 64),
		"recv_ts":    strconv.FormatFloat(q.RecvTs, 'f', -1, 64),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for an (exchange, symbol) pair.
// It returns domain.ErrNotFound when no quote exists.
func (qc *QuoteCache) GetQuote(ctx context.Context, exchange, symbol string) (domain.Quote, error) {
	key := quoteKey(exchange, symbol)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{Exchange: exchange, Symbol: symbol}
	parse := func(field string, dst *float64) error {
		s, ok := vals[field]
		if !ok {
			return fmt.Errorf("redis: quote %s missing field %s", key, field)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("redis: parse quote %s field %s: %w", key, field, err)
		}
		*dst = v
		return nil
	}

	for field, dst := range map[string]*float64{
		"best_bid":   &q.BestBid,
		"best_ask":   &q.BestAsk,
		"mid_price":  &q.MidPrice,
		"spread_bps": &q.SpreadBps,
		"recv_ts":    &q.RecvTs,
	} {
		if err := parse(field, dst); err != nil {
			return domain.Quote{}, err
		}
	}

	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
