package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

func depthEvent(exchange string, seq int64, bids, asks []domain.PriceLevel) domain.OrderBookEvent {
	ev := event(seq)
	ev.Exchange = exchange
	ev.RecvTs = float64(seq)
	ev.Depth = domain.DepthSnapshot{
		Symbol: ev.Symbol.Display,
		Bids:   bids,
		Asks:   asks,
	}
	return ev
}

func TestConsoleSkipsHighFrequencyVenues(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 8)
	var buf syncBuffer
	c := NewConsole(in, &buf, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	bids := []domain.PriceLevel{{Price: 100, Qty: 1}}
	asks := []domain.PriceLevel{{Price: 101, Qty: 1}}
	in <- depthEvent("binance", 1, bids, asks)
	in <- depthEvent("okx", 2, bids, asks)
	in <- depthEvent("upbit", 3, bids, asks)

	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("UPBIT"))
	}, time.Second, 5*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "[UPBIT:BTC-USD] dt=0.000s bid=100.00 ask=101.00")
	assert.NotContains(t, out, "BINANCE")
	assert.NotContains(t, out, "OKX")
}

func TestConsoleSkipsOneSidedBooks(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 8)
	var buf syncBuffer
	c := NewConsole(in, &buf, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	in <- depthEvent("upbit", 1, []domain.PriceLevel{{Price: 100, Qty: 1}}, nil)
	in <- depthEvent("upbit", 2,
		[]domain.PriceLevel{{Price: 100, Qty: 1}},
		[]domain.PriceLevel{{Price: 101, Qty: 1}})

	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("UPBIT"))
	}, time.Second, 5*time.Millisecond)

	// The one-sided first event produced no line, so only one line exists and
	// its dt reflects the gap since the one-sided event was still tracked.
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

type recordingCache struct {
	mu     sync.Mutex
	quotes []domain.Quote
	calls  int
	err    error
}

func (r *recordingCache) SetQuote(_ context.Context, q domain.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.quotes = append(r.quotes, q)
	return nil
}

func (r *recordingCache) GetQuote(context.Context, string, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

func (r *recordingCache) snapshot() []domain.Quote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Quote(nil), r.quotes...)
}

func TestQuoteSinkComputesDerivedFields(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 8)
	cache := &recordingCache{}
	q := NewQuoteSink(in, cache, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	in <- depthEvent("upbit", 1,
		[]domain.PriceLevel{{Price: 100, Qty: 1}},
		[]domain.PriceLevel{{Price: 101, Qty: 2}})

	require.Eventually(t, func() bool {
		return len(cache.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	got := cache.snapshot()[0]
	assert.Equal(t, "upbit", got.Exchange)
	assert.Equal(t, "BTC-USD", got.Symbol)
	assert.Equal(t, 100.0, got.BestBid)
	assert.Equal(t, 101.0, got.BestAsk)
	assert.InDelta(t, 100.5, got.MidPrice, 1e-9)
	assert.InDelta(t, 1.0/100.5*10000, got.SpreadBps, 1e-9)
}

func TestQuoteSinkSkipsOneSidedAndSurvivesCacheErrors(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 8)
	cache := &recordingCache{err: errors.New("redis down")}
	q := NewQuoteSink(in, cache, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	in <- depthEvent("upbit", 1, []domain.PriceLevel{{Price: 100, Qty: 1}}, nil)
	in <- depthEvent("upbit", 2,
		[]domain.PriceLevel{{Price: 100, Qty: 1}},
		[]domain.PriceLevel{{Price: 101, Qty: 1}})

	// The one-sided event never reaches the cache; wait for the failing call
	// for event 2 before clearing the error. Errors must not stop the loop.
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.calls == 1
	}, time.Second, 5*time.Millisecond)
	cache.mu.Lock()
	cache.err = nil
	cache.mu.Unlock()

	in <- depthEvent("upbit", 3,
		[]domain.PriceLevel{{Price: 200, Qty: 1}},
		[]domain.PriceLevel{{Price: 201, Qty: 1}})

	require.Eventually(t, func() bool {
		return len(cache.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 200.0, cache.snapshot()[0].BestBid)
}

// syncBuffer guards a bytes.Buffer written by the console goroutine and read
// by test assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) String() string { return string(b.Bytes()) }
