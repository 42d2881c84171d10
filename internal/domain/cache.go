package domain

import "context"

// Quote is the latest top-of-book for one (exchange, symbol), kept hot in the
// cache for operational visibility without querying the time-series store.
type Quote struct {
	Exchange  string
	Symbol    string
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	SpreadBps float64
	RecvTs    float64
}

// QuoteCache stores the most recent quote per (exchange, symbol).
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, exchange, symbol string) (Quote, error)
}
