// Package questdb persists order book events to QuestDB. Hot-path writes go
// over ILP (the line protocol) through a single shared sender; schema
// management goes over the PostgreSQL wire protocol via pgx.
package questdb

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
)

// Row is one order book observation in table layout: symbol-typed tag columns
// first, then value columns. A nil pointer field means the column is omitted
// from the row entirely; one-sided books must produce nulls, never synthetic
// prices.
type Row struct {
	Exchange  string
	Symbol    string
	Base      string
	Quote     string
	Region    string
	VenueType string
	Instance  string

	Seq       int64
	BestBid   *float64
	BestAsk   *float64
	MidPrice  *float64
	SpreadBps *float64
	RecvTsS   float64
	DepthJSON string
	RawJSON   string

	At time.Time
}

// RowSink receives rows for a table. Implementations are not safe for
// concurrent use; the ingestor is the sole writer.
type RowSink interface {
	WriteRow(ctx context.Context, row Row) error
	Flush(ctx context.Context) error
}

// Client wraps a qdb.LineSender built from a client conf string such as
// "http::addr=localhost:9000;". It implements RowSink for a fixed table.
type Client struct {
	sender qdb.LineSender
	table  string
}

// NewClient connects an ILP sender using the given conf string and targets
// the given table.
func NewClient(ctx context.Context, conf, table string) (*Client, error) {
	sender, err := qdb.LineSenderFromConf(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("questdb: create sender: %w", err)
	}
	return &Client{sender: sender, table: table}, nil
}

// WriteRow appends one row to the sender's buffer.
func (c *Client) WriteRow(ctx context.Context, row Row) error {
	b := c.sender.Table(c.table).
		Symbol("exchange", row.Exchange).
		Symbol("symbol", row.Symbol).
		Symbol("base", row.Base).
		Symbol("quote", row.Quote).
		Symbol("region", row.Region).
		Symbol("venue_type", row.VenueType).
		Symbol("instance", row.Instance).
		Int64Column("seq", row.Seq)

	if row.BestBid != nil {
		b = b.Float64Column("best_bid", *row.BestBid)
	}
	if row.BestAsk != nil {
		b = b.Float64Column("best_ask", *row.BestAsk)
	}
	if row.MidPrice != nil {
		b = b.Float64Column("mid_price", *row.MidPrice)
	}
	if row.SpreadBps != nil {
		b = b.Float64Column("spread_bps", *row.SpreadBps)
	}

	b = b.Float64Column("recv_ts_s", row.RecvTsS).
		StringColumn("depth_json", row.DepthJSON).
		StringColumn("raw_json", row.RawJSON)

	if err := b.At(ctx, row.At); err != nil {
		return fmt.Errorf("questdb: write row: %w", err)
	}
	return nil
}

// Flush sends the buffered rows to the server.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.sender.Flush(ctx); err != nil {
		return fmt.Errorf("questdb: flush: %w", err)
	}
	return nil
}

// Close flushes outstanding rows and releases the sender.
func (c *Client) Close(ctx context.Context) error {
	if err := c.sender.Close(ctx); err != nil {
		return fmt.Errorf("questdb: close sender: %w", err)
	}
	return nil
}
