package questdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// Ingestor converts batched order book events into rows and writes them to a
// RowSink, flushing once per batch.
type Ingestor struct {
	sink     RowSink
	instance string
	logger   *slog.Logger
}

// NewIngestor creates an ingestor tagging every row with the given instance
// label.
func NewIngestor(sink RowSink, instance string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		sink:     sink,
		instance: instance,
		logger:   logger.With(slog.String("component", "ingestor")),
	}
}

// Run consumes batches until ctx is cancelled.
func (i *Ingestor) Run(ctx context.Context, batches <-chan []domain.OrderBookEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-batches:
			i.Ingest(ctx, batch)
		}
	}
}

// Ingest writes one batch. Row-level failures are logged and skipped so a
// single malformed event cannot poison the batch; a failed flush drops the
// batch and is logged, the stream continues.
func (i *Ingestor) Ingest(ctx context.Context, batch []domain.OrderBookEvent) {
	written := 0
	for _, ev := range batch {
		row, err := i.rowFromEvent(ev)
		if err != nil {
			i.logger.Warn("row conversion failed",
				slog.String("exchange", ev.Exchange),
				slog.String("symbol", ev.Symbol.Display),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := i.sink.WriteRow(ctx, row); err != nil {
			i.logger.Warn("row write failed",
				slog.String("exchange", ev.Exchange),
				slog.String("symbol", ev.Symbol.Display),
				slog.String("error", err.Error()),
			)
			continue
		}
		written++
	}

	if written == 0 {
		return
	}
	if err := i.sink.Flush(ctx); err != nil {
		i.logger.Error("batch flush failed",
			slog.Int("rows", written),
			slog.String("error", err.Error()),
		)
		return
	}
	i.logger.Debug("batch flushed", slog.Int("rows", written))
}

func (i *Ingestor) rowFromEvent(ev domain.OrderBookEvent) (Row, error) {
	depthJSON, err := json.Marshal(ev.Depth)
	if err != nil {
		return Row{}, fmt.Errorf("questdb: marshal depth: %w", err)
	}

	// Rows are stamped with the venue's event time; receive time is kept as
	// its own column for latency analysis.
	at := ev.EventTs
	if at == 0 {
		at = ev.RecvTs
	}

	row := Row{
		Exchange:  ev.Exchange,
		Symbol:    ev.Symbol.Display,
		Base:      ev.Symbol.Base,
		Quote:     ev.Symbol.Quote,
		Region:    domain.Region(ev.Exchange, ev.Symbol.Quote),
		VenueType: "SPOT",
		Instance:  i.instance,
		Seq:       ev.Seq,
		RecvTsS:   ev.RecvTs,
		DepthJSON: string(depthJSON),
		RawJSON:   string(ev.Raw),
		At:        time.Unix(0, int64(at*1e9)),
	}

	bid, hasBid := ev.Depth.BestBid()
	ask, hasAsk := ev.Depth.BestAsk()
	if hasBid {
		v := bid.Price
		row.BestBid = &v
	}
	if hasAsk {
		v := ask.Price
		row.BestAsk = &v
	}
	// Derived metrics only exist for two-sided books; a one-sided book leaves
	// the columns null.
	if hasBid && hasAsk {
		mid := (bid.Price + ask.Price) / 2
		spread := (ask.Price - bid.Price) / mid * 10000
		row.MidPrice = &mid
		row.SpreadBps = &spread
	}

	return row, nil
}
