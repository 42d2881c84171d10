package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// Batcher coalesces single events into batches gated by size or elapsed time,
// whichever fires first. It exists purely to amortize per-write overhead in
// the storage ingestor; it never reorders and never emits an empty batch.
type Batcher struct {
	in      <-chan domain.OrderBookEvent
	out     chan []domain.OrderBookEvent
	size    int
	maxWait time.Duration
	logger  *slog.Logger
}

// NewBatcher creates a batcher reading from in, flushing at size events or
// after maxWait since the previous flush.
func NewBatcher(in <-chan domain.OrderBookEvent, size int, maxWait time.Duration, logger *slog.Logger) *Batcher {
	return &Batcher{
		in:      in,
		out:     make(chan []domain.OrderBookEvent, 8),
		size:    size,
		maxWait: maxWait,
		logger:  logger.With(slog.String("component", "batcher")),
	}
}

// Batches returns the output channel of flushed batches.
func (b *Batcher) Batches() <-chan []domain.OrderBookEvent {
	return b.out
}

// Run accumulates and flushes until ctx is cancelled. A final in-flight
// buffer at shutdown is dropped; delivery is at-least-once end to end, and
// the last partial batch is the accepted loss window.
func (b *Batcher) Run(ctx context.Context) error {
	buf := make([]domain.OrderBookEvent, 0, b.size)
	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.maxWait)
	}

	// flush emits the buffer as one batch and restarts the wait window. An
	// empty buffer restarts the window without emitting anything.
	flush := func() error {
		defer resetTimer()
		if len(buf) == 0 {
			return nil
		}
		batch := buf
		buf = make([]domain.OrderBookEvent, 0, b.size)
		select {
		case b.out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.in:
			buf = append(buf, ev)
			if len(buf) >= b.size {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-timer.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
