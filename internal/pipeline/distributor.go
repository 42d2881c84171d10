// Package pipeline contains the stages between the venue streamers and the
// sinks: the fan-out distributor, the size/time batcher, and the console,
// archive, and quote consumers. Stages are connected only by bounded
// channels; those channels are the system's sole synchronization primitive.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// Distributor fans every published event out to all registered consumer
// queues in registration order. Each queue is bounded; a full queue suspends
// the distributor and, transitively, the publishing streamer. Backpressure is
// deliberately coupled: all consumers fall behind together rather than any
// one of them buffering without bound.
type Distributor struct {
	in        chan domain.OrderBookEvent
	consumers []consumerQueue
	running   atomic.Bool
	logger    *slog.Logger
}

type consumerQueue struct {
	name string
	ch   chan domain.OrderBookEvent
}

// NewDistributor creates a distributor whose input queue holds up to size
// events.
func NewDistributor(size int, logger *slog.Logger) *Distributor {
	return &Distributor{
		in:     make(chan domain.OrderBookEvent, size),
		logger: logger.With(slog.String("component", "distributor")),
	}
}

// Publish enqueues one event, blocking while the input queue is full. This is
// the ingestion-edge backpressure point.
func (d *Distributor) Publish(ctx context.Context, ev domain.OrderBookEvent) error {
	select {
	case d.in <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a named consumer queue of the given capacity and returns its
// receive side. All registration must happen before Run starts.
func (d *Distributor) Register(name string, size int) <-chan domain.OrderBookEvent {
	if d.running.Load() {
		panic(fmt.Sprintf("pipeline: register %q after distributor started", name))
	}
	ch := make(chan domain.OrderBookEvent, size)
	d.consumers = append(d.consumers, consumerQueue{name: name, ch: ch})
	return ch
}

// Run moves events from the input queue to every consumer queue until ctx is
// cancelled. Delivery order within a consumer matches submission order.
func (d *Distributor) Run(ctx context.Context) error {
	d.running.Store(true)
	d.logger.Info("distributor started", slog.Int("consumers", len(d.consumers)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.in:
			for _, c := range d.consumers {
				select {
				case c.ch <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
