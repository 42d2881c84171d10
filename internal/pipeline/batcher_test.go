package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

func collectBatch(t *testing.T, ch <-chan []domain.OrderBookEvent, wait time.Duration) []domain.OrderBookEvent {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(wait):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestBatcherFlushesOnSize(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 16)
	b := NewBatcher(in, 3, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	for i := int64(1); i <= 7; i++ {
		in <- event(i)
	}

	first := collectBatch(t, b.Batches(), time.Second)
	second := collectBatch(t, b.Batches(), time.Second)
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	assert.Equal(t, int64(1), first[0].Seq)
	assert.Equal(t, int64(3), first[2].Seq)
	assert.Equal(t, int64(4), second[0].Seq)

	// Seventh event stays buffered; with an hour-long window nothing more
	// may arrive.
	select {
	case batch := <-b.Batches():
		t.Fatalf("unexpected batch of %d before window elapsed", len(batch))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBatcherFlushesOnTimer(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 16)
	b := NewBatcher(in, 100, 30*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	in <- event(1)
	in <- event(2)

	batch := collectBatch(t, b.Batches(), time.Second)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].Seq)
	assert.Equal(t, int64(2), batch[1].Seq)
}

func TestBatcherNeverEmitsEmptyBatches(t *testing.T) {
	in := make(chan domain.OrderBookEvent, 16)
	b := NewBatcher(in, 100, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	// Let several empty windows elapse, then feed one event; the only batch
	// ever emitted holds that event.
	time.Sleep(60 * time.Millisecond)
	in <- event(9)

	batch := collectBatch(t, b.Batches(), time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(9), batch[0].Seq)

	select {
	case batch := <-b.Batches():
		assert.NotEmpty(t, batch, "batcher emitted an empty batch")
		t.Fatalf("unexpected extra batch of %d", len(batch))
	case <-time.After(30 * time.Millisecond):
	}
}

func TestBatcherStopsOnCancel(t *testing.T) {
	in := make(chan domain.OrderBookEvent)
	b := NewBatcher(in, 10, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("batcher did not stop")
	}
}
