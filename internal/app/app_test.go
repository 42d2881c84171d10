package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/config"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.OrderBookEvent) error { return nil }

func newTestApp(cfg config.Config) *App {
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartStreamersSkipsBrokenVenuesAndCountsTheRest(t *testing.T) {
	cfg := config.Defaults()
	// One venue with no symbols must be skipped without taking the rest down.
	cfg.Venues["korbit"] = config.VenueConfig{Enabled: true}

	a := newTestApp(cfg)

	// A cancelled context lets every started streamer exit immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, ctx := errgroup.WithContext(ctx)

	require.NoError(t, a.startStreamers(ctx, g, nopPublisher{}))
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}

func TestStartStreamersErrorsWhenNothingStarts(t *testing.T) {
	cfg := config.Defaults()
	for name := range cfg.Venues {
		cfg.Venues[name] = config.VenueConfig{Enabled: name == "upbit"}
	}

	a := newTestApp(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, ctx := errgroup.WithContext(ctx)

	// The only enabled venue has no symbols, so zero streamers start.
	err := a.startStreamers(ctx, g, nopPublisher{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no venue streamers")
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "replay"
	cfg.QuestDB.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Archive.Upload = false

	a := newTestApp(cfg)
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "replay"`)
}
