package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/feed"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/pipeline"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/store/questdb"
)

// StreamMode runs the full pipeline: venue streamers feed the distributor,
// which fans out to the console, the JSONL archive, the quote cache, and the
// batcher feeding the QuestDB ingestor. It blocks until the context is
// cancelled or a pipeline stage fails.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	g, ctx := errgroup.WithContext(ctx)
	runID := uuid.New().String()[:8]

	dist := pipeline.NewDistributor(a.cfg.Pipeline.QueueSize, a.logger)

	// Console consumer.
	consoleCh := dist.Register("console", a.cfg.Pipeline.ConsumerQueueSize)
	console := pipeline.NewConsole(consoleCh, os.Stdout, a.logger)
	g.Go(func() error { return console.Run(ctx) })

	// Archive consumer.
	if a.cfg.Archive.Enabled {
		archiveCh := dist.Register("archive", a.cfg.Pipeline.ConsumerQueueSize)
		archive := pipeline.NewArchive(archiveCh, pipeline.ArchiveConfig{
			Dir:            a.cfg.Archive.Dir,
			RotateBytes:    a.cfg.Archive.RotateBytes,
			RotateInterval: a.cfg.Archive.RotateInterval.Duration,
		}, deps.Uploader, runID, a.logger)
		g.Go(func() error { return archive.Run(ctx) })
	}

	// Quote cache consumer.
	if deps.QuoteCache != nil {
		quoteCh := dist.Register("quotes", a.cfg.Pipeline.ConsumerQueueSize)
		quotes := pipeline.NewQuoteSink(quoteCh, deps.QuoteCache, a.logger)
		g.Go(func() error { return quotes.Run(ctx) })
	}

	// Storage consumer: batcher feeding the ingestor.
	if deps.Sink != nil {
		storageCh := dist.Register("storage", a.cfg.Pipeline.ConsumerQueueSize)
		batcher := pipeline.NewBatcher(storageCh, a.cfg.Pipeline.BatchSize,
			a.cfg.Pipeline.BatchMaxWait.Duration, a.logger)
		ingestor := questdb.NewIngestor(deps.Sink, a.cfg.Instance, a.logger)
		g.Go(func() error { return batcher.Run(ctx) })
		g.Go(func() error { return ingestor.Run(ctx, batcher.Batches()) })
	}

	g.Go(func() error { return dist.Run(ctx) })

	if err := a.startStreamers(ctx, g, dist); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "pipeline running", slog.String("run_id", runID))
	return g.Wait()
}

// PrintMode runs the venue streamers with only the console consumer attached.
// Storage, archive, and cache backends are not touched.
func (a *App) PrintMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting print mode")

	g, ctx := errgroup.WithContext(ctx)

	dist := pipeline.NewDistributor(a.cfg.Pipeline.QueueSize, a.logger)
	consoleCh := dist.Register("console", a.cfg.Pipeline.ConsumerQueueSize)
	console := pipeline.NewConsole(consoleCh, os.Stdout, a.logger)
	g.Go(func() error { return console.Run(ctx) })
	g.Go(func() error { return dist.Run(ctx) })

	if err := a.startStreamers(ctx, g, dist); err != nil {
		return err
	}

	return g.Wait()
}

// startStreamers constructs and launches one streamer per enabled venue. A
// venue whose construction fails is logged and skipped so the rest of the
// fleet still runs; zero running streamers is an error.
func (a *App) startStreamers(ctx context.Context, g *errgroup.Group, out feed.Publisher) error {
	started := 0
	for name, vc := range a.cfg.Venues {
		if !vc.Enabled {
			continue
		}
		streamer, err := feed.New(name, vc.Symbols, out, a.cfg.Depth, a.logger)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping venue",
				slog.String("exchange", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		g.Go(func() error { return streamer.Run(ctx) })
		started++
	}

	if started == 0 {
		return fmt.Errorf("app: no venue streamers could be started")
	}
	a.logger.InfoContext(ctx, "streamers started", slog.Int("count", started))
	return nil
}
