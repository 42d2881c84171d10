package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/gogog01-29-2021/orderbook-pipeline/internal/blob/s3"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/cache/redis"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/config"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/pipeline"
	"github.com/gogog01-29-2021/orderbook-pipeline/internal/store/questdb"
)

// Dependencies bundles the optional backends the application modes need. Any
// of the fields may be nil when the corresponding backend is disabled; the
// modes wire up only the consumers whose dependencies exist.
type Dependencies struct {
	// Sink receives rows destined for QuestDB. Nil when storage is disabled.
	Sink *questdb.Client

	// QuoteCache holds the latest top-of-book per (exchange, symbol). Nil
	// when Redis is disabled.
	QuoteCache domain.QuoteCache

	// Uploader pushes rotated archive segments to object storage. Nil when
	// archive uploads are disabled.
	Uploader pipeline.SegmentUploader
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	printOnly := strings.ToLower(cfg.Mode) == "print"

	deps := &Dependencies{}

	// --- QuestDB ILP sender ---
	if cfg.QuestDB.Enabled && !printOnly {
		sink, err := questdb.NewClient(ctx, cfg.QuestDB.Conf, cfg.QuestDB.Table)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: questdb: %w", err)
		}
		closers = append(closers, func() {
			if err := sink.Close(context.Background()); err != nil {
				logger.Warn("questdb sender close failed", slog.String("error", err.Error()))
			}
		})
		deps.Sink = sink
	}

	// --- Redis quote cache ---
	if cfg.Redis.Enabled && !printOnly {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Redis.QuoteTTL.Duration)
	}

	// --- S3 segment uploader ---
	if cfg.Archive.Enabled && cfg.Archive.Upload && !printOnly {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Uploader = s3blob.NewUploader(s3Client, cfg.S3.KeyPrefix)
	}

	return deps, cleanup, nil
}
