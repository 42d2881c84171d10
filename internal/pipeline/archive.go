package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gogog01-29-2021/orderbook-pipeline/internal/domain"
)

// SegmentUploader receives rotated archive segments for cold storage. The
// S3 writer satisfies this; a nil uploader keeps segments local only.
type SegmentUploader interface {
	UploadSegment(ctx context.Context, path string) error
}

// ArchiveConfig controls the archive consumer.
type ArchiveConfig struct {
	// Dir is the directory holding the active archive file and rotated
	// segments.
	Dir string

	// RotateBytes rotates the active file once it exceeds this size.
	// Zero disables size-based rotation.
	RotateBytes int64

	// RotateInterval rotates the active file after this much wall time.
	// Zero disables age-based rotation.
	RotateInterval time.Duration
}

// Archive appends one JSON record per event to a newline-delimited file,
// synchronously. It is a best-effort audit trail, not a source of truth. Completed
// segments are renamed with a timestamp plus run ID and optionally shipped to
// the uploader.
type Archive struct {
	in       <-chan domain.OrderBookEvent
	cfg      ArchiveConfig
	uploader SegmentUploader
	runID    string
	logger   *slog.Logger

	file     *os.File
	written  int64
	openedAt time.Time
}

// NewArchive creates the archive consumer. runID disambiguates segment names
// across process restarts.
func NewArchive(in <-chan domain.OrderBookEvent, cfg ArchiveConfig, uploader SegmentUploader, runID string, logger *slog.Logger) *Archive {
	return &Archive{
		in:       in,
		cfg:      cfg,
		uploader: uploader,
		runID:    runID,
		logger:   logger.With(slog.String("component", "archive")),
	}
}

func (a *Archive) activePath() string {
	return filepath.Join(a.cfg.Dir, "orderbook_stream.jsonl")
}

// Run appends events until ctx is cancelled.
func (a *Archive) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("archive: create dir %s: %w", a.cfg.Dir, err)
	}
	if err := a.open(); err != nil {
		return err
	}
	defer a.file.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.in:
			if err := a.append(ctx, ev); err != nil {
				// A failing audit trail is logged, not fatal to the pipeline.
				a.logger.Error("archive write failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *Archive) open() error {
	f, err := os.OpenFile(a.activePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", a.activePath(), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("archive: stat %s: %w", a.activePath(), err)
	}
	a.file = f
	a.written = info.Size()
	a.openedAt = time.Now()
	return nil
}

func (a *Archive) append(ctx context.Context, ev domain.OrderBookEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("archive: marshal event: %w", err)
	}
	line = append(line, '\n')

	n, err := a.file.Write(line)
	if err != nil {
		return fmt.Errorf("archive: write: %w", err)
	}
	a.written += int64(n)

	if a.shouldRotate() {
		if err := a.rotate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) shouldRotate() bool {
	if a.cfg.RotateBytes > 0 && a.written >= a.cfg.RotateBytes {
		return true
	}
	if a.cfg.RotateInterval > 0 && time.Since(a.openedAt) >= a.cfg.RotateInterval {
		return true
	}
	return false
}

// rotate closes the active file, renames it to a unique segment, re-opens a
// fresh active file, and hands the segment to the uploader when one is
// configured. Upload failures keep the segment on disk for a later manual
// sweep.
func (a *Archive) rotate(ctx context.Context) error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("archive: close for rotation: %w", err)
	}

	segment := filepath.Join(a.cfg.Dir, fmt.Sprintf(
		"orderbook_stream-%s-%s.jsonl",
		time.Now().UTC().Format("20060102T150405"),
		a.runID,
	))
	if err := os.Rename(a.activePath(), segment); err != nil {
		return fmt.Errorf("archive: rotate to %s: %w", segment, err)
	}
	a.logger.Info("archive segment rotated",
		slog.String("segment", segment),
		slog.Int64("bytes", a.written),
	)

	if err := a.open(); err != nil {
		return err
	}

	if a.uploader != nil {
		if err := a.uploader.UploadSegment(ctx, segment); err != nil {
			a.logger.Error("segment upload failed, keeping local copy",
				slog.String("segment", segment),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
