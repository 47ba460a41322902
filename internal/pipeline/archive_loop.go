package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotArchiver uploads a snapshot of the active markets to cold
// storage. *s3blob.Archiver satisfies it.
type SnapshotArchiver interface {
	ArchiveActive(ctx context.Context, limit int, at time.Time) (int64, error)
}

// archiveLimit bounds how many markets one snapshot includes.
const archiveLimit = 500

// ArchiveLoop snapshots the active market set to the object store on a
// fixed interval.
type ArchiveLoop struct {
	archiver SnapshotArchiver
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiveLoop creates an ArchiveLoop.
func NewArchiveLoop(archiver SnapshotArchiver, interval time.Duration, logger *slog.Logger) *ArchiveLoop {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ArchiveLoop{
		archiver: archiver,
		interval: interval,
		logger:   logger.With(slog.String("component", "archive_loop")),
	}
}

// Run archives on the interval until ctx is cancelled. Failures are logged,
// not fatal.
func (l *ArchiveLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			count, err := l.archiver.ArchiveActive(ctx, archiveLimit, time.Now())
			if err != nil {
				l.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
				continue
			}
			l.logger.InfoContext(ctx, "archive run complete", slog.Int64("records", count))
		}
	}
}
