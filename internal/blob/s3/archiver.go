package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver serializes market snapshots to JSONL and uploads them to the
// object store under archive/markets/YYYY-MM-DD/HHMMSS.jsonl. Records stay
// in the primary store; the archive is an append-only history of what the
// refresher observed.
type Archiver struct {
	writer BlobWriter
	store  domain.MarketStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer BlobWriter, store domain.MarketStore) *Archiver {
	return &Archiver{writer: writer, store: store}
}

// ArchiveActive snapshots up to limit active markets to the object store
// and returns the number of records written.
func (a *Archiver) ArchiveActive(ctx context.Context, limit int, at time.Time) (int64, error) {
	markets, err := a.store.ListActive(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(markets)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := snapshotPath(at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}
	return int64(len(markets)), nil
}

func snapshotPath(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/markets/%s/%s.jsonl",
		at.Format("2006-01-02"), at.Format("150405"))
}

// marshalJSONL encodes each record as one JSON line.
func marshalJSONL(markets []domain.Market) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range markets {
		if err := enc.Encode(m); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
