package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which uploads go through
// the multipart manager.
const multipartThreshold = 64 * 1024 * 1024

// PriceArchiveStore is the part of domain.PriceStore the archiver needs.
type PriceArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.PriceUpdate, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OrderArchiveStore is the part of domain.OrderStore the archiver needs.
type OrderArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// Archiver exports recorded history older than a cutoff as JSONL objects.
// Price ticks are pruned from the store once uploaded when prune is set;
// orders are only copied since they are the user's record.
type Archiver struct {
	writer domain.BlobWriter
	prices PriceArchiveStore
	orders OrderArchiveStore
	prune  bool
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, prices PriceArchiveStore, orders OrderArchiveStore, prune bool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer: writer,
		prices: prices,
		orders: orders,
		prune:  prune,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchivePrices uploads ticks older than before and returns how many were
// archived.
func (a *Archiver) ArchivePrices(ctx context.Context, before time.Time) (int64, error) {
	ticks, err := a.prices.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prices query: %w", err)
	}
	if len(ticks) == 0 {
		return 0, nil
	}

	path := archivePath("prices", before)
	if err := upload(ctx, a.writer, path, ticks); err != nil {
		return 0, fmt.Errorf("s3blob: archive prices: %w", err)
	}
	count := int64(len(ticks))

	if a.prune {
		deleted, err := a.prices.DeleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: prune archived prices: %w", err)
		}
		a.logger.Info("pruned archived prices", slog.Int64("deleted", deleted))
	}

	a.logger.Info("archived prices", slog.String("path", path), slog.Int64("count", count))
	return count, nil
}

// ArchiveOrders uploads orders created before the cutoff.
func (a *Archiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	path := archivePath("orders", before)
	if err := upload(ctx, a.writer, path, orders); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders: %w", err)
	}

	count := int64(len(orders))
	a.logger.Info("archived orders", slog.String("path", path), slog.Int64("count", count))
	return count, nil
}

func upload[T any](ctx context.Context, w domain.BlobWriter, path string, records []T) error {
	buf, err := marshalJSONL(records)
	if err != nil {
		return err
	}
	if len(buf) > multipartThreshold {
		return w.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return w.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
}

// archivePath partitions archives by cutoff day, e.g.
// archive/prices/2025-01-02/1735776000.jsonl.
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%d.jsonl", kind, before.Format("2006-01-02"), before.Unix())
}

// marshalJSONL encodes records one compact JSON value per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
