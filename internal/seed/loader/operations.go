package loader

import (
	"context"
	"fmt"

	"github.com/heartmarshall/seedloader/internal/catalog"
	"github.com/heartmarshall/seedloader/internal/domain"
)

// Operation writes records into the collection of entry and returns how
// many records it submitted.
type Operation func(ctx context.Context, store Store, entry catalog.Entry, records []domain.Record, batchSize int) (int, error)

const (
	OpUpsert     = "upsert"
	OpBulkUpsert = "bulk_upsert"
)

// Operations returns the default operation table.
func Operations() map[string]Operation {
	return map[string]Operation{
		OpUpsert:     upsertEach,
		OpBulkUpsert: bulkUpsert,
	}
}

func upsertEach(ctx context.Context, store Store, entry catalog.Entry, records []domain.Record, _ int) (int, error) {
	for i, rec := range records {
		if err := store.Upsert(ctx, entry.Database, entry.Collection, entry.PrimaryKey, rec); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return len(records), nil
}

// bulkUpsert chunks records and submits each chunk in one round trip when
// the store supports it, falling back to one upsert per record otherwise.
func bulkUpsert(ctx context.Context, store Store, entry catalog.Entry, records []domain.Record, batchSize int) (int, error) {
	bs, ok := store.(BatchUpserter)
	if !ok {
		return upsertEach(ctx, store, entry, records, batchSize)
	}
	return batchProcess(records, batchSize, func(batch []domain.Record) (int, error) {
		return bs.UpsertBatch(ctx, entry.Database, entry.Collection, entry.PrimaryKey, batch)
	})
}

// batchProcess splits items into chunks of batchSize and calls fn for each chunk.
func batchProcess[T any](items []T, batchSize int, fn func([]T) (int, error)) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	total := 0
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		n, err := fn(items[i:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
