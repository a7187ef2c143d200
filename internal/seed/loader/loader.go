// Package loader persists validated seed records in dependency order.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/seedloader/internal/catalog"
	"github.com/heartmarshall/seedloader/internal/domain"
)

// Store is the document-store capability consumed by the loader.
// Implemented by docstore.Store and memstore.Store.
type Store interface {
	// Upsert inserts doc or overwrites the fields of the document sharing its key.
	Upsert(ctx context.Context, database, collection, keyField string, doc domain.Record) error
	Count(ctx context.Context, database, collection string) (int64, error)
	DropDatabase(ctx context.Context, name string) error
}

// BatchUpserter is an optional Store extension that submits several upserts
// in one round trip. It returns how many documents were applied.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, database, collection, keyField string, docs []domain.Record) (int, error)
}

const defaultBatchSize = 500

// Loader writes record sets into the collections named by the catalog.
type Loader struct {
	log       *slog.Logger
	store     Store
	catalog   *catalog.Catalog
	ops       map[string]Operation
	batchSize int
}

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize sets the chunk size used by batched operations.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithOperations replaces the operation table.
func WithOperations(ops map[string]Operation) Option {
	return func(l *Loader) { l.ops = ops }
}

// New creates a Loader. Every load operation named by the catalog must
// resolve in the operation table.
func New(log *slog.Logger, store Store, cat *catalog.Catalog, opts ...Option) (*Loader, error) {
	l := &Loader{
		log:       log,
		store:     store,
		catalog:   cat,
		ops:       Operations(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, e := range cat.Entries() {
		if _, ok := l.ops[e.LoadOperation]; !ok {
			return nil, domain.NewConfigurationError("unknown load operation %q for %s", e.LoadOperation, e.FileName)
		}
	}
	return l, nil
}

// Load upserts records into the collection of fileName, keyed by the
// entry's primary key. RecordsLoaded counts submitted records, not changed ones.
func (l *Loader) Load(ctx context.Context, fileName string, records []domain.Record) (domain.LoadOutcome, error) {
	entry, ok := l.catalog.Entry(fileName)
	if !ok {
		return domain.LoadOutcome{}, domain.NewConfigurationError("unknown seed file %q", fileName)
	}
	op, ok := l.ops[entry.LoadOperation]
	if !ok {
		return domain.LoadOutcome{}, domain.NewConfigurationError("unknown load operation %q for %s", entry.LoadOperation, fileName)
	}

	start := time.Now()
	n, err := op(ctx, l.store, entry, records, l.batchSize)
	if err != nil {
		return domain.LoadOutcome{}, fmt.Errorf("load %s into %s.%s: %w", fileName, entry.Database, entry.Collection, domain.AsStorageError(err))
	}

	l.log.Info("file loaded",
		slog.String("file", fileName),
		slog.String("database", entry.Database),
		slog.String("collection", entry.Collection),
		slog.Int("records", n),
		slog.Duration("duration", time.Since(start)),
	)

	return domain.LoadOutcome{
		SourceFile:       fileName,
		TargetDatabase:   entry.Database,
		TargetCollection: entry.Collection,
		RecordsLoaded:    n,
	}, nil
}

// LoadAll loads every file of recordsByFile in dependency order, skipping
// files without records. The first failure aborts; files already loaded stay loaded.
func (l *Loader) LoadAll(ctx context.Context, recordsByFile map[string][]domain.Record) ([]domain.LoadOutcome, error) {
	for file := range recordsByFile {
		if _, ok := l.catalog.Entry(file); !ok {
			return nil, domain.NewConfigurationError("unknown seed file %q", file)
		}
	}

	var outcomes []domain.LoadOutcome
	for _, e := range l.catalog.Entries() {
		records := recordsByFile[e.FileName]
		if len(records) == 0 {
			continue
		}
		outcome, err := l.Load(ctx, e.FileName, records)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// WipeAll drops every database the catalog writes to.
func (l *Loader) WipeAll(ctx context.Context) error {
	for _, db := range l.catalog.Databases() {
		if err := l.store.DropDatabase(ctx, db); err != nil {
			return fmt.Errorf("drop database %s: %w", db, domain.AsStorageError(err))
		}
		l.log.Warn("database dropped", slog.String("database", db))
	}
	return nil
}
