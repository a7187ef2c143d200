// Package docstore is a document store on PostgreSQL. A database is a
// schema and a collection is a table of (key, jsonb document) rows.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/heartmarshall/seedloader/internal/adapter/postgres"
	"github.com/heartmarshall/seedloader/internal/domain"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	key        text        PRIMARY KEY,
	doc        jsonb       NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements loader.Store and loader.BatchUpserter.
type Store struct {
	db postgres.DB
	tx *postgres.TxManager

	mu    sync.Mutex
	ready map[string]bool
}

// New creates a Store over a pool (or any pgx-compatible DB).
func New(db postgres.DB) *Store {
	return &Store{
		db:    db,
		tx:    postgres.NewTxManager(db),
		ready: make(map[string]bool),
	}
}

func tableName(database, collection string) string {
	return pgx.Identifier{database, collection}.Sanitize()
}

// Upsert inserts doc or merges its fields into the document with the same key.
func (s *Store) Upsert(ctx context.Context, database, collection, keyField string, doc domain.Record) error {
	query, args, err := upsertQuery(database, collection, keyField, doc)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, database, collection); err != nil {
		return err
	}

	if _, err := s.querier(ctx).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "upsert "+database+"."+collection)
	}
	return nil
}

// UpsertBatch queues one upsert per document and sends them in a single round
// trip. Outside a transaction the batch runs as one implicit transaction, so
// on error nothing from it is applied and the count is 0.
func (s *Store) UpsertBatch(ctx context.Context, database, collection, keyField string, docs []domain.Record) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i, doc := range docs {
		query, args, err := upsertQuery(database, collection, keyField, doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		batch.Queue(query, args...)
	}

	if err := s.ensureCollection(ctx, database, collection); err != nil {
		return 0, err
	}
	if err := s.sendBatchExec(ctx, batch); err != nil {
		return 0, postgres.MapError(err, "upsert batch "+database+"."+collection)
	}
	return len(docs), nil
}

// sendBatchExec reads every queued statement's result and fails on the first error.
func (s *Store) sendBatchExec(ctx context.Context, batch *pgx.Batch) error {
	results := s.querier(ctx).SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}

// Count returns the number of documents in a collection. A collection or
// database that does not exist counts as empty.
func (s *Store) Count(ctx context.Context, database, collection string) (int64, error) {
	query, args, err := psql.Select("count(*)").From(tableName(database, collection)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := s.querier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		if postgres.IsUndefinedObject(err) {
			return 0, nil
		}
		return 0, postgres.MapError(err, "count "+database+"."+collection)
	}
	return n, nil
}

// DropDatabase removes a database with all its collections. Dropping a
// missing database is a no-op.
func (s *Store) DropDatabase(ctx context.Context, name string) error {
	if _, err := s.querier(ctx).Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{name}.Sanitize()+" CASCADE"); err != nil {
		return postgres.MapError(err, "drop database "+name)
	}

	s.mu.Lock()
	for key := range s.ready {
		if strings.HasPrefix(key, name+".") {
			delete(s.ready, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// querier joins a transaction opened with postgres.TxManager.RunInTx, if any.
func (s *Store) querier(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, s.db)
}

// ensureCollection creates the schema and table of a collection once per Store.
func (s *Store) ensureCollection(ctx context.Context, database, collection string) error {
	key := database + "." + collection

	s.mu.Lock()
	ok := s.ready[key]
	s.mu.Unlock()
	if ok {
		return nil
	}

	err := s.tx.ExecAll(ctx,
		"CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{database}.Sanitize(),
		fmt.Sprintf(createTableSQL, tableName(database, collection)),
	)
	// A concurrent creator can win the catalog insert; the objects exist either way.
	if err != nil && !postgres.IsUniqueViolation(err) {
		return postgres.MapError(err, "create collection "+key)
	}

	s.mu.Lock()
	s.ready[key] = true
	s.mu.Unlock()
	return nil
}

func upsertQuery(database, collection, keyField string, doc domain.Record) (string, []any, error) {
	key, ok := doc[keyField]
	if !ok || key == nil {
		return "", nil, fmt.Errorf("%w: document has no %q key", domain.ErrStorage, keyField)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: encode document %v: %w", domain.ErrStorage, key, err)
	}

	query, args, err := psql.Insert(tableName(database, collection)+" AS t").
		Columns("key", "doc", "updated_at").
		Values(domain.KeyString(key), sq.Expr("?::jsonb", string(body)), sq.Expr("now()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET doc = t.doc || EXCLUDED.doc, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert query: %w", err)
	}
	return query, args, nil
}
