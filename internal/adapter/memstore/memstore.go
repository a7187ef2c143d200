// Package memstore is an in-memory document store with the same upsert
// semantics as the Postgres docstore. Used for tests and local dry checks.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/heartmarshall/seedloader/internal/domain"
)

type collection map[string]domain.Record

// Store keeps documents per database and collection.
type Store struct {
	mu  sync.RWMutex
	dbs map[string]map[string]collection
}

// New creates an empty Store.
func New() *Store {
	return &Store{dbs: make(map[string]map[string]collection)}
}

// Upsert merges doc into the document sharing its key, creating it when absent.
func (s *Store) Upsert(_ context.Context, database, coll, keyField string, doc domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(database, coll, keyField, doc)
}

// UpsertBatch applies every upsert of docs and returns how many were applied.
func (s *Store) UpsertBatch(_ context.Context, database, coll, keyField string, docs []domain.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range docs {
		if err := s.upsertLocked(database, coll, keyField, doc); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

func (s *Store) upsertLocked(database, coll, keyField string, doc domain.Record) error {
	key, ok := doc[keyField]
	if !ok || key == nil {
		return fmt.Errorf("%w: document has no %q key", domain.ErrStorage, keyField)
	}

	colls, ok := s.dbs[database]
	if !ok {
		colls = make(map[string]collection)
		s.dbs[database] = colls
	}
	c, ok := colls[coll]
	if !ok {
		c = make(collection)
		colls[coll] = c
	}

	k := domain.KeyString(key)
	existing, ok := c[k]
	if !ok {
		existing = make(domain.Record, len(doc))
		c[k] = existing
	}
	maps.Copy(existing, doc)
	return nil
}

// Count returns the number of documents in a collection. Missing
// collections count as empty.
func (s *Store) Count(_ context.Context, database, coll string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dbs[database][coll])), nil
}

// DropDatabase removes a database with all its collections.
func (s *Store) DropDatabase(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dbs, name)
	return nil
}

// Get returns a copy of the document stored under key.
func (s *Store) Get(database, coll, key string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.dbs[database][coll][key]
	if !ok {
		return nil, false
	}
	return maps.Clone(doc), true
}

// Databases returns the number of databases currently holding collections.
func (s *Store) Databases() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dbs)
}
