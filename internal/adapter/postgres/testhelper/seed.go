package testhelper

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UniqueName returns prefix with a short random suffix, usable as a schema
// name that does not collide with parallel tests.
func UniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
}

// DropSchemas removes the given schemas when the test finishes.
func DropSchemas(t *testing.T, pool *pgxpool.Pool, names ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, name := range names {
			_, _ = pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{name}.Sanitize()+" CASCADE")
		}
	})
}
