// Package verify compares loaded collection sizes with the number of records
// submitted for them.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/seedloader/internal/catalog"
	"github.com/heartmarshall/seedloader/internal/domain"
)

// Counter counts the documents of a collection.
type Counter interface {
	Count(ctx context.Context, database, collection string) (int64, error)
}

// Verifier checks that every loaded collection holds exactly the expected
// number of documents.
type Verifier struct {
	log     *slog.Logger
	counter Counter
	catalog *catalog.Catalog
}

// New creates a Verifier.
func New(log *slog.Logger, counter Counter, cat *catalog.Catalog) *Verifier {
	return &Verifier{log: log, counter: counter, catalog: cat}
}

// Verify counts the target collection of every file in expectedByFile, in
// dependency order. A count mismatch is reported in the outcome; only a
// failed count returns an error.
func (v *Verifier) Verify(ctx context.Context, expectedByFile map[string]int64) ([]domain.VerificationOutcome, error) {
	for file := range expectedByFile {
		if _, ok := v.catalog.Entry(file); !ok {
			return nil, domain.NewConfigurationError("unknown seed file %q", file)
		}
	}

	outcomes := make([]domain.VerificationOutcome, 0, len(expectedByFile))
	for _, e := range v.catalog.Entries() {
		expected, ok := expectedByFile[e.FileName]
		if !ok {
			continue
		}

		actual, err := v.counter.Count(ctx, e.Database, e.Collection)
		if err != nil {
			return outcomes, fmt.Errorf("count %s.%s: %w", e.Database, e.Collection, domain.AsStorageError(err))
		}

		outcome := domain.VerificationOutcome{
			SourceFile:       e.FileName,
			TargetDatabase:   e.Database,
			TargetCollection: e.Collection,
			ExpectedCount:    expected,
			ActualCount:      actual,
		}
		if !outcome.IsValid() {
			v.log.Warn("count mismatch",
				slog.String("file", e.FileName),
				slog.String("collection", e.Database+"."+e.Collection),
				slog.Int64("expected", expected),
				slog.Int64("actual", actual),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
