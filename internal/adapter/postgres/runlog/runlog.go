// Package runlog persists the seeder run ledger.
package runlog

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/heartmarshall/seedloader/internal/adapter/postgres"
	"github.com/heartmarshall/seedloader/internal/domain"
)

const table = "seeder_runs"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"id", "source", "dataset_path", "dry_run", "clear", "state",
	"files_total", "records_validated", "records_loaded",
	"schema_errors", "reference_errors", "mismatches",
	"error_message", "version", "started_at", "finished_at",
}

// Repo reads and writes seeder_runs rows.
type Repo struct {
	db postgres.Querier
}

// New creates a Repo.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// Record inserts run. A zero ID is replaced with a new random one.
func (r *Repo) Record(ctx context.Context, run domain.Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	query, args, err := psql.Insert(table).
		Columns(columns...).
		Values(
			run.ID, run.Source, run.DatasetPath, run.DryRun, run.Clear, run.State,
			run.FilesTotal, run.RecordsValidated, run.RecordsLoaded,
			run.SchemaErrors, run.ReferenceErrors, run.Mismatches,
			run.ErrorMessage, run.Version, run.StartedAt, run.FinishedAt,
		).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build insert run: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, postgres.MapError(err, "record run "+run.ID.String())
	}
	return run.ID, nil
}

// Latest returns the most recently started run.
func (r *Repo) Latest(ctx context.Context) (domain.Run, error) {
	query, args, err := psql.Select(columns...).
		From(table).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Run{}, fmt.Errorf("build select run: %w", err)
	}

	var run domain.Run
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&run.ID, &run.Source, &run.DatasetPath, &run.DryRun, &run.Clear, &run.State,
		&run.FilesTotal, &run.RecordsValidated, &run.RecordsLoaded,
		&run.SchemaErrors, &run.ReferenceErrors, &run.Mismatches,
		&run.ErrorMessage, &run.Version, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return domain.Run{}, postgres.MapError(err, "latest run")
	}
	return run, nil
}
