package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/heartmarshall/seedloader/internal/adapter/postgres"
	"github.com/heartmarshall/seedloader/internal/adapter/postgres/docstore"
	"github.com/heartmarshall/seedloader/internal/adapter/postgres/runlog"
	"github.com/heartmarshall/seedloader/internal/app/seeder"
	"github.com/heartmarshall/seedloader/internal/catalog"
	"github.com/heartmarshall/seedloader/internal/config"
	"github.com/heartmarshall/seedloader/internal/domain"
	"github.com/heartmarshall/seedloader/internal/seed/loader"
	"github.com/heartmarshall/seedloader/migrations"
)

// Run wires the seeder from cfg, runs one pipeline and returns the process
// exit code. The report goes to out.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) int {
	logger := slog.Default()
	logger.Info("starting seeder",
		slog.String("version", BuildVersion()),
		slog.String("source", cfg.Seeder.Source),
		slog.Bool("dry_run", cfg.Seeder.DryRun),
		slog.Bool("clear", cfg.Seeder.Clear),
	)

	if cfg.Seeder.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Seeder.Timeout)
		defer cancel()
	}

	cat, err := loadCatalog(cfg.Seeder.CatalogPath)
	if err != nil {
		logger.Error("load catalog", slog.String("error", err.Error()))
		return 1
	}

	src, err := seeder.NewSource(cfg.Seeder)
	if err != nil {
		logger.Error("build source", slog.String("error", err.Error()))
		return 1
	}

	metrics := seeder.NewMetrics(cfg.Metrics)
	defer func() {
		if err := metrics.Push(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("push metrics", slog.String("error", err.Error()))
		}
	}()

	// Dry runs never open a connection.
	var (
		pool  *pgxpool.Pool
		store *docstore.Store
	)
	if !cfg.Seeder.DryRun {
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("connect to document store", slog.String("error", err.Error()))
			return 1
		}
		defer pool.Close()
		store = docstore.New(pool)
	}

	p := seeder.NewPipeline(logger, cat, src, storeOrNil(store), seeder.ConfigFrom(cfg.Seeder),
		seeder.WithReporter(seeder.NewReporter(out)),
		seeder.WithMetrics(metrics),
	)
	result := p.Run(ctx)

	if pool != nil && !cfg.Seeder.SkipRunLog {
		if err := recordRun(context.WithoutCancel(ctx), pool, cfg.Seeder, result); err != nil {
			logger.Warn("record run", slog.String("error", err.Error()))
		}
	}

	return result.ExitCode()
}

// LastRun prints the most recently recorded run to out.
func LastRun(ctx context.Context, cfg *config.Config, out io.Writer) error {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	run, err := runlog.New(pool).Latest(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s (%s)\n", run.ID, run.Version)
	fmt.Fprintf(out, "  state      %s\n", run.State)
	fmt.Fprintf(out, "  source     %s %s\n", run.Source, run.DatasetPath)
	fmt.Fprintf(out, "  started    %s\n", run.StartedAt.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintf(out, "  duration   %s\n", run.FinishedAt.Sub(run.StartedAt))
	fmt.Fprintf(out, "  records    %d validated, %d loaded\n", run.RecordsValidated, run.RecordsLoaded)
	fmt.Fprintf(out, "  errors     %d schema, %d reference, %d mismatches\n", run.SchemaErrors, run.ReferenceErrors, run.Mismatches)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  error      %s\n", run.ErrorMessage)
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// storeOrNil keeps a nil *docstore.Store from becoming a non-nil interface.
func storeOrNil(s *docstore.Store) loader.Store {
	if s == nil {
		return nil
	}
	return s
}

func recordRun(ctx context.Context, pool *pgxpool.Pool, cfg config.SeederConfig, res seeder.Result) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrations.Up(ctx, db); err != nil {
		return err
	}

	_, err := runlog.New(pool).Record(ctx, RunRecord(cfg, res))
	return err
}

// RunRecord summarizes a pipeline result as a ledger row.
func RunRecord(cfg config.SeederConfig, res seeder.Result) domain.Run {
	run := domain.Run{
		ID:               res.RunID,
		Source:           cfg.Source,
		DatasetPath:      cfg.Path,
		DryRun:           cfg.DryRun,
		Clear:            cfg.Clear,
		State:            string(res.State),
		FilesTotal:       len(res.Validation),
		RecordsValidated: res.TotalRecords(),
		RecordsLoaded:    res.RecordsLoaded(),
		SchemaErrors:     len(res.SchemaErrors),
		ReferenceErrors:  len(res.ReferenceErrors),
		Mismatches:       res.Mismatches(),
		Version:          BuildVersion(),
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}
	if res.Err != nil {
		run.ErrorMessage = res.Err.Error()
	}
	return run
}
