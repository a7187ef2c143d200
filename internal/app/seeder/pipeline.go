package seeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/seedloader/internal/catalog"
	"github.com/heartmarshall/seedloader/internal/domain"
	"github.com/heartmarshall/seedloader/internal/seed/integrity"
	"github.com/heartmarshall/seedloader/internal/seed/loader"
	"github.com/heartmarshall/seedloader/internal/seed/schema"
	"github.com/heartmarshall/seedloader/internal/seed/verify"
	"github.com/heartmarshall/seedloader/pkg/ctxutil"
)

// State is a pipeline state. Aborted, DryRunComplete, Succeeded and Failed are terminal.
type State string

const (
	StateValidating        State = "Validating"
	StateReferenceChecking State = "ReferenceChecking"
	StateAborted           State = "Aborted"
	StateDryRunComplete    State = "DryRunComplete"
	StateLoading           State = "Loading"
	StateVerifying         State = "Verifying"
	StateSucceeded         State = "Succeeded"
	StateFailed            State = "Failed"
)

// Phase names used in Results.
const (
	PhaseValidate  = "validate"
	PhaseReference = "reference"
	PhaseLoad      = "load"
	PhaseVerify    = "verify"
)

// PhaseResult holds the outcome of a single pipeline phase.
type PhaseResult struct {
	Files    int
	Records  int
	Errors   int
	Duration time.Duration
}

// Result is the outcome of one run.
type Result struct {
	RunID uuid.UUID
	State State
	// Err is set for fatal failures and for the validation gate (*domain.ValidationError).
	Err error

	Validation      []domain.ValidationOutcome
	Skipped         []string
	SchemaErrors    []domain.SchemaValidationError
	ReferenceErrors []domain.ReferenceValidationError
	// Plan lists what a real run would load; set by dry runs only.
	Plan          []domain.LoadOutcome
	Loads         []domain.LoadOutcome
	Verifications []domain.VerificationOutcome
	Phases        map[string]PhaseResult

	StartedAt  time.Time
	FinishedAt time.Time
}

// ExitCode is 0 for Succeeded and DryRunComplete, 1 otherwise.
func (r Result) ExitCode() int {
	if r.State == StateSucceeded || r.State == StateDryRunComplete {
		return 0
	}
	return 1
}

// TotalRecords sums the schema-valid records of every file.
func (r Result) TotalRecords() int {
	n := 0
	for _, o := range r.Validation {
		n += len(o.ValidatedRecords)
	}
	return n
}

// RecordsLoaded sums the records submitted during Loading.
func (r Result) RecordsLoaded() int {
	n := 0
	for _, l := range r.Loads {
		n += l.RecordsLoaded
	}
	return n
}

// Mismatches counts collections whose verified count differs from the expected one.
func (r Result) Mismatches() int {
	n := 0
	for _, v := range r.Verifications {
		if !v.IsValid() {
			n++
		}
	}
	return n
}

// Pipeline drives the four gated phases over the catalog's dependency order.
type Pipeline struct {
	log     *slog.Logger
	catalog *catalog.Catalog
	source  Source
	store   loader.Store
	cfg     Config
	report  *Reporter
	metrics *Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReporter sets the console reporter. The default discards output.
func WithReporter(r *Reporter) Option {
	return func(p *Pipeline) { p.report = r }
}

// WithMetrics sets the metric set updated during the run.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a new Pipeline. store may be nil for dry runs.
func NewPipeline(log *slog.Logger, cat *catalog.Catalog, src Source, store loader.Store, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		log:     log,
		catalog: cat,
		source:  src,
		store:   store,
		cfg:     cfg,
		report:  NewReporter(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// fileResult is the phase-1 outcome of one catalog entry.
type fileResult struct {
	entry   catalog.Entry
	outcome domain.ValidationOutcome
	skipped bool
}

// Run executes the pipeline. The run ID is taken from ctx or generated.
func (p *Pipeline) Run(ctx context.Context) Result {
	ctx, runID := ctxutil.EnsureRunID(ctx)
	log := p.log.With(slog.String("run_id", runID.String()))

	res := Result{
		RunID:     runID,
		State:     StateValidating,
		Phases:    make(map[string]PhaseResult),
		StartedAt: time.Now(),
	}
	finish := func(state State, err error) Result {
		res.State = state
		res.Err = err
		res.FinishedAt = time.Now()
		p.metrics.observeResult(res)

		attrs := []any{
			slog.String("state", string(state)),
			slog.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		log.Info("pipeline finished", attrs...)
		return res
	}

	// Phase 1: schema validation.
	log.Info("starting phase", slog.String("phase", PhaseValidate), slog.String("source", p.source.Describe()))
	p.report.Banner("Phase 1: schema validation (source: %s)", p.source.Describe())
	start := time.Now()

	if err := p.source.Check(ctx); err != nil {
		p.report.Banner("ABORTED: %v", err)
		return finish(StateAborted, err)
	}

	files, err := p.validateAll(ctx)
	if err != nil {
		p.report.Banner("ABORTED: %v", err)
		return finish(StateAborted, err)
	}

	phase := PhaseResult{Duration: time.Since(start)}
	for _, f := range files {
		if f.skipped {
			res.Skipped = append(res.Skipped, f.entry.FileName)
			p.report.Line(StatusSkip, f.entry.FileName, "not present in source")
			continue
		}
		res.Validation = append(res.Validation, f.outcome)
		res.SchemaErrors = append(res.SchemaErrors, f.outcome.Errors...)
		p.reportValidation(f.outcome)

		phase.Files++
		phase.Records += len(f.outcome.ValidatedRecords)
		phase.Errors += len(f.outcome.Errors)
	}
	res.Phases[PhaseValidate] = phase

	// Phase 2: referential integrity.
	res.State = StateReferenceChecking
	log.Info("starting phase", slog.String("phase", PhaseReference))
	p.report.Banner("Phase 2: referential integrity")
	start = time.Now()

	res.ReferenceErrors = p.checkReferences(files)
	res.Phases[PhaseReference] = PhaseResult{
		Files:    len(res.Validation),
		Errors:   len(res.ReferenceErrors),
		Duration: time.Since(start),
	}

	// Gate: nothing is written while any error exists.
	if len(res.SchemaErrors) > 0 || len(res.ReferenceErrors) > 0 {
		p.report.SchemaErrors(res.SchemaErrors)
		p.report.ReferenceErrors(res.ReferenceErrors)
		p.report.Banner("ABORTED: %d schema errors, %d reference errors; nothing was loaded",
			len(res.SchemaErrors), len(res.ReferenceErrors))
		return finish(StateAborted, &domain.ValidationError{
			Schema:    res.SchemaErrors,
			Reference: res.ReferenceErrors,
		})
	}

	recordsByFile := make(map[string][]domain.Record, len(files))
	for _, f := range files {
		if !f.skipped && len(f.outcome.ValidatedRecords) > 0 {
			recordsByFile[f.entry.FileName] = f.outcome.ValidatedRecords
		}
	}

	if p.cfg.DryRun {
		p.reportPlan(&res, files)
		p.report.Banner("DRY RUN COMPLETE: %d records would be loaded", res.TotalRecords())
		return finish(StateDryRunComplete, nil)
	}

	// Phase 3: load.
	res.State = StateLoading
	log.Info("starting phase", slog.String("phase", PhaseLoad), slog.Bool("clear", p.cfg.Clear))
	p.report.Banner("Phase 3: load")
	start = time.Now()

	if err := p.load(ctx, &res, recordsByFile); err != nil {
		p.report.Banner("FAILED: %v", err)
		return finish(StateFailed, err)
	}
	res.Phases[PhaseLoad] = PhaseResult{Files: len(res.Loads), Records: res.RecordsLoaded(), Duration: time.Since(start)}

	// Phase 4: verify.
	res.State = StateVerifying
	log.Info("starting phase", slog.String("phase", PhaseVerify))
	p.report.Banner("Phase 4: verify")
	start = time.Now()

	expected := make(map[string]int64, len(res.Loads))
	for _, l := range res.Loads {
		expected[l.SourceFile] = int64(l.RecordsLoaded)
	}
	res.Verifications, err = verify.New(log, p.store, p.catalog).Verify(ctx, expected)
	if err != nil {
		err = fmt.Errorf("verify: %w", err)
		p.report.Banner("FAILED: %v", err)
		return finish(StateFailed, err)
	}
	for _, v := range res.Verifications {
		status := StatusOK
		if !v.IsValid() {
			status = StatusFail
		}
		p.report.Line(status, v.TargetDatabase+"."+v.TargetCollection, "expected %d, actual %d", v.ExpectedCount, v.ActualCount)
	}
	res.Phases[PhaseVerify] = PhaseResult{Files: len(res.Verifications), Errors: res.Mismatches(), Duration: time.Since(start)}

	if n := res.Mismatches(); n > 0 {
		p.report.Banner("FAILED: %d collections do not match their expected counts", n)
		return finish(StateFailed, nil)
	}

	p.report.Banner("SUCCEEDED: %d records loaded into %d collections", res.RecordsLoaded(), len(res.Loads))
	return finish(StateSucceeded, nil)
}

// validateAll reads and schema-validates every catalog file concurrently.
// Results are returned in dependency order.
func (p *Pipeline) validateAll(ctx context.Context) ([]fileResult, error) {
	entries := p.catalog.Entries()
	results := make([]fileResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Workers, 1))

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			r, err := p.validateFile(gctx, e)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// validateFile reads and validates one file. Only context errors are returned;
// everything else about the file is reported in its outcome.
func (p *Pipeline) validateFile(ctx context.Context, e catalog.Entry) (fileResult, error) {
	res := fileResult{entry: e}

	data, err := p.source.ReadFile(ctx, e.FileName)
	switch {
	case errors.Is(err, ErrFileNotFound):
		res.skipped = true
		p.log.Warn("seed file missing", slog.String("file", e.FileName))
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("read %s: %w", e.FileName, ctx.Err())
	case err != nil:
		res.outcome = domain.ValidationOutcome{
			SourceFile: e.FileName,
			Errors: []domain.SchemaValidationError{{
				SourceFile: e.FileName,
				FieldPath:  schema.RootPath,
				Kind:       domain.KindMalformed,
				Message:    "file could not be read: " + err.Error(),
			}},
		}
		return res, nil
	}

	records, decodeErr := schema.Decode(data, e.FileName)
	if decodeErr != nil {
		res.outcome = domain.ValidationOutcome{
			SourceFile: e.FileName,
			Errors:     []domain.SchemaValidationError{*decodeErr},
		}
		return res, nil
	}

	res.outcome = schema.Validate(records, e.Schema, e.FileName)
	p.log.Debug("file validated",
		slog.String("file", e.FileName),
		slog.Int("records", res.outcome.Total),
		slog.Int("errors", len(res.outcome.Errors)),
	)
	return res, nil
}

func (p *Pipeline) reportValidation(o domain.ValidationOutcome) {
	valid := len(o.ValidatedRecords)
	rejected := o.Total - valid
	p.metrics.addRecords(o.SourceFile, stageValidated, valid)
	p.metrics.addRecords(o.SourceFile, stageRejected, rejected)
	for _, e := range o.Errors {
		p.metrics.addError(string(e.Kind))
	}

	if o.IsValid() {
		p.report.Line(StatusOK, o.SourceFile, "%d records", valid)
		return
	}
	p.report.Line(StatusFail, o.SourceFile, "%d of %d records rejected, %d errors", rejected, o.Total, len(o.Errors))
}

// checkReferences populates a fresh registry in dependency order and checks
// every file's foreign keys against it. A file's own keys are registered
// before its references are checked.
func (p *Pipeline) checkReferences(files []fileResult) []domain.ReferenceValidationError {
	reg := integrity.NewRegistry()
	var all []domain.ReferenceValidationError

	for _, f := range files {
		if f.skipped {
			continue
		}
		e := f.entry

		errs := integrity.RegisterPrimaryKeys(reg, e.Entity, e.PrimaryKey, f.outcome)
		errs = append(errs, integrity.ValidateReferences(integrity.ReferenceCheck{
			Entity:        e.Entity,
			Records:       f.outcome.ValidatedRecords,
			SourceIndexes: f.outcome.SourceIndexes,
			ForeignKeys:   e.ForeignKeys(),
			Optional:      e.OptionalFields(),
			Lists:         e.ListFields(),
		}, reg)...)

		for _, re := range errs {
			p.metrics.addError(string(re.Kind))
		}
		if len(errs) > 0 {
			p.report.Line(StatusFail, e.FileName, "%d reference errors", len(errs))
		} else {
			p.report.Line(StatusOK, e.FileName, "%d ids registered as %s", reg.Len(e.Entity), e.Entity)
		}
		all = append(all, errs...)
	}
	return all
}

func (p *Pipeline) reportPlan(res *Result, files []fileResult) {
	p.report.Banner("Dry run: load plan")
	for _, f := range files {
		if f.skipped || len(f.outcome.ValidatedRecords) == 0 {
			continue
		}
		planned := domain.LoadOutcome{
			SourceFile:       f.entry.FileName,
			TargetDatabase:   f.entry.Database,
			TargetCollection: f.entry.Collection,
			RecordsLoaded:    len(f.outcome.ValidatedRecords),
		}
		res.Plan = append(res.Plan, planned)
		p.report.Line(StatusPlan, planned.SourceFile+" -> "+planned.TargetDatabase+"."+planned.TargetCollection,
			"%d records", planned.RecordsLoaded)
	}
	p.report.Total(res.TotalRecords())
}

func (p *Pipeline) load(ctx context.Context, res *Result, recordsByFile map[string][]domain.Record) error {
	if p.store == nil {
		return domain.NewConfigurationError("no document store configured")
	}

	l, err := loader.New(p.log, p.store, p.catalog, loader.WithBatchSize(p.cfg.BatchSize))
	if err != nil {
		return err
	}

	if p.cfg.Clear {
		if err := l.WipeAll(ctx); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		p.report.Line(StatusOK, "clear", "dropped %d databases", len(p.catalog.Databases()))
	}

	loads, err := l.LoadAll(ctx, recordsByFile)
	res.Loads = loads
	for _, o := range loads {
		p.metrics.addRecords(o.SourceFile, stageLoaded, o.RecordsLoaded)
		p.report.Line(StatusOK, o.SourceFile+" -> "+o.TargetDatabase+"."+o.TargetCollection, "%d records", o.RecordsLoaded)
	}
	return err
}
