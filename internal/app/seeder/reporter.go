package seeder

import (
	"fmt"
	"io"
	"sync"

	"github.com/heartmarshall/seedloader/internal/domain"
)

// Status prefixes of per-file report lines.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
	StatusPlan = "PLAN"
)

// Reporter prints the human-readable run report. Writes are serialized.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

// Banner prints a phase or final banner.
func (r *Reporter) Banner(format string, args ...any) {
	r.printf("== %s ==\n", fmt.Sprintf(format, args...))
}

// Line prints one per-file status line.
func (r *Reporter) Line(status, subject, format string, args ...any) {
	r.printf("  %-5s %-36s %s\n", status, subject, fmt.Sprintf(format, args...))
}

// SchemaErrors itemizes schema errors.
func (r *Reporter) SchemaErrors(errs []domain.SchemaValidationError) {
	if len(errs) == 0 {
		return
	}
	r.Banner("Schema errors (%d)", len(errs))
	for _, e := range errs {
		r.printf("  %s\n", e)
	}
}

// ReferenceErrors itemizes reference errors.
func (r *Reporter) ReferenceErrors(errs []domain.ReferenceValidationError) {
	if len(errs) == 0 {
		return
	}
	r.Banner("Reference errors (%d)", len(errs))
	for _, e := range errs {
		r.printf("  %s\n", e)
	}
}

// Total prints a trailing total line.
func (r *Reporter) Total(records int) {
	r.printf("  %-5s %d records\n", "TOTAL", records)
}
