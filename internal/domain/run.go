package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is one ledger row describing a finished non-dry pipeline run.
type Run struct {
	ID               uuid.UUID
	Source           string
	DatasetPath      string
	DryRun           bool
	Clear            bool
	State            string
	FilesTotal       int
	RecordsValidated int
	RecordsLoaded    int
	SchemaErrors     int
	ReferenceErrors  int
	Mismatches       int
	ErrorMessage     string
	Version          string
	StartedAt        time.Time
	FinishedAt       time.Time
}
