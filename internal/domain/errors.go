package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrStorage       = errors.New("storage error")
)

// ErrorKind is a stable, greppable code attached to every collected validation error.
type ErrorKind string

const (
	KindExtraForbidden ErrorKind = "extra_forbidden"
	KindMissing        ErrorKind = "missing"
	KindTypeError      ErrorKind = "type_error"
	KindEnum           ErrorKind = "enum"
	KindTooShort       ErrorKind = "too_short"
	KindMalformed      ErrorKind = "malformed"
	KindDangling       ErrorKind = "dangling"
	KindDuplicateKey   ErrorKind = "duplicate_key"
)

// SchemaValidationError describes one offending field of one record.
type SchemaValidationError struct {
	SourceFile  string
	RecordIndex int
	FieldPath   string
	Kind        ErrorKind
	Message     string
}

func (e SchemaValidationError) String() string {
	return fmt.Sprintf("%s[%d] %s: %s (%s)", e.SourceFile, e.RecordIndex, e.FieldPath, e.Message, e.Kind)
}

// ReferenceValidationError describes a foreign key that does not resolve.
// InvalidValue is nil when a required reference is absent.
type ReferenceValidationError struct {
	SourceEntity string
	FieldName    string
	InvalidValue *string
	TargetEntity string
	RecordIndex  int
	Kind         ErrorKind
}

func (e ReferenceValidationError) String() string {
	value := "<missing>"
	if e.InvalidValue != nil {
		value = fmt.Sprintf("%q", *e.InvalidValue)
	}
	return fmt.Sprintf("%s[%d] %s=%s -> %s (%s)", e.SourceEntity, e.RecordIndex, e.FieldName, value, e.TargetEntity, e.Kind)
}

// ValidationError aggregates every schema and reference error of a run.
type ValidationError struct {
	Schema    []SchemaValidationError
	Reference []ReferenceValidationError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %d schema errors, %d reference errors", len(e.Schema), len(e.Reference))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Len returns the total number of collected errors.
func (e *ValidationError) Len() int {
	return len(e.Schema) + len(e.Reference)
}

// NewConfigurationError wraps a message as a fatal configuration error.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// AsStorageError classifies an unclassified store failure as a storage error.
// Errors already carrying ErrStorage or ErrConfiguration pass through.
func AsStorageError(err error) error {
	if err == nil || errors.Is(err, ErrStorage) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
