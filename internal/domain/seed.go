package domain

import (
	"encoding/json"
	"fmt"
)

// Record is one decoded seed record. Numbers are kept as json.Number.
type Record = map[string]any

// ValidationOutcome is the result of schema-validating one source file.
// SourceIndexes[i] is the position of ValidatedRecords[i] in the source array.
type ValidationOutcome struct {
	SourceFile       string
	ValidatedRecords []Record
	SourceIndexes    []int
	Errors           []SchemaValidationError
	// Total is the number of records found in the file, valid or not.
	Total int
}

// IsValid reports whether the file produced no schema errors.
func (o ValidationOutcome) IsValid() bool {
	return len(o.Errors) == 0
}

// LoadOutcome reports how many records of one file were submitted to the store.
type LoadOutcome struct {
	SourceFile       string
	TargetDatabase   string
	TargetCollection string
	RecordsLoaded    int
}

// VerificationOutcome compares the expected and stored document counts of one collection.
type VerificationOutcome struct {
	SourceFile       string
	TargetDatabase   string
	TargetCollection string
	ExpectedCount    int64
	ActualCount      int64
}

// IsValid reports whether the stored count matches exactly.
func (o VerificationOutcome) IsValid() bool {
	return o.ExpectedCount == o.ActualCount
}

// KeyString renders a decoded JSON value as the string form used for keys
// and key lookups. Composite values render as compact JSON.
func KeyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
