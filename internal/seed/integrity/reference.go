package integrity

import (
	"sort"

	"github.com/heartmarshall/seedloader/internal/domain"
)

// ReferenceCheck describes the foreign keys of one entity's validated records.
// Optional and Lists are declared by the caller per field; they cannot be
// inferred from the records.
type ReferenceCheck struct {
	Entity string
	// Records are the schema-valid records; SourceIndexes[i] is the position
	// of Records[i] in its source file.
	Records       []domain.Record
	SourceIndexes []int
	// ForeignKeys maps a field name to its target entity type.
	ForeignKeys map[string]string
	Optional    map[string]bool
	Lists       map[string]bool
}

// ValidateReferences checks every declared foreign key of every record
// against reg and returns all failures.
func ValidateReferences(check ReferenceCheck, reg *Registry) []domain.ReferenceValidationError {
	fields := make([]string, 0, len(check.ForeignKeys))
	for f := range check.ForeignKeys {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var errs []domain.ReferenceValidationError
	for i, rec := range check.Records {
		index := sourceIndex(check.SourceIndexes, i)

		for _, field := range fields {
			target := check.ForeignKeys[field]
			fail := func(value *string, kind domain.ErrorKind) {
				errs = append(errs, domain.ReferenceValidationError{
					SourceEntity: check.Entity,
					FieldName:    field,
					InvalidValue: value,
					TargetEntity: target,
					RecordIndex:  index,
					Kind:         kind,
				})
			}

			raw, present := rec[field]
			if !present || raw == nil {
				if !check.Optional[field] {
					fail(nil, domain.KindMissing)
				}
				continue
			}

			values := []any{raw}
			if check.Lists[field] {
				if list, ok := raw.([]any); ok {
					values = list
				}
			}

			for _, v := range values {
				if v == nil {
					fail(nil, domain.KindMissing)
					continue
				}
				id := domain.KeyString(v)
				if !reg.ValidateFK(target, id) {
					fail(&id, domain.KindDangling)
				}
			}
		}
	}

	return errs
}

// RegisterPrimaryKeys adds the primary keys of outcome's validated records to
// reg under entity. A key repeated within the file is reported once per
// repetition and registered once.
func RegisterPrimaryKeys(reg *Registry, entity, pkField string, outcome domain.ValidationOutcome) []domain.ReferenceValidationError {
	var errs []domain.ReferenceValidationError
	seen := make(map[string]bool, len(outcome.ValidatedRecords))
	ids := make([]string, 0, len(outcome.ValidatedRecords))

	for i, rec := range outcome.ValidatedRecords {
		id := domain.KeyString(rec[pkField])
		if seen[id] {
			errs = append(errs, domain.ReferenceValidationError{
				SourceEntity: entity,
				FieldName:    pkField,
				InvalidValue: &id,
				TargetEntity: entity,
				RecordIndex:  sourceIndex(outcome.SourceIndexes, i),
				Kind:         domain.KindDuplicateKey,
			})
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	reg.Register(entity, ids...)
	return errs
}

func sourceIndex(indexes []int, i int) int {
	if i < len(indexes) {
		return indexes[i]
	}
	return i
}
