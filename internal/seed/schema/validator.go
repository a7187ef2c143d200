package schema

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/heartmarshall/seedloader/internal/domain"
)

// RootPath is the field path reported for errors about a record as a whole.
const RootPath = "root"

const (
	msgExtraForbidden = "extra field not permitted"
	msgFieldRequired  = "field required"
)

// Validate checks every record against the compiled form of s and never stops
// at the first failure. A record with any error is excluded from
// ValidatedRecords in full.
func Validate(records []any, s *Schema, sourceFile string) domain.ValidationOutcome {
	out := domain.ValidationOutcome{
		SourceFile: sourceFile,
		Total:      len(records),
	}
	compileErr := s.Compile()

	for i, raw := range records {
		v := &recordValidator{schema: s, sourceFile: sourceFile, index: i, record: raw}
		if compileErr != nil {
			v.add(nil, domain.KindMalformed, "schema does not compile: "+compileErr.Error())
		} else {
			v.run()
		}

		if len(v.errs) > 0 {
			out.Errors = append(out.Errors, v.sorted()...)
			continue
		}
		out.ValidatedRecords = append(out.ValidatedRecords, raw.(map[string]any))
		out.SourceIndexes = append(out.SourceIndexes, i)
	}

	return out
}

// segment is one step of a field path. Undeclared fields sort ahead of
// declared ones within the same object.
type segment struct {
	name  string
	index int
	item  bool
	extra bool
}

// location is a point in a record together with the descriptor that governs it.
type location struct {
	path     []segment
	value    any
	field    *Field
	property bool
}

type pathError struct {
	path []segment
	err  domain.SchemaValidationError
}

type recordValidator struct {
	schema     *Schema
	sourceFile string
	index      int
	record     any
	errs       []pathError
	seen       map[string]bool
}

func (v *recordValidator) run() {
	err := v.schema.compiled.Validate(v.record)
	if err == nil {
		return
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		v.add(nil, domain.KindTypeError, err.Error())
		return
	}
	for _, leaf := range leaves(ve) {
		v.cause(leaf)
	}
}

// cause turns one failed keyword into field-level errors.
func (v *recordValidator) cause(c *jsonschema.ValidationError) {
	loc, ok := v.locate(c.InstanceLocation)
	if !ok {
		v.add(nil, domain.KindTypeError, c.Message)
		return
	}
	f := loc.field

	switch keyword(c.KeywordLocation) {
	case "type":
		if loc.value == nil && loc.property && f.Required {
			v.add(loc.path, domain.KindMissing, msgFieldRequired)
			return
		}
		v.add(loc.path, domain.KindTypeError, typeMessage(f.Type))

	case "format":
		v.add(loc.path, domain.KindTypeError, typeMessage(f.Type))

	case "required":
		obj, _ := loc.value.(map[string]any)
		for _, name := range sortedKeys(f.Fields) {
			if _, present := obj[name]; !present && f.Fields[name].Required {
				v.add(child(loc.path, segment{name: name}), domain.KindMissing, msgFieldRequired)
			}
		}

	case "additionalProperties":
		obj, _ := loc.value.(map[string]any)
		for _, name := range sortedKeys(obj) {
			if _, declared := f.Fields[name]; !declared {
				v.add(child(loc.path, segment{name: name, extra: true}), domain.KindExtraForbidden, msgExtraForbidden)
			}
		}

	case "minLength":
		v.add(loc.path, domain.KindTooShort, fmt.Sprintf("value must have at least %d characters", f.MinLength))

	case "enum":
		v.add(loc.path, domain.KindEnum, "value must be one of: "+strings.Join(f.Enum, ", "))

	default:
		v.add(loc.path, domain.KindTypeError, c.Message)
	}
}

// locate follows a JSON pointer through the record and the descriptor tree.
func (v *recordValidator) locate(pointer string) (location, bool) {
	loc := location{
		value: v.record,
		field: &Field{Type: TypeObject, Fields: v.schema.Fields, Extra: v.schema.Extra},
	}
	pointer = strings.TrimPrefix(pointer, "#")
	if pointer == "" {
		return loc, true
	}

	for _, tok := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		tok = strings.NewReplacer("~1", "/", "~0", "~").Replace(tok)

		switch loc.field.Type {
		case TypeArray:
			items, _ := loc.value.([]any)
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(items) {
				return location{}, false
			}
			loc = location{
				path:  child(loc.path, segment{index: i, item: true}),
				value: items[i],
				field: loc.field.Items,
			}

		case TypeObject:
			obj, _ := loc.value.(map[string]any)
			f, declared := loc.field.Fields[tok]
			if !declared {
				return location{}, false
			}
			loc = location{
				path:     child(loc.path, segment{name: tok}),
				value:    obj[tok],
				field:    f,
				property: true,
			}

		default:
			return location{}, false
		}
	}
	return loc, true
}

func (v *recordValidator) add(path []segment, kind domain.ErrorKind, msg string) {
	field := renderPath(path)
	key := field + "\x00" + string(kind)
	if v.seen == nil {
		v.seen = make(map[string]bool)
	}
	if v.seen[key] {
		return
	}
	v.seen[key] = true

	v.errs = append(v.errs, pathError{
		path: path,
		err: domain.SchemaValidationError{
			SourceFile:  v.sourceFile,
			RecordIndex: v.index,
			FieldPath:   field,
			Kind:        kind,
			Message:     msg,
		},
	})
}

// sorted orders errors the way a reader scans a record: undeclared fields
// first, then declared fields by name, array items by position.
func (v *recordValidator) sorted() []domain.SchemaValidationError {
	slices.SortStableFunc(v.errs, func(a, b pathError) int {
		if c := comparePaths(a.path, b.path); c != 0 {
			return c
		}
		return cmp.Compare(kindRank(a.err.Kind), kindRank(b.err.Kind))
	})
	out := make([]domain.SchemaValidationError, len(v.errs))
	for i, e := range v.errs {
		out[i] = e.err
	}
	return out
}

func comparePaths(a, b []segment) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := a[i], b[i]
		if x.extra != y.extra {
			if x.extra {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(x.index, y.index); x.item && y.item && c != 0 {
			return c
		}
		if c := strings.Compare(x.name, y.name); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func kindRank(k domain.ErrorKind) int {
	switch k {
	case domain.KindExtraForbidden:
		return 0
	case domain.KindMissing, domain.KindTypeError:
		return 1
	case domain.KindTooShort:
		return 2
	case domain.KindEnum:
		return 3
	}
	return 4
}

func leaves(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// keyword returns the last token of a keyword location such as
// "/properties/age/type".
func keyword(loc string) string {
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		return loc[i+1:]
	}
	return loc
}

func child(path []segment, s segment) []segment {
	return append(slices.Clip(path), s)
}

func renderPath(path []segment) string {
	if len(path) == 0 {
		return RootPath
	}
	var b strings.Builder
	for _, s := range path {
		if s.item {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.name)
	}
	return b.String()
}

func typeMessage(t Type) string {
	switch t {
	case TypeInteger, TypeObject, TypeArray:
		return fmt.Sprintf("value must be an %s", t)
	case TypeDatetime:
		return "value must be a valid datetime"
	default:
		return fmt.Sprintf("value must be a %s", t)
	}
}

func isDatetime(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
