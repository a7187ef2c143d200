// Package schema validates seed records against declarative entity schemas.
package schema

import (
	"fmt"
	"sort"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Type is the declared type of a field.
type Type string

const (
	TypeString   Type = "string"
	TypeInteger  Type = "integer"
	TypeNumber   Type = "number"
	TypeBoolean  Type = "boolean"
	TypeDatetime Type = "datetime"
	TypeObject   Type = "object"
	TypeArray    Type = "array"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeDatetime, TypeObject, TypeArray:
		return true
	}
	return false
}

// ExtraPolicy controls fields that are present but not declared.
type ExtraPolicy string

const (
	ExtraForbid ExtraPolicy = "forbid"
	ExtraIgnore ExtraPolicy = "ignore"
)

// Field describes one declared field. Object fields carry nested Fields,
// array fields carry an Items descriptor.
type Field struct {
	Type      Type              `yaml:"type"`
	Required  bool              `yaml:"required"`
	Nullable  bool              `yaml:"nullable"`
	Enum      []string          `yaml:"enum"`
	MinLength int               `yaml:"min_length"`
	Fields    map[string]*Field `yaml:"fields"`
	Extra     ExtraPolicy       `yaml:"extra"`
	Items     *Field            `yaml:"items"`
}

// Schema is the descriptor of one entity type. It is compiled to a JSON
// Schema on first use and must not be copied after that.
type Schema struct {
	Fields map[string]*Field `yaml:"fields"`
	Extra  ExtraPolicy       `yaml:"extra"`

	once       sync.Once
	compiled   *jsonschema.Schema
	compileErr error
}

// Has reports whether name is a declared top-level field.
func (s *Schema) Has(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// IsRequired reports whether name is a declared, required top-level field.
func (s *Schema) IsRequired(name string) bool {
	f, ok := s.Fields[name]
	return ok && f.Required
}

// Check verifies the descriptor itself is well formed.
func (s *Schema) Check() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema declares no fields")
	}
	if err := checkPolicy(s.Extra); err != nil {
		return err
	}
	return checkFields("", s.Fields)
}

func checkFields(prefix string, fields map[string]*Field) error {
	for _, name := range sortedKeys(fields) {
		if err := checkField(joinField(prefix, name), fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func checkField(path string, f *Field) error {
	if f == nil {
		return fmt.Errorf("field %s: empty descriptor", path)
	}
	if !f.Type.IsValid() {
		return fmt.Errorf("field %s: unsupported type %q", path, f.Type)
	}
	if err := checkPolicy(f.Extra); err != nil {
		return fmt.Errorf("field %s: %w", path, err)
	}
	switch f.Type {
	case TypeObject:
		return checkFields(path, f.Fields)
	case TypeArray:
		if f.Items == nil {
			return fmt.Errorf("field %s: array requires items", path)
		}
		return checkField(path+"[]", f.Items)
	}
	return nil
}

func checkPolicy(p ExtraPolicy) error {
	switch p {
	case "", ExtraForbid, ExtraIgnore:
		return nil
	}
	return fmt.Errorf("unsupported extra policy %q", p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
