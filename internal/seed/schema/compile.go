package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	resourceName   = "seed-schema.json"
	formatDatetime = "seed-datetime"
)

func init() {
	jsonschema.Formats[formatDatetime] = func(v interface{}) bool {
		s, ok := v.(string)
		return !ok || isDatetime(s)
	}
}

// Compile translates the descriptor into a JSON Schema document and compiles
// it once. Later calls return the first result.
func (s *Schema) Compile() error {
	s.once.Do(func() {
		s.compiled, s.compileErr = compile(s)
	})
	return s.compileErr
}

// Document returns the JSON Schema the descriptor compiles to.
func (s *Schema) Document() ([]byte, error) {
	return json.Marshal(s.document())
}

func compile(s *Schema) (*jsonschema.Schema, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	doc, err := s.Document()
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true
	if err := compiler.AddResource(resourceName, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

func (s *Schema) document() map[string]any {
	node := objectNode(s.Fields, s.Extra)
	node["$schema"] = "http://json-schema.org/draft-07/schema#"
	return node
}

func objectNode(fields map[string]*Field, extra ExtraPolicy) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, name := range sortedKeys(fields) {
		f := fields[name]
		// An absent or null optional field is accepted alike.
		props[name] = fieldNode(f, f.Nullable || !f.Required)
		if f.Required {
			required = append(required, name)
		}
	}

	node := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		node["required"] = required
	}
	if extra != ExtraIgnore {
		node["additionalProperties"] = false
	}
	return node
}

func fieldNode(f *Field, allowNull bool) map[string]any {
	var node map[string]any
	switch f.Type {
	case TypeObject:
		node = objectNode(f.Fields, f.Extra)
	case TypeArray:
		node = map[string]any{"type": "array", "items": fieldNode(f.Items, f.Items.Nullable)}
	case TypeDatetime:
		node = map[string]any{"type": "string", "format": formatDatetime}
	default:
		node = map[string]any{"type": string(f.Type)}
	}

	if f.MinLength > 0 {
		node["minLength"] = f.MinLength
	}
	if len(f.Enum) > 0 {
		enum := make([]any, 0, len(f.Enum)+1)
		for _, v := range f.Enum {
			enum = append(enum, v)
		}
		if allowNull {
			enum = append(enum, nil)
		}
		node["enum"] = enum
	}
	if allowNull {
		node["type"] = []any{node["type"], "null"}
	}
	return node
}
