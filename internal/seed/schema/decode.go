package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/heartmarshall/seedloader/internal/domain"
)

// Decode parses a seed file holding either one JSON object or an array of them.
// Numbers are preserved as json.Number so integers can be told from floats.
// Any other top-level shape yields a single malformed error at index 0.
func Decode(data []byte, sourceFile string) ([]any, *domain.SchemaValidationError) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, malformed(sourceFile, fmt.Sprintf("invalid JSON: %v", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed(sourceFile, "invalid JSON: unexpected data after top-level value")
	}

	switch v := top.(type) {
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, malformed(sourceFile, "top-level value must be an array of objects or a single object")
	}
}

func malformed(sourceFile, msg string) *domain.SchemaValidationError {
	return &domain.SchemaValidationError{
		SourceFile:  sourceFile,
		RecordIndex: 0,
		FieldPath:   RootPath,
		Kind:        domain.KindMalformed,
		Message:     msg,
	}
}
