package fixture

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/pillbox/pkg/codec"
)

const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "pillbox fixture",
  "type": "object",
  "required": ["status_code", "data"],
  "properties": {
    "status_code": {"type": "integer", "minimum": 100, "maximum": 599},
    "data": {"$ref": "#/$defs/payload"}
  },
  "$defs": {
    "payload": {
      "anyOf": [
        {"$ref": "#/$defs/datetime"},
        {"$ref": "#/$defs/stream"},
        {"type": ["null", "boolean", "number", "string", "array"]},
        {"type": "object", "not": {"required": ["__class__"], "properties": {"__class__": {"enum": ["datetime", "StreamingBody"]}}}}
      ]
    },
    "datetime": {
      "type": "object",
      "required": ["__class__", "year", "month", "day", "hour", "minute", "second", "microsecond"],
      "properties": {
        "__class__": {"const": "datetime"},
        "year": {"type": "integer"},
        "month": {"type": "integer", "minimum": 1, "maximum": 12},
        "day": {"type": "integer", "minimum": 1, "maximum": 31},
        "hour": {"type": "integer", "minimum": 0, "maximum": 23},
        "minute": {"type": "integer", "minimum": 0, "maximum": 59},
        "second": {"type": "integer", "minimum": 0, "maximum": 59},
        "microsecond": {"type": "integer", "minimum": 0, "maximum": 999999}
      }
    },
    "stream": {
      "type": "object",
      "required": ["__class__", "payload"],
      "properties": {
        "__class__": {"const": "StreamingBody"},
        "payload": {"type": "string", "contentEncoding": "base64"}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("fixture.schema.json", strings.NewReader(documentSchema)); err != nil {
		return nil, fmt.Errorf("add fixture schema: %w", err)
	}
	return compiler.Compile("fixture.schema.json")
})

// validateDocument checks the envelope of a decoded document. Payloads the
// JSON data model cannot express, such as non-finite floats from YAML or
// gob, skip the payload check.
func validateDocument(doc codec.Value) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	tree, err := codec.Tagged(doc)
	if errors.Is(err, codec.ErrUnsupportedType) {
		m, ok := doc.(codec.Mapping)
		if !ok {
			return fmt.Errorf("%w: %v", ErrCorruptFixture, err)
		}
		envelope := make(codec.Mapping, len(m))
		for k, v := range m {
			envelope[k] = v
		}
		envelope[KeyData] = codec.Null{}
		tree, err = codec.Tagged(envelope)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptFixture, err)
	}
	if err := schema.Validate(tree); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptFixture, err)
	}
	return nil
}
