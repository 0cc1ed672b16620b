// backend/internal/collection/schema.go
package collection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const documentSchemaURL = "schema://quizzems/collection.json"

// documentSchema describes one imported collection document.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["category", "items"],
  "properties": {
    "id": {"type": "string"},
    "category": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "thumbnail": {"type": "string"},
    "author": {"type": "string"},
    "author_slug": {"type": "string"},
    "shuffle": {"type": "boolean"},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/item"}
    }
  },
  "$defs": {
    "scalar": {"type": ["string", "number", "boolean"]},
    "item": {
      "type": "object",
      "anyOf": [
        {"required": ["answer"]},
        {"required": ["answers"]}
      ],
      "properties": {
        "id": {"$ref": "#/$defs/scalar"},
        "question": {"$ref": "#/$defs/scalar"},
        "image": {"type": "string"},
        "audio": {"type": "string"},
        "answer": {"$ref": "#/$defs/scalar"},
        "answers": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/scalar"}},
        "options": {"type": "array", "items": {"$ref": "#/$defs/scalar"}},
        "questionType": {"enum": ["image", "text", "audio"]},
        "answerType": {"enum": ["single", "multiplechoice", "multianswer"]}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadDocumentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse collection schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(documentSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add collection schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(documentSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a decoded YAML or JSON document against the
// collection schema.
func ValidateDocument(doc any) error {
	sch, err := loadDocumentSchema()
	if err != nil {
		return err
	}
	return sch.Validate(doc)
}
