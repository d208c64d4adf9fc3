package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// insertPatternCatalogSchema describes the on-disk shape of the
// insert-pattern catalog referenced by the Mutation configuration's
// insert-patterns file: an object mapping a parent rule name to its match
// pattern (a sequence of literal rule names or quantifier specs) and the
// set of rule names a donor tree must contain.
const insertPatternCatalogSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["match_pattern", "child_rules"],
    "properties": {
      "match_pattern": {
        "type": "array",
        "items": {
          "oneOf": [
            {"type": "string"},
            {
              "type": "object",
              "required": ["rule_name", "min"],
              "properties": {
                "rule_name": {"type": "string"},
                "min": {"type": "integer", "minimum": 0},
                "max": {"type": ["number", "string"]}
              }
            }
          ]
        }
      },
      "child_rules": {
        "type": "array",
        "items": {"type": "string"}
      }
    }
  }
}`

// dialectAssociationSchema describes the on-disk shape of the
// dialect-association map referenced by the Driver configuration's
// dialect_associations path: an object mapping a dialect name to the
// compiler options it enables.
const dialectAssociationSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {"type": "string"}
  }
}`

// ValidateInsertPatternCatalog checks path against insertPatternCatalogSchema,
// mirroring cmd/uast/validate.go's use of gojsonschema to check a JSON
// document's shape before trusting it.
func ValidateInsertPatternCatalog(path string) error {
	return validateAgainstSchema(path, insertPatternCatalogSchema, "insert-pattern catalog")
}

// ValidateDialectAssociations checks path against dialectAssociationSchema.
func ValidateDialectAssociations(path string) error {
	return validateAgainstSchema(path, dialectAssociationSchema, "dialect-association map")
}

func validateAgainstSchema(path, schema, label string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration, not user input
	if err != nil {
		return &ValidationError{Detail: label + " " + path, Err: fmt.Errorf("%w: %w", ErrFileNotFound, err)}
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("config: validate %s schema: %w", label, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		messages = append(messages, verr.String())
	}

	return &ValidationError{
		Detail: label + " " + path,
		Err:    fmt.Errorf("schema violations: %s", strings.Join(messages, "; ")),
	}
}
