package mirror

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/meridianpay/refdata/pkg/canonicalize"
)

// normalizedSchema constrains the application-facing projection before its
// hash is frozen: period/value are required strings, value must look like a
// decimal number. Rates stay strings end to end.
const normalizedSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["observations"],
  "properties": {
    "observations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["period", "value"],
        "properties": {
          "period": {"type": "string", "minLength": 1},
          "value": {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}
        },
        "additionalProperties": false
      }
    },
    "metadata": {"type": "object"}
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("normalized.json", strings.NewReader(normalizedSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("normalized.json")
	})
	return compiledSchema, schemaErr
}

// ValidateNormalized checks a normalized projection against the schema.
func ValidateNormalized(n *Normalized) error {
	if n == nil {
		return fmt.Errorf("normalized projection is nil")
	}
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("normalized schema compile failed: %w", err)
	}

	// The validator wants decoded generic JSON; round-trip through the
	// canonical form we also hash.
	b, err := canonicalize.JCS(n)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("normalized projection decode failed: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return fmt.Errorf("normalized projection invalid: %w", err)
	}
	return nil
}
